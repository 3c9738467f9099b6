package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"shop-service/internal/assets"
	"shop-service/internal/models"

	"github.com/shopspring/decimal"
)

type memProductRepo struct {
	mu       sync.Mutex
	products map[int64]models.Product
	nextID   int64

	createErr   error
	updateErr   error
	setAssetErr error
	deleteErr   error
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: map[int64]models.Product{}}
}

func notFound(id int64) error {
	return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
}

func (r *memProductRepo) CreateProduct(_ context.Context, p *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.products[p.ID] = clone(*p)
	return nil
}

func (r *memProductRepo) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, notFound(id)
	}
	c := clone(p)
	return &c, nil
}

func (r *memProductRepo) ListProducts(_ context.Context, offset, limit int) ([]models.Product, error) {
	all := r.sorted(func(models.Product) bool { return true })
	if offset >= len(all) {
		return []models.Product{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memProductRepo) ListProductsWithAssets(_ context.Context) ([]models.Product, error) {
	return r.sorted(func(p models.Product) bool { return p.AssetRef != nil }), nil
}

func (r *memProductRepo) sorted(keep func(models.Product) bool) []models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Product{}
	for _, p := range r.products {
		if keep(p) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memProductRepo) UpdateProduct(_ context.Context, p *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.products[p.ID]; !ok {
		return notFound(p.ID)
	}
	p.UpdatedAt = time.Now()
	r.products[p.ID] = clone(*p)
	return nil
}

func (r *memProductRepo) SetProductAsset(_ context.Context, id int64, ref *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setAssetErr != nil {
		return r.setAssetErr
	}
	p, ok := r.products[id]
	if !ok {
		return notFound(id)
	}
	p.AssetRef = copyString(ref)
	r.products[id] = p
	return nil
}

func (r *memProductRepo) ClearProductAsset(_ context.Context, id int64, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.AssetRef == nil || *p.AssetRef != ref {
		return false, nil
	}
	p.AssetRef = nil
	r.products[id] = p
	return true, nil
}

func (r *memProductRepo) DeleteProduct(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.products[id]; !ok {
		return notFound(id)
	}
	delete(r.products, id)
	return nil
}

func (r *memProductRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products)
}

func clone(p models.Product) models.Product {
	p.Description = copyString(p.Description)
	p.AssetRef = copyString(p.AssetRef)
	return p
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// memAssetStore is an assets.Store with switchable failures
type memAssetStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	putErr    error
	removeErr error
	existsErr error
}

func newMemAssetStore() *memAssetStore {
	return &memAssetStore{objects: map[string][]byte{}}
}

func (s *memAssetStore) Put(_ context.Context, entityID int64, filename string, content io.Reader) (string, error) {
	locator := assets.Locator(entityID, filename)
	if s.putErr != nil {
		return "", models.NewAssetWriteError("put", locator, s.putErr)
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[locator] = data
	return locator, nil
}

func (s *memAssetStore) Remove(_ context.Context, locator string) (bool, error) {
	if s.removeErr != nil {
		return false, models.NewAssetWriteError("remove", locator, s.removeErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[locator]; !ok {
		return false, nil
	}
	delete(s.objects, locator)
	return true, nil
}

func (s *memAssetStore) Exists(_ context.Context, locator string) (bool, error) {
	if s.existsErr != nil {
		return false, models.NewAssetReadError("stat", locator, s.existsErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[locator]
	return ok, nil
}

func (s *memAssetStore) URL(locator string) string {
	return "/static/products/" + locator
}

// keysFor lists stored locators belonging to product id
func (s *memAssetStore) keysFor(id int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := fmt.Sprintf("product_%d.", id)
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *memAssetStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type recordingPublisher struct {
	mu            sync.Mutex
	productEvents []*models.ProductEvent
	orderEvents   []*models.OrderEvent
	err           error
}

func (p *recordingPublisher) PublishProductEvent(_ context.Context, e *models.ProductEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.productEvents = append(p.productEvents, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderEvents = append(p.orderEvents, e)
	return p.err
}

func (p *recordingPublisher) productTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.productEvents))
	for _, e := range p.productEvents {
		types = append(types, e.EventType)
	}
	return types
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]models.Order
	nextID int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: map[int64]models.Order{}}
}

func (r *memOrderRepo) CreateOrder(_ context.Context, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	o.UpdatedAt = o.CreatedAt
	r.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepo) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return &o, nil
}

func (r *memOrderRepo) ListOrders(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.orders {
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset >= len(out) {
		return []models.Order{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[f.Offset:end], nil
}

func (r *memOrderRepo) UpdateOrderStatus(_ context.Context, id int64, status models.OrderStatus, check func(*models.Order) error) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if check != nil {
		current := o
		if err := check(&current); err != nil {
			return nil, err
		}
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	r.orders[id] = o
	return &o, nil
}

func (r *memOrderRepo) DeleteOrder(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	delete(r.orders, id)
	return nil
}

type failingResolver struct{}

func (failingResolver) ResolvePrices(context.Context, []int64) (map[int64]decimal.Decimal, error) {
	return nil, errors.New("catalog offline")
}
