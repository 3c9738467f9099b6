package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"shop-service/internal/assets"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRepository is the relational side of a product
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, offset, limit int) ([]models.Product, error)
	ListProductsWithAssets(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	SetProductAsset(ctx context.Context, id int64, ref *string) error
	ClearProductAsset(ctx context.Context, id int64, ref string) (bool, error)
	DeleteProduct(ctx context.Context, id int64) error
}

// ProductEventPublisher receives product lifecycle events
type ProductEventPublisher interface {
	PublishProductEvent(ctx context.Context, event *models.ProductEvent) error
}

// ProductFields are the scalar fields of a new product
type ProductFields struct {
	Name        string
	Description *string
	Price       decimal.Decimal
}

// AssetUpload is an image supplied with a create or update
type AssetUpload struct {
	Filename string
	Content  io.Reader
}

// ReconcileReport summarises one asset reconciliation sweep
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Dangling int `json:"dangling"`
	Repaired int `json:"repaired"`
}

const deleteAllBatchSize = 100

// ProductService keeps product rows and their images consistent.
// A row references an image if and only if the image exists in the asset store.
type ProductService struct {
	repo       ProductRepository
	assets     assets.Store
	publisher  ProductEventPublisher
	pagination Pagination
	logger     *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(
	repo ProductRepository,
	assetStore assets.Store,
	publisher ProductEventPublisher,
	pagination Pagination,
) *ProductService {
	return &ProductService{
		repo:       repo,
		assets:     assetStore,
		publisher:  publisher,
		pagination: pagination,
		logger:     util.GetLogger(),
	}
}

// Create inserts the row first, since the image key derives from the id.
// If the image cannot be stored the row is deleted again.
func (s *ProductService) Create(ctx context.Context, fields ProductFields, upload *AssetUpload) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	product := &models.Product{
		Name:        fields.Name,
		Description: fields.Description,
		Price:       fields.Price,
	}
	if err := models.ValidateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	if upload != nil {
		ref, err := s.assets.Put(ctx, product.ID, upload.Filename, upload.Content)
		if err != nil {
			util.AssetFailuresTotal.WithLabelValues("put").Inc()
			s.rollbackCreate(ctx, product.ID, "")
			return nil, fmt.Errorf("failed to store image for product %d: %w", product.ID, err)
		}

		if err := s.repo.SetProductAsset(ctx, product.ID, &ref); err != nil {
			s.rollbackCreate(ctx, product.ID, ref)
			return nil, fmt.Errorf("failed to attach image to product %d: %w", product.ID, err)
		}
		product.AssetRef = &ref
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Bool("has_image", product.HasAsset()))

	s.publish(ctx, models.EventTypeProductCreated, product)
	return s.view(product), nil
}

// rollbackCreate undoes a partially created product. It runs even if the
// caller has gone away, otherwise the row would outlive the request.
func (s *ProductService) rollbackCreate(ctx context.Context, id int64, ref string) {
	ctx = context.WithoutCancel(ctx)

	if ref != "" {
		s.discardAsset(ctx, id, ref, "create")
	}

	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		util.ProductCompensationsTotal.WithLabelValues("create", "failed").Inc()
		util.InconsistentAssetsTotal.WithLabelValues("uncompensated_row").Inc()
		s.logger.Error("Failed to roll back product row",
			zap.Int64("product_id", id),
			zap.NamedError("state", models.ErrInconsistentState),
			zap.Error(err))
		return
	}

	util.ProductCompensationsTotal.WithLabelValues("create", "ok").Inc()
	s.logger.Warn("Product creation rolled back", zap.Int64("product_id", id))
}

// discardAsset removes an image no row will reference
func (s *ProductService) discardAsset(ctx context.Context, id int64, ref, op string) {
	if _, err := s.assets.Remove(ctx, ref); err != nil {
		util.AssetFailuresTotal.WithLabelValues("remove").Inc()
		util.InconsistentAssetsTotal.WithLabelValues("orphan_file").Inc()
		s.logger.Error("Failed to discard unreferenced image",
			zap.Int64("product_id", id),
			zap.String("locator", ref),
			zap.String("operation", op),
			zap.NamedError("state", models.ErrInconsistentState),
			zap.Error(err))
		return
	}
	util.ProductCompensationsTotal.WithLabelValues(op, "ok").Inc()
}

// Update applies patch and, if given, replaces the image.
// The new image is written before the old one is removed, and the row is
// persisted last, so a failure at any step leaves the previous image referenced.
func (s *ProductService) Update(ctx context.Context, id int64, patch models.ProductPatch, upload *AssetUpload) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyPatch(product, patch)
	if err := models.ValidateProduct(product); err != nil {
		return nil, err
	}

	var oldRef string
	if product.HasAsset() {
		oldRef = *product.AssetRef
	}

	var newRef string
	if upload != nil {
		newRef, err = s.assets.Put(ctx, id, upload.Filename, upload.Content)
		if err != nil {
			util.AssetFailuresTotal.WithLabelValues("put").Inc()
			return nil, fmt.Errorf("failed to store image for product %d: %w", id, err)
		}
		product.AssetRef = &newRef
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		// Same locator means the put replaced the referenced image in place;
		// keep it unless the row itself is gone.
		if upload != nil && (newRef != oldRef || errors.Is(err, models.ErrNotFound)) {
			s.discardAsset(context.WithoutCancel(ctx), id, newRef, "update")
		}
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	if upload != nil && oldRef != "" && oldRef != newRef {
		if _, err := s.assets.Remove(ctx, oldRef); err != nil {
			util.AssetFailuresTotal.WithLabelValues("remove").Inc()
			util.InconsistentAssetsTotal.WithLabelValues("orphan_file").Inc()
			s.logger.Error("Failed to remove replaced image",
				zap.Int64("product_id", id),
				zap.String("locator", oldRef),
				zap.NamedError("state", models.ErrInconsistentState),
				zap.Error(err))
		}
	}

	util.ProductsUpdatedTotal.Inc()
	s.logger.Info("Product updated",
		zap.Int64("product_id", id),
		zap.Bool("image_replaced", upload != nil))

	s.publish(ctx, models.EventTypeProductUpdated, product)
	return s.view(product), nil
}

func applyPatch(p *models.Product, patch models.ProductPatch) {
	if v, ok := patch.Name.Get(); ok {
		p.Name = v
	}
	if v, ok := patch.Description.Get(); ok {
		p.Description = v
	}
	if v, ok := patch.Price.Get(); ok {
		p.Price = v
	}
}

// Delete removes the image before the row. A crash in between leaves a
// dangling reference, which ReconcileAssets can find.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "ProductService.Delete")
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	return s.delete(ctx, product)
}

func (s *ProductService) delete(ctx context.Context, product *models.Product) error {
	if product.HasAsset() {
		removed, err := s.assets.Remove(ctx, *product.AssetRef)
		if err != nil {
			util.AssetFailuresTotal.WithLabelValues("remove").Inc()
			return fmt.Errorf("failed to remove image of product %d: %w", product.ID, err)
		}
		if !removed {
			util.InconsistentAssetsTotal.WithLabelValues("dangling_reference").Inc()
			s.logger.Error("Product referenced a missing image",
				zap.Int64("product_id", product.ID),
				zap.String("locator", *product.AssetRef),
				zap.NamedError("state", models.ErrInconsistentState))
		}
	}

	if err := s.repo.DeleteProduct(ctx, product.ID); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", product.ID, err)
	}

	util.ProductsDeletedTotal.Inc()
	s.logger.Info("Product deleted", zap.Int64("product_id", product.ID))

	s.publish(ctx, models.EventTypeProductDeleted, product)
	return nil
}

// DeleteAll deletes every product with the same ordering as Delete
// and returns how many were removed.
func (s *ProductService) DeleteAll(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteAll")
	defer span.End()

	deleted := 0
	for {
		batch, err := s.repo.ListProducts(ctx, 0, deleteAllBatchSize)
		if err != nil {
			return deleted, fmt.Errorf("failed to list products: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			err := s.delete(ctx, &batch[i])
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			if err != nil {
				return deleted, err
			}
			deleted++
		}
	}

	s.logger.Info("All products deleted", zap.Int("count", deleted))
	return deleted, nil
}

// Get returns one product
func (s *ProductService) Get(ctx context.Context, id int64) (*models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Get")
	defer span.End()

	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(product), nil
}

// List returns a page of products ordered by id
func (s *ProductService) List(ctx context.Context, offset, limit int) ([]models.ProductView, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List")
	defer span.End()

	offset, limit, err := s.pagination.Normalize(offset, limit)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.ListProducts(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	views := make([]models.ProductView, 0, len(products))
	for i := range products {
		views = append(views, *s.view(&products[i]))
	}
	return views, nil
}

// ReconcileAssets finds products whose image is missing from the asset store
// and clears their reference. Each repair is logged.
func (s *ProductService) ReconcileAssets(ctx context.Context) (*ReconcileReport, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ReconcileAssets")
	defer span.End()

	products, err := s.repo.ListProductsWithAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products with images: %w", err)
	}

	report := &ReconcileReport{}
	for _, p := range products {
		if !p.HasAsset() {
			continue
		}
		report.Checked++

		ref := *p.AssetRef
		exists, err := s.assets.Exists(ctx, ref)
		if err != nil {
			return report, fmt.Errorf("failed to check image of product %d: %w", p.ID, err)
		}
		if exists {
			continue
		}

		report.Dangling++
		util.InconsistentAssetsTotal.WithLabelValues("dangling_reference").Inc()
		s.logger.Error("Product references a missing image",
			zap.Int64("product_id", p.ID),
			zap.String("locator", ref),
			zap.NamedError("state", models.ErrInconsistentState))

		cleared, err := s.repo.ClearProductAsset(ctx, p.ID, ref)
		if err != nil {
			return report, fmt.Errorf("failed to clear image reference of product %d: %w", p.ID, err)
		}
		if cleared {
			report.Repaired++
			s.logger.Warn("Cleared dangling image reference",
				zap.Int64("product_id", p.ID),
				zap.String("locator", ref))
		}
	}

	if report.Dangling > 0 {
		s.logger.Info("Asset reconciliation finished",
			zap.Int("checked", report.Checked),
			zap.Int("dangling", report.Dangling),
			zap.Int("repaired", report.Repaired))
	}
	return report, nil
}

func (s *ProductService) view(p *models.Product) *models.ProductView {
	v := &models.ProductView{Product: *p}
	if p.HasAsset() {
		url := s.assets.URL(*p.AssetRef)
		v.ImageURL = &url
	}
	return v
}

func (s *ProductService) publish(ctx context.Context, eventType string, p *models.Product) {
	event := &models.ProductEvent{
		BaseEvent: newBaseEvent(eventType),
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		HasImage:  p.HasAsset(),
	}
	if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish product event",
			zap.String("event_type", eventType),
			zap.Int64("product_id", p.ID),
			zap.Error(err))
	}
}
