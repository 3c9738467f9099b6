package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"shop-service/internal/assets"
	"shop-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productFixture struct {
	repo      *memProductRepo
	assets    *memAssetStore
	publisher *recordingPublisher
	svc       *ProductService
}

func newProductFixture() *productFixture {
	f := &productFixture{
		repo:      newMemProductRepo(),
		assets:    newMemAssetStore(),
		publisher: &recordingPublisher{},
	}
	f.svc = NewProductService(f.repo, f.assets, f.publisher, DefaultPagination)
	return f
}

func upload(name, content string) *AssetUpload {
	return &AssetUpload{Filename: name, Content: strings.NewReader(content)}
}

func lamp() ProductFields {
	return ProductFields{Name: "Lamp", Price: decimal.RequireFromString("19.99")}
}

// assertConsistent checks that every row references an existing image and
// that no image exists for a product without a reference.
func assertConsistent(t *testing.T, f *productFixture) {
	t.Helper()
	products, err := f.repo.ListProducts(context.Background(), 0, 1000)
	require.NoError(t, err)

	referenced := 0
	for _, p := range products {
		keys := f.assets.keysFor(p.ID)
		if p.HasAsset() {
			referenced++
			assert.Equal(t, []string{*p.AssetRef}, keys, "product %d", p.ID)
		} else {
			assert.Empty(t, keys, "product %d", p.ID)
		}
	}
	assert.Equal(t, referenced, f.assets.size(), "orphaned images")
}

func TestCreateProductWithoutImage(t *testing.T) {
	f := newProductFixture()

	view, err := f.svc.Create(context.Background(), lamp(), nil)
	require.NoError(t, err)

	assert.NotZero(t, view.ID)
	assert.Nil(t, view.ImageURL)
	assert.False(t, view.HasAsset())
	assert.Equal(t, []string{models.EventTypeProductCreated}, f.publisher.productTypes())
	assertConsistent(t, f)
}

func TestCreateProductWithImage(t *testing.T) {
	f := newProductFixture()

	view, err := f.svc.Create(context.Background(), lamp(), upload("lamp.PNG", "png-data"))
	require.NoError(t, err)

	require.NotNil(t, view.ImageURL)
	assert.Equal(t, "/static/products/product_1.png", *view.ImageURL)

	stored, err := f.repo.GetProductByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.True(t, stored.HasAsset())
	assert.Equal(t, "product_1.png", *stored.AssetRef)
	assert.Equal(t, []byte("png-data"), f.assets.objects["product_1.png"])
	assertConsistent(t, f)
}

func TestCreateProductRollsBackWhenImageFails(t *testing.T) {
	f := newProductFixture()
	f.assets.putErr = errors.New("disk full")

	view, err := f.svc.Create(context.Background(), lamp(), upload("lamp.png", "x"))

	assert.Nil(t, view)
	assert.ErrorIs(t, err, models.ErrAssetWrite)
	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.assets.size())
	assert.Empty(t, f.publisher.productEvents)
}

func TestCreateProductRollsBackWhenReferenceFails(t *testing.T) {
	f := newProductFixture()
	f.repo.setAssetErr = errors.New("connection lost")

	_, err := f.svc.Create(context.Background(), lamp(), upload("lamp.png", "x"))

	require.Error(t, err)
	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.assets.size())
}

func TestCreateProductRollbackSurvivesCancelledContext(t *testing.T) {
	f := newProductFixture()
	f.assets.putErr = context.Canceled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Create(ctx, lamp(), upload("lamp.png", "x"))

	assert.ErrorIs(t, err, models.ErrAssetWrite)
	assert.Zero(t, f.repo.count())
}

func TestCreateProductValidation(t *testing.T) {
	f := newProductFixture()

	_, err := f.svc.Create(context.Background(), ProductFields{Name: "", Price: decimal.NewFromInt(1)}, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.svc.Create(context.Background(), ProductFields{Name: "Lamp", Price: decimal.NewFromInt(-1)}, nil)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "price", vErr.Field)

	assert.Zero(t, f.repo.count())
}

func TestUpdateProductReplacesImage(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), upload("a.png", "v1"))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.ID, models.ProductPatch{}, upload("b.jpg", "v2"))
	require.NoError(t, err)
	view, err := f.svc.Update(ctx, created.ID, models.ProductPatch{}, upload("c.jpg", "v3"))
	require.NoError(t, err)

	assert.Equal(t, []string{"product_1.jpg"}, f.assets.keysFor(created.ID))
	assert.Equal(t, []byte("v3"), f.assets.objects["product_1.jpg"])
	require.NotNil(t, view.ImageURL)
	assert.Equal(t, "/static/products/product_1.jpg", *view.ImageURL)
	assertConsistent(t, f)
}

func TestUpdateProductScalarFields(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()
	desc := "desk lamp"

	created, err := f.svc.Create(ctx, ProductFields{Name: "Lamp", Description: &desc, Price: decimal.NewFromInt(10)},
		upload("a.png", "v1"))
	require.NoError(t, err)

	view, err := f.svc.Update(ctx, created.ID, models.ProductPatch{
		Price:       models.Some(decimal.RequireFromString("12.50")),
		Description: models.Some[*string](nil),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Lamp", view.Name)
	assert.Nil(t, view.Description)
	assert.True(t, view.Price.Equal(decimal.RequireFromString("12.5")))
	require.NotNil(t, view.ImageURL, "image is kept when none is uploaded")
	assertConsistent(t, f)
}

func TestUpdateProductImageFailureKeepsPrevious(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), upload("a.png", "v1"))
	require.NoError(t, err)

	f.assets.putErr = errors.New("permission denied")
	_, err = f.svc.Update(ctx, created.ID, models.ProductPatch{Name: models.Some("Renamed")}, upload("b.jpg", "v2"))
	assert.ErrorIs(t, err, models.ErrAssetWrite)

	stored, err := f.repo.GetProductByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", stored.Name)
	assert.Equal(t, "product_1.png", *stored.AssetRef)
	assert.Equal(t, []byte("v1"), f.assets.objects["product_1.png"])
	assertConsistent(t, f)
}

func TestUpdateProductRowFailureDiscardsNewImage(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), upload("a.png", "v1"))
	require.NoError(t, err)

	f.repo.updateErr = errors.New("serialization failure")
	_, err = f.svc.Update(ctx, created.ID, models.ProductPatch{}, upload("b.jpg", "v2"))
	require.Error(t, err)

	assert.Equal(t, []string{"product_1.png"}, f.assets.keysFor(created.ID))
	assertConsistent(t, f)
}

func TestUpdateProductNotFound(t *testing.T) {
	f := newProductFixture()

	_, err := f.svc.Update(context.Background(), 99, models.ProductPatch{}, upload("a.png", "x"))
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, f.assets.size())
}

func TestUpdateProductValidationWritesNothing(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, created.ID, models.ProductPatch{Name: models.Some(strings.Repeat("x", 51))}, upload("a.png", "x"))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, f.assets.size())
}

func TestDeleteProduct(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), upload("a.png", "v1"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.assets.size())

	err = f.svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, []string{models.EventTypeProductCreated, models.EventTypeProductDeleted}, f.publisher.productTypes())
}

func TestDeleteProductKeepsRowWhenImageRemovalFails(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), upload("a.png", "v1"))
	require.NoError(t, err)

	f.assets.removeErr = errors.New("read-only filesystem")
	err = f.svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrAssetWrite)
	assert.Equal(t, 1, f.repo.count())
	assertConsistent(t, f)
}

func TestDeleteProductWithDanglingReference(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, lamp(), upload("a.png", "v1"))
	require.NoError(t, err)
	delete(f.assets.objects, "product_1.png")

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Zero(t, f.repo.count())
}

func TestDeleteAllProducts(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		var up *AssetUpload
		if i%2 == 0 {
			up = upload("p.png", "x")
		}
		_, err := f.svc.Create(ctx, lamp(), up)
		require.NoError(t, err)
	}

	deleted, err := f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.assets.size())

	deleted, err = f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestListProducts(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, lamp(), upload("p.webp", "x"))
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ID)
	require.NotNil(t, page[0].ImageURL)
	assert.Equal(t, "/static/products/product_2.webp", *page[0].ImageURL)

	_, err = f.svc.List(ctx, -1, 10)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestReconcileAssetsClearsDanglingReferences(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, lamp(), upload("p.png", "x"))
		require.NoError(t, err)
	}
	delete(f.assets.objects, "product_2.png")

	report, err := f.svc.ReconcileAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, &ReconcileReport{Checked: 3, Dangling: 1, Repaired: 1}, report)

	stored, err := f.repo.GetProductByID(ctx, 2)
	require.NoError(t, err)
	assert.False(t, stored.HasAsset())
	assertConsistent(t, f)
}

func TestReconcileAssetsStopsOnReadError(t *testing.T) {
	f := newProductFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, lamp(), upload("p.png", "x"))
	require.NoError(t, err)
	f.assets.existsErr = errors.New("timeout")

	_, err = f.svc.ReconcileAssets(ctx)
	assert.ErrorIs(t, err, models.ErrAssetRead)

	stored, err := f.repo.GetProductByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, stored.HasAsset())
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newProductFixture()
	f.publisher.err = errors.New("broker down")

	_, err := f.svc.Create(context.Background(), lamp(), nil)
	assert.NoError(t, err)
}

func TestProductServiceWithLocalStore(t *testing.T) {
	dir := t.TempDir()
	local, err := assets.NewLocalStore(dir, "/static/products", 0)
	require.NoError(t, err)

	repo := newMemProductRepo()
	svc := NewProductService(repo, local, &recordingPublisher{}, DefaultPagination)
	ctx := context.Background()

	created, err := svc.Create(ctx, lamp(), upload("a.gif", "gif"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, models.ProductPatch{}, upload("b.png", "png"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "product_1.png", entries[0].Name())

	require.NoError(t, svc.Delete(ctx, created.ID))
	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
