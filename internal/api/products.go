package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"shop-service/internal/models"
	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createProductForm struct {
	Name        string  `form:"name" binding:"required,min=1,max=50"`
	Description *string `form:"description"`
	Price       string  `form:"price" binding:"required"`
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, models.NewValidationError("price", "must be a number")
	}
	if price.IsNegative() {
		return decimal.Zero, models.NewValidationError("price", "must be non-negative")
	}
	return price, nil
}

// imageUpload opens the optional "image" part. The returned closer is never nil.
func imageUpload(c *gin.Context) (*service.AssetUpload, func(), error) {
	noop := func() {}

	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, models.NewValidationError("image", "unreadable upload")
	}

	file, err := header.Open()
	if err != nil {
		return nil, noop, err
	}
	return &service.AssetUpload{Filename: header.Filename, Content: file}, func() { closeFile(file) }, nil
}

func closeFile(f multipart.File) {
	_ = f.Close()
}

// createProduct handles multipart product creation
func (h *Handler) createProduct(c *gin.Context) {
	var form createProductForm
	if err := c.ShouldBind(&form); err != nil {
		bindError(c, err)
		return
	}

	price, err := parsePrice(form.Price)
	if err != nil {
		h.writeError(c, err)
		return
	}

	upload, done, err := imageUpload(c)
	defer done()
	if err != nil {
		h.writeError(c, err)
		return
	}

	product, err := h.products.Create(c.Request.Context(), service.ProductFields{
		Name:        form.Name,
		Description: form.Description,
		Price:       price,
	}, upload)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// updateProduct applies only the form fields that were sent.
// An empty description clears it.
func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch models.ProductPatch
	if name, ok := c.GetPostForm("name"); ok {
		patch.Name = models.Some(name)
	}
	if desc, ok := c.GetPostForm("description"); ok {
		if desc == "" {
			patch.Description = models.Some[*string](nil)
		} else {
			patch.Description = models.Some(&desc)
		}
	}
	if raw, ok := c.GetPostForm("price"); ok {
		price, err := parsePrice(raw)
		if err != nil {
			h.writeError(c, err)
			return
		}
		patch.Price = models.Some(price)
	}

	upload, done, err := imageUpload(c)
	defer done()
	if err != nil {
		h.writeError(c, err)
		return
	}

	product, err := h.products.Update(c.Request.Context(), id, patch, upload)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.products.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) listProducts(c *gin.Context) {
	skip, limit, ok := pageQuery(c)
	if !ok {
		return
	}

	products, err := h.products.List(c.Request.Context(), skip, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.products.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteAllProducts(c *gin.Context) {
	if _, err := h.products.DeleteAll(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
