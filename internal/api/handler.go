package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/assets"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ProductService is what the product routes need from the product coordinator
type ProductService interface {
	Create(ctx context.Context, fields service.ProductFields, upload *service.AssetUpload) (*models.ProductView, error)
	Update(ctx context.Context, id int64, patch models.ProductPatch, upload *service.AssetUpload) (*models.ProductView, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int, error)
	Get(ctx context.Context, id int64) (*models.ProductView, error)
	List(ctx context.Context, offset, limit int) ([]models.ProductView, error)
}

// OrderService is what the order routes need from the order engine
type OrderService interface {
	CreateOrder(ctx context.Context, req *service.CreateOrderRequest) (*models.OrderView, error)
	GetOrder(ctx context.Context, id int64) (*models.OrderView, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderView, error)
	UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.OrderView, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// ReadinessChecker reports whether a dependency can serve requests
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Options configures optional routes
type Options struct {
	// StaticPrefix and StaticDir serve locally stored product images; empty disables it
	StaticPrefix string
	StaticDir    string
}

// Handler contains HTTP handlers
type Handler struct {
	products ProductService
	orders   OrderService
	ready    ReadinessChecker
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(products ProductService, orders OrderService, ready ReadinessChecker, opts Options) *Handler {
	registerValidators()
	return &Handler{
		products: products,
		orders:   orders,
		ready:    ready,
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.opts.StaticPrefix != "" && h.opts.StaticDir != "" {
		router.Static(h.opts.StaticPrefix, h.opts.StaticDir)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.DELETE("/products", h.deleteAllProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.DELETE("/orders/:id", h.deleteOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"time":   time.Now().Unix(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// writeError maps a core error onto a status code. Internal details stay in the log.
func (h *Handler) writeError(c *gin.Context, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": vErr.Error(),
			"field": vErr.Field,
		})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, assets.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image is too large"})
	case errors.Is(err, models.ErrConstraintViolation):
		c.JSON(http.StatusConflict, gin.H{"error": "Request conflicts with stored data"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func bindError(c *gin.Context, err error) {
	body := gin.H{"error": "Invalid request"}
	if fields := fieldErrors(err); len(fields) > 0 {
		body["fields"] = fields
	} else {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusUnprocessableEntity, body)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// pageQuery reads skip and limit; absent values are zero
func pageQuery(c *gin.Context) (int, int, bool) {
	var q struct {
		Skip  int `form:"skip"`
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return 0, 0, false
	}
	return q.Skip, q.Limit, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
