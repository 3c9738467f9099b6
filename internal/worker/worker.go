package worker

import (
	"context"
	"time"

	"shop-service/internal/broker"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// PriceInvalidator drops cached product prices
type PriceInvalidator interface {
	InvalidatePrice(ctx context.Context, productID int64) error
}

// CatalogWorker consumes shop events and keeps the price cache fresh
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        PriceInvalidator
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer *broker.Consumer, cache PriceInvalidator) *CatalogWorker {
	w := &CatalogWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnProductChanged(w.HandleProductEvent)
	w.eventHandler.OnOrderEvent(w.HandleOrderEvent)
	return w
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}

// HandleProductEvent invalidates the cached price of an updated or deleted product
func (w *CatalogWorker) HandleProductEvent(ctx context.Context, event *models.ProductEvent) error {
	switch event.EventType {
	case models.EventTypeProductUpdated, models.EventTypeProductDeleted:
	default:
		return nil
	}

	if err := w.cache.InvalidatePrice(ctx, event.ProductID); err != nil {
		return err
	}
	w.logger.Debug("Price cache invalidated",
		zap.Int64("product_id", event.ProductID),
		zap.String("event_type", event.EventType))
	return nil
}

// HandleOrderEvent records order activity
func (w *CatalogWorker) HandleOrderEvent(_ context.Context, event *models.OrderEvent) error {
	w.logger.Info("Order event",
		zap.String("event_type", event.EventType),
		zap.Int64("order_id", event.OrderID),
		zap.String("status", string(event.Status)),
		zap.String("previous_status", string(event.PreviousStatus)))
	return nil
}

// AssetReconciler sweeps product rows for missing images
type AssetReconciler interface {
	ReconcileAssets(ctx context.Context) (*service.ReconcileReport, error)
}

// ReconcileWorker runs asset reconciliation on an interval
type ReconcileWorker struct {
	reconciler AssetReconciler
	interval   time.Duration
	logger     *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(reconciler AssetReconciler, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		interval:   interval,
		logger:     util.GetLogger(),
	}
}

// Start sweeps once immediately, then on every tick until ctx ends
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("Stopping reconcile worker")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	report, err := w.reconciler.ReconcileAssets(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Asset reconciliation failed", zap.Error(err))
		}
		return
	}
	w.logger.Debug("Asset reconciliation done",
		zap.Int("checked", report.Checked),
		zap.Int("dangling", report.Dangling),
		zap.Int("repaired", report.Repaired))
}
