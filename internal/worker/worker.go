package worker

import (
	"context"
	"log"

	"clearance-connect/internal/broker"
	"clearance-connect/internal/models"
	"clearance-connect/internal/store"
	"clearance-connect/internal/util"

	"go.uber.org/zap"
)

// CatalogWorker consumes order events and keeps product statuses in
// step with availability: a product whose last unit was just reserved
// flips to out_of_stock, and a cancellation that frees stock flips it
// back to active. Stock numbers themselves are maintained
// transactionally on the request path; this worker only moves the
// derived status flag.
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer *broker.Consumer, st *store.Store) *CatalogWorker {
	w := &CatalogWorker{
		consumer: consumer,
		store:    st,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnOrderCancelled(w.handleOrderCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	log.Println("Starting catalog worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	log.Println("Stopping catalog worker...")
	return w.consumer.Close()
}

func (w *CatalogWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		w.reconcileStatus(ctx, item.ProductID)
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

func (w *CatalogWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	for _, item := range event.Items {
		w.reconcileStatus(ctx, item.ProductID)
	}

	return w.store.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// reconcileStatus reads the product's current availability and flips
// the status flag if it disagrees. Only the active/out_of_stock pair
// is touched; inactive and discontinued products stay where they are.
func (w *CatalogWorker) reconcileStatus(ctx context.Context, productID int64) {
	product, err := w.store.GetProductByID(ctx, productID)
	if err != nil {
		w.logger.Error("Failed to load product for status reconcile",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return
	}

	var changed bool
	switch {
	case product.Status == models.ProductStatusActive && product.Available() <= 0:
		changed, err = w.store.SetProductStatus(ctx, productID,
			models.ProductStatusActive, models.ProductStatusOutOfStock)
	case product.Status == models.ProductStatusOutOfStock && product.Available() > 0:
		changed, err = w.store.SetProductStatus(ctx, productID,
			models.ProductStatusOutOfStock, models.ProductStatusActive)
	default:
		return
	}

	if err != nil {
		w.logger.Error("Failed to update product status",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return
	}
	if changed {
		w.logger.Info("Product status reconciled",
			zap.Int64("product_id", productID),
			zap.Int("available", product.Available()))
	}
}
