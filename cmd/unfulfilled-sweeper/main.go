// unfulfilled-sweeper moves orders stuck in INITIATED past the payment
// window into UNFULFILLED. Run it on a schedule (cron / Cloud Scheduler);
// the server never does this inline.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/unfulfilled-sweeper -window 30m
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sruthreads/storefront_backend/appctx"
	"github.com/sruthreads/storefront_backend/config"
	"github.com/sruthreads/storefront_backend/models"
)

func main() {
	window := flag.Duration("window", 30*time.Minute, "how long an order may stay INITIATED")
	batch := flag.Int("batch", 100, "max orders per store per run")
	flag.Parse()

	// The sweep reads across stores; disable request-scoped tenant scoping.
	ctx := appctx.Set(context.Background(), appctx.ContextKeySkipTenantScope, true)
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	var storeIds []string
	if err := db.WithContext(ctx).Model(&models.Store{}).Where("is_active = ?", true).
		Pluck("id", &storeIds).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list stores: %v\n", err)
		os.Exit(1)
	}

	var swept, failed int
	for _, storeId := range storeIds {
		orders, err := models.ListStaleInitiatedOrders(ctx, storeId, *window, *batch)
		if err != nil {
			config.LogError(logger, "main.go", "main", "ListStaleInitiatedOrders", storeId, err)
			continue
		}
		for _, order := range orders {
			_, err := models.TransitionOrder(ctx, storeId, order.ID,
				models.OrderStatusUnfulfilled, models.ActorBatch,
				fmt.Sprintf("payment not confirmed within %s", window.String()), "sweeper")
			if err != nil {
				failed++
				config.LogError(logger, "main.go", "main", "TransitionOrder", order.OrderNumber, err)
				continue
			}
			swept++
		}
	}

	logger.WithFields(logrus.Fields{
		"swept":  swept,
		"failed": failed,
		"window": window.String(),
	}).Info("unfulfilled sweep finished")
}
