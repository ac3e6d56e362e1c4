// README: Entry point; loads config, wires services, starts HTTP server and the retry sweep.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"feastly/internal/config"
	"feastly/internal/events"
	httptransport "feastly/internal/http"
	"feastly/internal/infra"
	"feastly/internal/logging"
	"feastly/internal/maps"
	"feastly/internal/modules/catalog"
	"feastly/internal/modules/coupon"
	"feastly/internal/modules/dispatch"
	"feastly/internal/modules/order"
	"feastly/internal/modules/partner"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("postgres init", zap.Error(err))
	}
	defer dbPool.Close()

	if err := infra.Migrate(ctx, dbPool); err != nil {
		logger.Fatal("schema bootstrap", zap.Error(err))
	}

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	bus := events.NewRedisPublisher(redisClient, logger)

	var geocoder dispatch.Geocoder
	if cfg.Maps.APIKey != "" {
		geocoder, err = maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			logger.Fatal("maps init", zap.Error(err))
		}
	}

	catalogStore := catalog.NewStore(dbPool)

	orderStore := order.NewStore(dbPool)
	couponStore := coupon.NewStore(dbPool)
	couponSvc := coupon.NewService(couponStore, orderStore, cfg.Fees.DeliveryFee)

	partnerStore := partner.NewStore(dbPool, redisClient)
	partnerSvc := partner.NewService(partnerStore, bus, logger)

	orderSvc := order.NewService(orderStore, catalogStore, catalogStore, couponSvc, partnerSvc, bus, cfg.Fees, logger)
	partnerSvc.SetCustomerResolver(orderSvc)

	dispatchSvc := dispatch.NewService(orderStore, partnerSvc, catalogStore, geocoder, bus, cfg.Dispatch, cfg.Fees.CourierPerDrop, logger)
	orderSvc.SetDispatcher(dispatchSvc)

	handler := httptransport.NewRouter(orderSvc, partnerSvc, dispatchSvc, partnerSvc, logger)
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go dispatchSvc.RunRetrySweep(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server", zap.Error(err))
	}
}
