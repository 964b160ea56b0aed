// README: Entry point; loads config, wires services, starts HTTP server and background workers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workshop/internal/config"
	httptransport "workshop/internal/http"
	"workshop/internal/http/handlers"
	"workshop/internal/infra"
	"workshop/internal/modules/catalog"
	"workshop/internal/modules/customer"
	"workshop/internal/modules/notify"
	"workshop/internal/modules/serviceorder"
	"workshop/internal/modules/user"
)

type stores struct {
	users     user.Repository
	customers customer.Repository
	orders    serviceorder.Repository
	catalog   catalog.Repository
	queue     notify.Queue
	checks    []handlers.Check
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier := infra.NewDevVerifier()
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Fatal("firebase init", zap.Error(err))
		}
	} else {
		logger.Warn("no firebase project configured, accepting development tokens")
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("open stores", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	userSvc := user.NewService(st.users)
	customerSvc := customer.NewService(st.customers)
	catalogSvc := catalog.NewService(st.catalog)
	notifySvc := notify.NewService(st.queue, customerSvc, catalogSvc, notify.NewLogSender(logger), logger, notify.Options{
		DedupeTTL:   cfg.Notify.DedupeTTL,
		PollTimeout: cfg.Notify.PollTimeout,
	})
	orderSvc := serviceorder.NewService(st.orders, customerSvc, userSvc, notifySvc, logger, serviceorder.Options{
		EnforceTierOrdering: cfg.Workflow.EnforceTierOrdering,
	})

	gin.SetMode(cfg.HTTP.Mode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Users:     userSvc,
		Customers: customerSvc,
		Orders:    orderSvc,
		Catalog:   catalogSvc,
		Verifier:  verifier,
		Checks:    st.checks,
		Log:       logger,
	})

	go notifySvc.RunDispatcher(ctx)
	go orderSvc.RunOverdueMonitor(ctx, cfg.Payment.OverdueCheckInterval)

	server := httptransport.NewServer(cfg.HTTP, router, logger)
	if err := server.Run(ctx); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		return &stores{
			users:     user.NewMemStore(),
			customers: customer.NewMemStore(),
			orders:    serviceorder.NewMemStore(),
			catalog:   catalog.NewMemStore(),
			queue:     notify.NewMemQueue(1024),
			close:     func() {},
		}, nil
	}

	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	rdb := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	return &stores{
		users:     user.NewStore(pool),
		customers: customer.NewStore(pool),
		orders:    serviceorder.NewStore(pool),
		catalog:   catalog.NewStore(pool),
		queue:     notify.NewRedisQueue(rdb, cfg.Notify.QueueKey),
		checks: []handlers.Check{
			{Name: "postgres", Probe: pool.Ping},
			{Name: "redis", Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		close: func() {
			_ = rdb.Close()
			pool.Close()
		},
	}, nil
}
