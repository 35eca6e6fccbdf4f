// Package server boots the admin service: configuration, stores,
// catalog manager, observers and the HTTP stack.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/electrohogar/catalogo/app/controllers"
	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/app/routes"
	"github.com/electrohogar/catalogo/config"
	"github.com/electrohogar/catalogo/internal/catalog"
	"github.com/electrohogar/catalogo/pkg/cache"
	"github.com/electrohogar/catalogo/pkg/logger"
	"github.com/electrohogar/catalogo/pkg/metrics"
	"github.com/electrohogar/catalogo/pkg/middleware"
	"github.com/electrohogar/catalogo/pkg/reqid"
	"github.com/electrohogar/catalogo/pkg/router"
	"github.com/electrohogar/catalogo/pkg/storage"
	"github.com/electrohogar/catalogo/pkg/ws"
)

// Start boots every dependency and serves until the process receives
// SIGINT or SIGTERM.
func Start() error {
	if err := config.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.LogToMongo() {
		mh, err := logger.NewMongoHandler(config.MongoURI(), config.MongoDB(), config.LogCollection())
		if err != nil {
			logger.Warn("mongo log sink unavailable", "error", err)
		} else {
			defer mh.Close()
			logger.SetHandler(logger.NewMultiHandler(logger.L.Handler(), mh))
		}
	}

	if err := cache.Connect(); err != nil {
		logger.Warn("redis unavailable, list caching disabled", "error", err)
	}

	storage.Connect()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gw, err := catalog.NewMongoGateway(bootCtx, config.MongoURI(), config.MongoDB(), config.MongoCollection())
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		gw.Close(closeCtx)
	}()

	files := catalog.NewDiskStore(storage.Use(config.StorageDefault()))
	manager := catalog.New(gw, files, catalog.WithLogger(logger.L))

	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = manager.Load(loadCtx)
	cancel()
	if err != nil {
		// Serve anyway: the catalog can be reloaded once the store is back.
		logger.Warn("initial catalog load failed", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	// Every catalog change invalidates the cached list views and is
	// pushed to connected admin clients.
	manager.Subscribe(func(ev catalog.Event) {
		if err := cache.ForgetPrefix(controllers.ListCachePrefix); err != nil {
			logger.Warn("invalidate list cache", "error", err)
		}
		hub.BroadcastJSON(ev)
	})

	handler := buildHandler(manager, hub)

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalogo admin service listening", "addr", srv.Addr, "env", config.AppEnv())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// buildHandler assembles the middleware stack and routes.
func buildHandler(manager *catalog.Manager, hub *ws.Hub) http.Handler {
	r := router.New()

	// Global middleware stack (outermost → innermost):
	//  1. Prometheus metrics — outermost for accurate total latency
	//  2. Recovery          — catches panics before they kill the goroutine
	//  3. Request ID        — inject unique ID before anything logs
	//  4. Logger            — logs request_id from context
	//  5. CORS              — set CORS headers
	//  6. Rate limiter      — reject abusers early
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(200, time.Minute))

	routes.RegisterAPI(r, manager, hub)

	// Photos uploaded to the local disk are served back from /storage/.
	fs := http.StripPrefix("/storage/", http.FileServer(http.Dir(config.StorageLocalRoot())))
	r.Mount("/storage", fs)

	return r.Handler()
}

// Routes builds the full route table without binding a listener. The
// route:list command uses it.
func Routes() ([]router.RouteInfo, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	r := router.New()
	routes.RegisterAPI(r, catalog.New(noopGateway{}, noopFiles{}), ws.NewHub())
	return r.Routes(), nil
}

// noopGateway and noopFiles satisfy the catalog interfaces for code
// paths that only need the route table, never the stores.
type noopGateway struct{}

func (noopGateway) FetchAll(context.Context) ([]map[string]any, error) { return nil, nil }
func (noopGateway) Create(context.Context, map[string]any) (string, error) {
	return "", errors.New("gateway not configured")
}
func (noopGateway) Update(context.Context, string, models.Patch) error {
	return errors.New("gateway not configured")
}
func (noopGateway) Delete(context.Context, string) error {
	return errors.New("gateway not configured")
}

type noopFiles struct{}

func (noopFiles) Upload(context.Context, string, io.Reader) error {
	return errors.New("file store not configured")
}
func (noopFiles) ResolveURL(key string) string { return key }
func (noopFiles) Delete(context.Context, string) error {
	return errors.New("file store not configured")
}
