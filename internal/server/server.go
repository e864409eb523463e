package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/farellandr/duesledger/config"
	"github.com/farellandr/duesledger/internal/handlers"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/middleware"
	"github.com/farellandr/duesledger/internal/reconcile"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Start serves the API until ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}

	objects, err := config.InitObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize receipt storage: %v", err)
	}

	reporter, closeReporter, err := config.InitReporter(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect report publisher: %v", err)
	}
	defer closeReporter()

	api := config.InitProcessor(cfg)
	if api == nil {
		logger.Warn("processor credentials missing; completions will trust verified webhooks")
	}

	deps := reconcile.Deps{
		API:            api,
		Objects:        objects,
		Reporter:       reporter,
		Logger:         logger,
		SigningSecret:  cfg.SigningSecret,
		LockStaleAfter: cfg.LockStaleAfter,
	}
	h := handlers.New(deps, helpers.NewWebhookVerifier(cfg.WebhookSecret, cfg.SignatureTolerance))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewRouter(db, h, cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func NewRouter(db *gorm.DB, h *handlers.Handler, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(h.Logger))

	setupRoutes(r, db, h, cfg)
	return r
}

func setupRoutes(r *gin.Engine, db *gorm.DB, h *handlers.Handler, cfg *config.Config) {
	if cfg.ReceiptBucket == "" && cfg.ReceiptLocalDir != "" {
		r.Static(config.ReceiptFilesPath, cfg.ReceiptLocalDir)
	}

	r.Use(middleware.DatabaseMiddleware(db))
	r.GET("/healthz", handlers.Health)

	public := r.Group("/v1")
	{
		webhooks := public.Group("/webhooks")
		webhooks.Use(middleware.CORSMiddleware())
		{
			webhooks.POST("/monime", h.MonimeWebhook)
			webhooks.OPTIONS("/monime")
		}
	}

	internal := r.Group("/v1/receipts")
	internal.Use(middleware.ServiceKeyMiddleware(cfg.InternalServiceKeyHash))
	{
		internal.POST("/generate", h.GenerateReceipt)
	}

	protected := r.Group("/v1")
	protected.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		protected.POST("/receipts/verify", h.VerifyReceipt)
		protected.POST("/payments/sync", h.SyncPayment)
	}
}
