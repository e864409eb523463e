package handlers

import (
	"log/slog"
	"net/http"

	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/middleware"
	"github.com/farellandr/duesledger/internal/reconcile"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	Deps     reconcile.Deps
	Verifier *helpers.WebhookVerifier
	Logger   *slog.Logger
}

func New(deps reconcile.Deps, verifier *helpers.WebhookVerifier) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Deps: deps, Verifier: verifier, Logger: logger}
}

// requestDB returns the request's database handle, answering 500 when it is missing.
func requestDB(c *gin.Context) (*gorm.DB, bool) {
	db, ok := middleware.GetDB(c)
	if !ok {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
	}
	return db, ok
}

// engine builds a reconciliation engine for this request.
func (h *Handler) engine(c *gin.Context, db *gorm.DB) *reconcile.Engine {
	deps := h.Deps
	deps.Logger = middleware.RequestLoggerFrom(c, h.Logger)
	return reconcile.New(db, deps)
}

func Health(c *gin.Context) {
	db, ok := requestDB(c)
	if !ok {
		return
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusServiceUnavailable, "Database unreachable.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}
