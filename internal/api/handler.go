// Package api exposes the local HTTP surface the point-of-sale UI talks
// to: checkout, sync status, manual sync, and queue inspection.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/queue"
	"github.com/roach88/till/internal/sale"
	"github.com/roach88/till/internal/syncer"
)

// Handler holds the engine and queue and implements the HTTP handlers.
type Handler struct {
	engine  *syncer.Engine
	builder *sale.Builder
	queue   *queue.PendingQueue
	logger  *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(engine *syncer.Engine, builder *sale.Builder, q *queue.PendingQueue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, builder: builder, queue: q, logger: logger}
}

// InitRoutes registers all endpoints on the given Gin engine.
func InitRoutes(e *gin.Engine, h *Handler) {
	e.POST("/checkout", h.handleCheckout)
	e.GET("/status", h.handleStatus)
	e.POST("/sync", h.handleSync)
	e.GET("/queue", h.handleQueue)
	e.POST("/queue/:id/retry", h.handleRetry)
	e.DELETE("/queue", h.handleClear)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}

type checkoutItem struct {
	ProductID      int64  `json:"product"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	CostPriceCents int64  `json:"cost_price_cents"`
}

type checkoutRequest struct {
	Items         []checkoutItem `json:"items"`
	PaymentMethod string         `json:"payment_method"`
	TenderCents   int64          `json:"tender_cents"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone"`
}

// handleCheckout prices the cart, routes the sale, and reports the outcome.
//
// 201: synced immediately. 202: accepted, saved offline for later sync.
// 400: user-correctable validation failure (cart stays intact client-side).
// 507: both storage engines failed - the cart must NOT be cleared.
func (h *Handler) handleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	items := make([]sale.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, sale.CartItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money.Cents(it.UnitPriceCents),
			CostPrice:   money.Cents(it.CostPriceCents),
		})
	}

	payload, err := h.builder.BuildPayload(items, sale.PaymentMethod(req.PaymentMethod), money.Cents(req.TenderCents))
	if err != nil {
		switch {
		case errors.Is(err, sale.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		case errors.Is(err, sale.ErrInsufficientTender):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	payload.CustomerName = req.CustomerName
	payload.CustomerPhone = req.CustomerPhone

	outcome, err := h.engine.SubmitOrQueue(c.Request.Context(), payload)
	if err != nil {
		// Storage exhaustion: the sale was neither synced nor queued.
		h.logger.Error("checkout could not be stored", zap.Error(err))
		c.JSON(http.StatusInsufficientStorage, gin.H{
			"error": "sale could not be saved - keep the cart and retry",
		})
		return
	}

	status := http.StatusAccepted
	if outcome.Synced {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"accepted":       outcome.Accepted,
		"synced":         outcome.Synced,
		"offline_id":     outcome.OfflineID,
		"receipt_number": outcome.ReceiptNumber,
		"change_cents":   int64(payload.ChangeGiven),
	})
}

// handleStatus reports live sync state for dashboard badges.
func (h *Handler) handleStatus(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("status read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// handleSync triggers a manual drain. 409 when a drain is already running.
func (h *Handler) handleSync(c *gin.Context) {
	res, err := h.engine.ForceSync(c.Request.Context())
	if err != nil {
		h.logger.Error("force sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.Skipped {
		c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type queueEntry struct {
	OfflineID     string `json:"offline_id"`
	ReceiptNumber string `json:"receipt_number"`
	CreatedAt     string `json:"created_at"`
	Status        string `json:"sync_status"`
	TotalCents    int64  `json:"total_cents"`
}

// handleQueue returns the ordered queue snapshot.
func (h *Handler) handleQueue(c *gin.Context) {
	records, err := h.queue.PeekOrdered(c.Request.Context())
	if err != nil {
		h.logger.Error("queue read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	entries := make([]queueEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, queueEntry{
			OfflineID:     rec.OfflineID,
			ReceiptNumber: rec.ReceiptNumber,
			CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
			Status:        string(rec.Status),
			TotalCents:    int64(rec.Payload.TotalAmount),
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "sales": entries})
}

// handleRetry returns a failed record to pending. 404 for unknown IDs.
func (h *Handler) handleRetry(c *gin.Context) {
	err := h.engine.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		h.logger.Error("retry failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "pending"})
}

// handleClear removes every queued record (operator reset).
func (h *Handler) handleClear(c *gin.Context) {
	n, err := h.queue.Clear(c.Request.Context())
	if err != nil {
		h.logger.Error("clear failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}
