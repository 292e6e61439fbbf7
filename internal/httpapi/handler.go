// Package httpapi exposes the sync core to UI collaborators over a local
// HTTP surface: status badges, submission, manual sync, draft capture and
// the category/client pickers.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fieldexpense/claimsync/internal/api"
	"github.com/fieldexpense/claimsync/internal/connectivity"
	"github.com/fieldexpense/claimsync/internal/draft"
	"github.com/fieldexpense/claimsync/internal/model"
	"github.com/fieldexpense/claimsync/internal/orchestrator"
	"github.com/fieldexpense/claimsync/internal/pending"
	"github.com/fieldexpense/claimsync/internal/refdata"
	"github.com/fieldexpense/claimsync/internal/storage"
	"github.com/fieldexpense/claimsync/internal/syncer"
)

// Handler serves the local UI-facing API.
type Handler struct {
	monitor    *connectivity.Monitor
	queue      *pending.Queue
	engine     *syncer.Engine
	submitter  *syncer.Submitter
	orch       *orchestrator.Orchestrator
	categories *refdata.CategoryCache
	clients    *refdata.ClientCache
	drafts     *draft.Capture
	store      storage.Store
	logger     *zap.Logger
}

// NewHandler creates the UI-facing API handler.
func NewHandler(
	monitor *connectivity.Monitor,
	queue *pending.Queue,
	engine *syncer.Engine,
	submitter *syncer.Submitter,
	orch *orchestrator.Orchestrator,
	categories *refdata.CategoryCache,
	clients *refdata.ClientCache,
	drafts *draft.Capture,
	store storage.Store,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		monitor:    monitor,
		queue:      queue,
		engine:     engine,
		submitter:  submitter,
		orch:       orch,
		categories: categories,
		clients:    clients,
		drafts:     drafts,
		store:      store,
		logger:     logger,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", h.Status)
		v1.POST("/submissions", h.Submit)
		v1.GET("/submissions/pending", h.PendingSubmissions)
		v1.DELETE("/submissions/pending/:localId", h.DiscardPending)
		v1.POST("/sync", h.SyncNow)
		v1.POST("/lifecycle", h.Lifecycle)
		v1.POST("/network", h.NetworkState)
		v1.GET("/categories", h.Categories)
		v1.GET("/clients", h.Clients)
		v1.POST("/clients", h.CreateClient)
		v1.GET("/draft", h.GetDraft)
		v1.PUT("/draft", h.PutDraft)
		v1.DELETE("/draft", h.DeleteDraft)
		v1.DELETE("/offline-data", h.ClearOfflineData)
	}
}

// Status reports the badge state: online flag, network kind, pending
// count and the last aggregate sync error.
func (h *Handler) Status(c *gin.Context) {
	state, known := h.monitor.CurrentState()
	hasDraft, err := h.drafts.HasDraft(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to check draft presence", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"online":          known && state.Online,
		"network_kind":    state.Kind,
		"pending_count":   h.queue.Count(),
		"syncing":         h.engine.Syncing(),
		"last_sync_error": h.engine.LastError(),
		"has_draft":       hasDraft,
	})
}

// submitRequest is the submission body from the review screen.
type submitRequest struct {
	ClientName      string `json:"client_name" binding:"required"`
	CategoryID      int64  `json:"category_id" binding:"required"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	TransactionDate string `json:"transaction_date" binding:"required"`
	Note            string `json:"note"`
	ImageURI        string `json:"image_uri"`
}

// Submit creates a reimbursement directly when online, or enqueues it for
// later sync when offline.
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := model.ReimbursementPayload{
		ClientName:      req.ClientName,
		CategoryID:      req.CategoryID,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate,
		Note:            req.Note,
	}

	result, err := h.submitter.Submit(c.Request.Context(), payload, req.ImageURI)
	if err != nil {
		if apiErr, ok := api.AsError(err); ok && apiErr.IsValidation() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  apiErr.Message,
				"fields": apiErr.Fields,
			})
			return
		}
		h.logger.Error("Submission failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Submission failed, please try again"})
		return
	}

	if result.Queued {
		c.JSON(http.StatusAccepted, gin.H{
			"queued":        true,
			"local_id":      result.LocalID,
			"pending_count": h.queue.Count(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"queued": false, "reimbursement": result.Created})
}

// PendingSubmissions lists the queued submissions for review screens.
func (h *Handler) PendingSubmissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"submissions": h.queue.Snapshot()})
}

// DiscardPending removes one queued submission on explicit user request.
func (h *Handler) DiscardPending(c *gin.Context) {
	localID := c.Param("localId")
	if err := h.queue.Remove(c.Request.Context(), localID); err != nil {
		h.logger.Error("Failed to discard pending submission",
			zap.String("local_id", localID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to discard submission"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_count": h.queue.Count()})
}

// SyncNow triggers a manual sync pass. The pass runs in the background;
// an already-running pass makes this a no-op.
func (h *Handler) SyncNow(c *gin.Context) {
	// Detached from the request context so the pass outlives the response.
	go h.orch.SyncNow(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"syncing": true})
}

// lifecycleRequest signals a host app-state transition.
type lifecycleRequest struct {
	State string `json:"state" binding:"required,oneof=active background"`
}

// Lifecycle forwards foreground/background transitions from the host shell.
func (h *Handler) Lifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.State {
	case "active":
		go h.orch.OnForeground(context.Background())
	case "background":
		h.orch.OnBackground()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// networkRequest is a connectivity state pushed by the host shell.
type networkRequest struct {
	Online bool   `json:"online"`
	Kind   string `json:"kind"`
}

// NetworkState receives pushed OS-level connectivity transitions.
func (h *Handler) NetworkState(c *gin.Context) {
	var req networkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := connectivity.Kind(req.Kind)
	if kind == "" {
		kind = connectivity.KindUnknown
	}
	h.monitor.SetState(connectivity.State{Online: req.Online, Kind: kind})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Categories serves the category picker, from cache when fresh.
func (h *Handler) Categories(c *gin.Context) {
	force := c.Query("refresh") == "true"
	categories, err := h.categories.Fetch(c.Request.Context(), force)
	if err != nil {
		h.refdataError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Clients serves the client picker with optional search.
func (h *Handler) Clients(c *gin.Context) {
	search := c.Query("search")

	var (
		clients []model.Client
		err     error
	)
	if search != "" {
		clients, err = h.clients.Search(c.Request.Context(), search)
	} else {
		clients, err = h.clients.Fetch(c.Request.Context(), c.Query("refresh") == "true")
	}
	if err != nil {
		h.refdataError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

// createClientRequest is the client-create body.
type createClientRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateClient registers a client, or creates an offline placeholder.
func (h *Handler) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := h.clients.Create(c.Request.Context(), req.Name)
	if err != nil {
		h.logger.Error("Failed to create client", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create client"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": client, "local_only": client.IsLocal()})
}

// GetDraft returns the saved draft, if any.
func (h *Handler) GetDraft(c *gin.Context) {
	entry, ok, err := h.drafts.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load draft"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No draft"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": entry})
}

// PutDraft saves the draft. The ?immediate=true form bypasses the
// debounce window (used right before the shell shuts down).
func (h *Handler) PutDraft(c *gin.Context) {
	var entry model.DraftEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("immediate") == "true" {
		if err := h.drafts.Save(c.Request.Context(), entry); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save draft"})
			return
		}
	} else {
		h.drafts.Update(entry)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteDraft discards the draft.
func (h *Handler) DeleteDraft(c *gin.Context) {
	if err := h.drafts.Discard(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear draft"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ClearOfflineData wipes every offline key. Destructive; used on logout.
func (h *Handler) ClearOfflineData(c *gin.Context) {
	if err := h.store.RemoveMany(c.Request.Context(), storage.AllKeys()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear offline data"})
		return
	}
	if err := h.queue.Reload(c.Request.Context()); err != nil {
		h.logger.Warn("Failed to reload queue after clear", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// refdataError maps reference-data failures onto responses, keeping the
// explicit "no data offline" case distinct from generic errors.
func (h *Handler) refdataError(c *gin.Context, err error) {
	if errors.Is(err, refdata.ErrNoData) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No data available offline"})
		return
	}
	h.logger.Error("Reference data fetch failed", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load data"})
}
