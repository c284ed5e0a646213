package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	syncpkg "github.com/kimhsiao/lifetrack/backend/internal/sync"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/queue"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/scheduler"
)

// SyncController is the scheduler API the sync endpoints drive.
type SyncController interface {
	GetStatus() scheduler.SchedulerStatus
	TriggerSync() bool
	SyncNow(ctx context.Context) (*syncpkg.SyncResult, error)
	SetOnlineStatus(isOnline bool)
}

// QueueInspector reads the pending mutations.
type QueueInspector interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// SyncHandler handles sync status and operations.
type SyncHandler struct {
	sync  SyncController
	queue QueueInspector
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sync SyncController, queue QueueInspector) *SyncHandler {
	return &SyncHandler{sync: sync, queue: queue}
}

// statusResponse is the body of GET /sync/status.
type statusResponse struct {
	scheduler.SchedulerStatus
	Label string       `json:"label"`
	Queue *queue.Stats `json:"queue,omitempty"`
}

// GetStatus handles GET /sync/status
// Returns the sync status, its display label and queue statistics.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.sync.GetStatus()
	resp := statusResponse{SchedulerStatus: st, Label: st.Sync.Label()}

	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	resp.Queue = &stats

	writeJSON(w, http.StatusOK, resp)
}

// TriggerSync handles POST /sync/trigger
// With ?wait=1 the drain runs on the request and its result is returned;
// otherwise the background worker is woken up.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("wait") != "1" {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"triggered": h.sync.TriggerSync(),
		})
		return
	}

	result, err := h.sync.SyncNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SetOnline handles POST /sync/online
// Body: {"online": true|false}.
func (h *SyncHandler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		badRequest(w, "body must be {\"online\": true|false}")
		return
	}

	h.sync.SetOnlineStatus(*req.Online)
	writeJSON(w, http.StatusOK, h.sync.GetStatus())
}
