package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/internal/db"
	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
	"github.com/kimhsiao/lifetrack/backend/internal/services"
	syncpkg "github.com/kimhsiao/lifetrack/backend/internal/sync"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/queue"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/scheduler"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/status"
)

// =====================================================
// Fakes
// =====================================================

type fakeSync struct {
	status    scheduler.SchedulerStatus
	triggered int
	online    []bool
	result    *syncpkg.SyncResult
	err       error
}

func (f *fakeSync) GetStatus() scheduler.SchedulerStatus { return f.status }
func (f *fakeSync) TriggerSync() bool                    { f.triggered++; return true }
func (f *fakeSync) SyncNow(context.Context) (*syncpkg.SyncResult, error) {
	return f.result, f.err
}
func (f *fakeSync) SetOnlineStatus(online bool) {
	f.online = append(f.online, online)
	f.status.IsOnline = online
}

type fakeQueue struct {
	stats queue.Stats
	err   error
}

func (f *fakeQueue) Stats(context.Context) (queue.Stats, error) { return f.stats, f.err }

type fakeStats struct {
	from, to recurrence.Day
	id       string
	err      error
}

func (f *fakeStats) Completion(_ context.Context, from, to recurrence.Day) (*services.Completion, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return &services.Completion{From: from.String(), To: to.String(), Rate: 50}, nil
}

func (f *fakeStats) Schedule(_ context.Context, id string, from, to recurrence.Day) ([]string, error) {
	f.id, f.from, f.to = id, from, to
	if f.err != nil {
		return nil, f.err
	}
	return []string{from.String()}, nil
}

type fakeAnswers struct {
	id, date string
	value    models.ResponseValue
}

func (f *fakeAnswers) Answer(_ context.Context, id, date string, value models.ResponseValue) (*models.TrackingResponse, error) {
	f.id, f.date, f.value = id, date, value
	return &models.TrackingResponse{RecurringID: id, Date: date}, nil
}

type fakeDue struct{ day recurrence.Day }

func (f *fakeDue) DueOn(_ context.Context, day recurrence.Day, _ *time.Location) ([]*models.TrackingRecurring, error) {
	f.day = day
	return nil, nil
}

type fakeTrashRepo struct {
	table    string
	count    int
	restored []string
	purged   []string
}

func (f *fakeTrashRepo) Table() string { return f.table }
func (f *fakeTrashRepo) GetDeletedCount(context.Context) (int, error) {
	return f.count, nil
}
func (f *fakeTrashRepo) Restore(_ context.Context, id string) error {
	if id == "missing" {
		return apperrors.NotFound(f.table, id)
	}
	f.restored = append(f.restored, id)
	return nil
}
func (f *fakeTrashRepo) HardDelete(_ context.Context, id string) error {
	f.purged = append(f.purged, id)
	return nil
}

type fakeTrash map[string]*fakeTrashRepo

func (f fakeTrash) Trash(table string) (db.TrashRepository, error) {
	if r, ok := f[table]; ok {
		return r, nil
	}
	return nil, apperrors.Newf(apperrors.ErrNotFound, "unknown table %q", table)
}

func (f fakeTrash) Tables() []string {
	return []string{"journal_entries", "stock_products"}
}

type fixture struct {
	sync    *fakeSync
	queue   *fakeQueue
	stats   *fakeStats
	answers *fakeAnswers
	due     *fakeDue
	trash   fakeTrash
	router  http.Handler
}

var now = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sync: &fakeSync{status: scheduler.SchedulerStatus{
			IsRunning: true, IsOnline: true,
			Sync: status.Snapshot{Phase: status.Idle, Online: true, QueueSize: 2},
		}},
		queue:   &fakeQueue{stats: queue.Stats{Total: 2, ByEntity: map[string]int{"journal_entries": 2}}},
		stats:   &fakeStats{},
		answers: &fakeAnswers{},
		due:     &fakeDue{},
		trash: fakeTrash{
			"journal_entries": {table: "journal_entries", count: 3},
			"stock_products":  {table: "stock_products", count: 1},
		},
	}
	trackers := NewTrackerHandler(f.stats, f.answers, f.due, time.UTC)
	trackers.now = func() time.Time { return now }
	f.router = NewRouter(Handlers{
		Sync:     NewSyncHandler(f.sync, f.queue),
		Trackers: trackers,
		Trash:    NewTrashHandler(f.trash),
	}, zap.NewNop())
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

// =====================================================
// Sync
// =====================================================

func TestSyncHandler_GetStatus(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodGet, "/api/sync/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	body := decodeBody(t, rr)
	assert.Equal(t, "2 operations pending", body["label"])
	assert.Equal(t, true, body["isOnline"])
	assert.Equal(t, float64(2), body["queue"].(map[string]any)["total"])
	assert.Equal(t, "idle", body["sync"].(map[string]any)["status"])
}

func TestSyncHandler_GetStatusQueueError(t *testing.T) {
	f := setup(t)
	f.queue.err = apperrors.New(apperrors.ErrDatabase, "boom")
	rr := f.do(http.MethodGet, "/api/sync/status", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "DATABASE_ERROR", decodeBody(t, rr)["code"])
}

func TestSyncHandler_Trigger(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodPost, "/api/sync/trigger", "")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, 1, f.sync.triggered)
}

func TestSyncHandler_TriggerAndWait(t *testing.T) {
	f := setup(t)
	f.sync.result = &syncpkg.SyncResult{Pushed: 3}
	rr := f.do(http.MethodPost, "/api/sync/trigger?wait=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(3), decodeBody(t, rr)["pushed"])
	assert.Zero(t, f.sync.triggered)
}

func TestSyncHandler_TriggerAndWaitErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{syncpkg.ErrOffline, http.StatusServiceUnavailable},
		{syncpkg.ErrSyncInProgress, http.StatusConflict},
		{apperrors.New(apperrors.ErrSyncTransport, "dial"), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		f := setup(t)
		f.sync.err = tt.err
		rr := f.do(http.MethodPost, "/api/sync/trigger?wait=1", "")
		assert.Equal(t, tt.want, rr.Code, tt.err.Error())
	}
}

func TestSyncHandler_SetOnline(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodPost, "/api/sync/online", `{"online": false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []bool{false}, f.sync.online)
	assert.Equal(t, false, decodeBody(t, rr)["isOnline"])

	for _, body := range []string{"", "{}", `{"online": "yes"}`} {
		rr = f.do(http.MethodPost, "/api/sync/online", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Len(t, f.sync.online, 1)
}

// =====================================================
// Trackers and stats
// =====================================================

func TestTrackerHandler_ScheduleDefaultsToLast30Days(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodGet, "/api/trackers/abc/schedule", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", f.stats.id)
	assert.Equal(t, "2025-12-12", f.stats.from.String())
	assert.Equal(t, "2026-01-10", f.stats.to.String())
	assert.Equal(t, []any{"2025-12-12"}, decodeBody(t, rr)["dates"])
}

func TestTrackerHandler_ScheduleRange(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodGet, "/api/trackers/abc/schedule?from=2026-01-01&to=2026-01-05", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2026-01-01", f.stats.from.String())
	assert.Equal(t, "2026-01-05", f.stats.to.String())

	rr = f.do(http.MethodGet, "/api/trackers/abc/schedule?from=01/01/2026", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.stats.err = apperrors.NotFound("tracking_recurrings", "abc")
	rr = f.do(http.MethodGet, "/api/trackers/abc/schedule", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrackerHandler_Due(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodGet, "/api/trackers/due", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2026-01-10", f.due.day.String())
	assert.Equal(t, []any{}, decodeBody(t, rr)["trackers"])

	rr = f.do(http.MethodGet, "/api/trackers/due?date=2026-02-01", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2026-02-01", f.due.day.String())

	rr = f.do(http.MethodGet, "/api/trackers/due?date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrackerHandler_Answer(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodPut, "/api/trackers/abc/responses/2026-01-10", `{"valueBoolean": true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", f.answers.id)
	assert.Equal(t, "2026-01-10", f.answers.date)
	require.NotNil(t, f.answers.value.ValueBoolean)
	assert.True(t, *f.answers.value.ValueBoolean)

	rr = f.do(http.MethodPut, "/api/trackers/abc/responses/2026-01-10", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrackerHandler_Completion(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodGet, "/api/stats/completion", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2026-01-04", f.stats.from.String())
	assert.Equal(t, float64(50), decodeBody(t, rr)["rate"])

	f.stats.err = apperrors.New(apperrors.ErrInvalid, "range starts after it ends")
	rr = f.do(http.MethodGet, "/api/stats/completion?from=2026-01-05&to=2026-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_INPUT", decodeBody(t, rr)["code"])
}

// =====================================================
// Trash
// =====================================================

func TestTrashHandler(t *testing.T) {
	f := setup(t)

	rr := f.do(http.MethodGet, "/api/trash", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(4), decodeBody(t, rr)["total"])

	rr = f.do(http.MethodGet, "/api/trash/journal_entries", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(3), decodeBody(t, rr)["count"])

	rr = f.do(http.MethodGet, "/api/trash/sync_queue", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodPost, "/api/trash/journal_entries/e1/restore", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"e1"}, f.trash["journal_entries"].restored)

	rr = f.do(http.MethodPost, "/api/trash/journal_entries/missing/restore", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodDelete, "/api/trash/stock_products/p1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []string{"p1"}, f.trash["stock_products"].purged)
}

// =====================================================
// Misc
// =====================================================

func TestHealthAndNavigation(t *testing.T) {
	f := setup(t)
	rr := f.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/api/navigation", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["pillars"], 3)

	rr = f.do(http.MethodPost, "/api/navigation/create", `{"to": "/settings"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWriteError_ValidationFields(t *testing.T) {
	v := &apperrors.ValidationError{Entity: "journal_entries"}
	v.Add("content", "is required")

	rr := httptest.NewRecorder()
	writeError(rr, v)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, []any{"content: is required"}, body["fields"])
}
