package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
	"github.com/kimhsiao/lifetrack/backend/internal/services"
)

// StatsReporter computes completion views.
type StatsReporter interface {
	Completion(ctx context.Context, from, to recurrence.Day) (*services.Completion, error)
	Schedule(ctx context.Context, trackerID string, from, to recurrence.Day) ([]string, error)
}

// Answerer records tracker responses.
type Answerer interface {
	Answer(ctx context.Context, recurringID, date string, value models.ResponseValue) (*models.TrackingResponse, error)
}

// DueLister lists the trackers due on a day.
type DueLister interface {
	DueOn(ctx context.Context, day recurrence.Day, loc *time.Location) ([]*models.TrackingRecurring, error)
}

// TrackerHandler serves tracker schedules, answers and stats.
type TrackerHandler struct {
	stats   StatsReporter
	answers Answerer
	due     DueLister
	loc     *time.Location
	now     func() time.Time
}

// NewTrackerHandler creates a TrackerHandler computing days in loc.
func NewTrackerHandler(stats StatsReporter, answers Answerer, due DueLister, loc *time.Location) *TrackerHandler {
	if loc == nil {
		loc = time.Local
	}
	return &TrackerHandler{stats: stats, answers: answers, due: due, loc: loc, now: time.Now}
}

func (h *TrackerHandler) today() recurrence.Day {
	return recurrence.DayIn(h.now(), h.loc)
}

// Schedule handles GET /trackers/{id}/schedule?from=&to=
// The range defaults to the last 30 days.
func (h *TrackerHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	from, to, err := dayRange(r, today.AddDays(-29), today)
	if err != nil {
		writeError(w, err)
		return
	}

	dates, err := h.stats.Schedule(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":  from.String(),
		"to":    to.String(),
		"dates": dates,
	})
}

// Due handles GET /trackers/due?date=
// The day defaults to today.
func (h *TrackerHandler) Due(w http.ResponseWriter, r *http.Request) {
	day := h.today()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := recurrence.ParseDay(s)
		if err != nil {
			badRequest(w, "invalid date %q", s)
			return
		}
		day = d
	}

	trackers, err := h.due.DueOn(r.Context(), day, h.loc)
	if err != nil {
		writeError(w, err)
		return
	}
	if trackers == nil {
		trackers = []*models.TrackingRecurring{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":     day.String(),
		"trackers": trackers,
	})
}

// Answer handles PUT /trackers/{id}/responses/{date}
// The body is a ResponseValue; answering a routine tracker moves stock.
func (h *TrackerHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var value models.ResponseValue
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	resp, err := h.answers.Answer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "date"), value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Completion handles GET /stats/completion?from=&to=
// The range defaults to the last 7 days.
func (h *TrackerHandler) Completion(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	from, to, err := dayRange(r, today.AddDays(-6), today)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.stats.Completion(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
