package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/dimits-ts/syndisco/pkg/index"
	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/yarn"
)

type handlers struct {
	opts Options
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients"`
	Index   bool   `json:"index"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.opts.Version,
		Clients: h.opts.Hub.ClientCount(),
		Index:   h.opts.Index != nil,
	})
}

func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	if h.opts.Metrics == nil {
		WriteError(w, http.StatusServiceUnavailable, "metrics_disabled", "Metrics are not enabled")
		return
	}
	h.opts.Metrics.Handler().ServeHTTP(w, r)
}

// DiscussionSummary is one entry of GET /api/discussions.
type DiscussionSummary struct {
	ID                string      `json:"id"`
	CreatedAt         time.Time   `json:"createdAt"`
	EndedAt           *time.Time  `json:"endedAt,omitempty"`
	Status            yarn.Status `json:"status"`
	TerminationReason string      `json:"terminationReason,omitempty"`
	Topic             string      `json:"topic,omitempty"`
	Participants      []string    `json:"participants"`
	Moderator         string      `json:"moderator,omitempty"`
	Messages          int         `json:"messages"`
	Failures          int         `json:"failures"`
	ConfigHash        string      `json:"configHash,omitempty"`
}

func summarize(d *yarn.Discussion) DiscussionSummary {
	return DiscussionSummary{
		ID:                d.ID,
		CreatedAt:         d.CreatedAt,
		Status:            d.CurrentStatus(),
		TerminationReason: d.TerminationReason,
		Topic:             d.Config.Topic,
		Participants:      d.Participants,
		Moderator:         d.Moderator,
		Messages:          d.Length(),
		Failures:          len(d.Failures),
		ConfigHash:        d.Config.ConfigHash,
		EndedAt:           d.EndedAt,
	}
}

// listDiscussions supports ?status= and ?limit=. Unreadable files are skipped.
func (h *handlers) listDiscussions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	status := yarn.Status(r.URL.Query().Get("status"))

	out := []DiscussionSummary{}
	for d, err := range h.opts.Discussions.Discussions() {
		if err != nil {
			continue
		}
		if status != "" && d.CurrentStatus() != status {
			continue
		}
		out = append(out, summarize(d))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *handlers) getDiscussion(w http.ResponseWriter, r *http.Request) {
	d, err := h.opts.Discussions.FindDiscussion(PathParam(r, "id"))
	if errors.Is(err, os.ErrNotExist) {
		WriteError(w, http.StatusNotFound, "discussion_not_found", err.Error())
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, d)
}

func (h *handlers) discussionAnnotations(w http.ResponseWriter, r *http.Request) {
	if h.opts.Annotations == nil {
		WriteError(w, http.StatusServiceUnavailable, "annotations_disabled", "No annotation directory configured")
		return
	}
	d, err := h.opts.Discussions.FindDiscussion(PathParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusNotFound, "discussion_not_found", err.Error())
		return
	}
	out := []*yarn.Annotation{}
	for a, err := range h.opts.Annotations.Annotations() {
		if err == nil && a.DiscussionID == d.ID {
			out = append(out, a)
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

// listRuns supports ?kind=, ?status=, ?source= and ?limit=.
func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.opts.Index == nil {
		WriteError(w, http.StatusServiceUnavailable, "index_disabled", "The run index is not enabled")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	runs, err := h.opts.Index.List(r.Context(), index.Filter{
		Kind:   job.Kind(q.Get("kind")),
		Status: job.State(q.Get("status")),
		Source: q.Get("source"),
		Limit:  limit,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "index_failed", err.Error())
		return
	}
	if runs == nil {
		runs = []index.Run{}
	}
	WriteJSON(w, http.StatusOK, runs)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	if h.opts.Index == nil {
		WriteError(w, http.StatusServiceUnavailable, "index_disabled", "The run index is not enabled")
		return
	}
	run, err := h.opts.Index.Get(r.Context(), PathParam(r, "id"))
	if errors.Is(err, index.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "run_not_found", "No run with id "+PathParam(r, "id"))
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "index_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}
