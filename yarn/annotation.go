package yarn

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AnnotationItem is the judgment for one message of the source discussion.
type AnnotationItem struct {
	Ordinal  int    `json:"ordinal"`
	Speaker  string `json:"speaker"`
	Message  string `json:"message"`
	Judgment string `json:"judgment"`
	Error    string `json:"error,omitempty"`
}

// Failed returns true if the annotator could not judge the message.
func (i AnnotationItem) Failed() bool {
	return i.Error != ""
}

// Annotation is one labeling pass over a discussion.
type Annotation struct {
	ID                string           `json:"id"`
	DiscussionID      string           `json:"discussion_id"`
	Annotator         ActorProfile     `json:"annotator"`
	ContextLength     int              `json:"context_length"`
	IncludeModerator  bool             `json:"include_moderator"`
	CreatedAt         time.Time        `json:"created_at"`
	EndedAt           *time.Time       `json:"ended_at,omitempty"`
	Items             []AnnotationItem `json:"items"`
	Status            Status           `json:"status"`
	TerminationReason string           `json:"termination_reason,omitempty"`

	mu sync.RWMutex
}

// NewAnnotation creates an empty annotation of discussionID.
func NewAnnotation(discussionID string, annotator ActorProfile) *Annotation {
	return &Annotation{
		ID:           uuid.New().String(),
		DiscussionID: discussionID,
		Annotator:    annotator,
		CreatedAt:    time.Now(),
		Items:        make([]AnnotationItem, 0),
		Status:       StatusNotStarted,
	}
}

// AddItem appends a per-message judgment.
func (a *Annotation) AddItem(item AnnotationItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Items = append(a.Items, item)
}

// Counts returns the number of successful and failed items.
func (a *Annotation) Counts() (ok, failed int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, it := range a.Items {
		if it.Failed() {
			failed++
		} else {
			ok++
		}
	}
	return ok, failed
}

// SetStatus updates the lifecycle status.
func (a *Annotation) SetStatus(s Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Status = s
}

// Finish stamps the terminal status and termination reason.
func (a *Annotation) Finish(status Status, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	a.EndedAt = &now
	a.Status = status
	a.TerminationReason = reason
}

// MarshalJSON encodes the annotation under its read lock.
func (a *Annotation) MarshalJSON() ([]byte, error) {
	type plain Annotation
	a.mu.RLock()
	defer a.mu.RUnlock()
	return json.Marshal((*plain)(a))
}

// Validate checks required fields and item order.
func (a *Annotation) Validate() *ValidationError {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if a.DiscussionID == "" {
		return &ValidationError{Field: "discussion_id", Message: "discussion_id is required"}
	}
	for i := 1; i < len(a.Items); i++ {
		if a.Items[i].Ordinal <= a.Items[i-1].Ordinal {
			return &ValidationError{
				Field:   "items[" + strconv.Itoa(i) + "].ordinal",
				Message: "item ordinals must be strictly increasing",
			}
		}
	}
	return nil
}
