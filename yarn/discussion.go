package yarn

import (
	"encoding/json"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job and of the record it produces.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true for completed and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ActorProfile is the exported description of an actor, kept in records
// so a run can be reproduced.
type ActorProfile struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Model        string   `json:"model,omitempty"`
	Context      string   `json:"context,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Attributes   []string `json:"attributes,omitempty"`
}

// DiscussionConfig records the parameters a discussion ran with.
type DiscussionConfig struct {
	Users           []ActorProfile     `json:"users"`
	Moderator       *ActorProfile      `json:"moderator,omitempty"`
	TurnPolicy      string             `json:"turn_policy"`
	TurnParams      map[string]float64 `json:"turn_params,omitempty"`
	ContextLength   int                `json:"context_length"`
	MaxTurns        int                `json:"max_turns"`
	Topic           string             `json:"topic,omitempty"`
	SeedOpinion     string             `json:"seed_opinion,omitempty"`
	SeedOpinionUser string             `json:"seed_opinion_user,omitempty"`
	ConfigHash      string             `json:"config_hash,omitempty"`
}

// Failure is a recorded participant failure.
type Failure struct {
	Participant string    `json:"participant"`
	Turn        int       `json:"turn"`
	Error       string    `json:"error"`
	Removed     bool      `json:"removed"`
	Time        time.Time `json:"time"`
}

// Discussion is the transcript of one run of the turn-taking loop.
// Messages are append-only; ordinals are dense starting at 0.
type Discussion struct {
	ID                string           `json:"id"`
	CreatedAt         time.Time        `json:"created_at"`
	EndedAt           *time.Time       `json:"ended_at,omitempty"`
	Participants      []string         `json:"participants"`
	Moderator         string           `json:"moderator,omitempty"`
	Config            DiscussionConfig `json:"config"`
	Messages          []*Message       `json:"messages"`
	Status            Status           `json:"status"`
	TerminationReason string           `json:"termination_reason,omitempty"`
	Failures          []Failure        `json:"failures,omitempty"`

	mu sync.RWMutex
}

// NewDiscussion creates an empty discussion for the given participants.
func NewDiscussion(participants []string, moderator string) *Discussion {
	return &Discussion{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now(),
		Participants: slices.Clone(participants),
		Moderator:    moderator,
		Messages:     make([]*Message, 0),
		Status:       StatusNotStarted,
	}
}

// AddParticipant registers a speaker (e.g. a one-shot seed opinion user).
func (d *Discussion) AddParticipant(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.Contains(d.Participants, name) {
		d.Participants = append(d.Participants, name)
	}
}

// HasParticipant returns true if name may speak in this discussion.
func (d *Discussion) HasParticipant(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hasParticipantLocked(name)
}

func (d *Discussion) hasParticipantLocked(name string) bool {
	return name != "" && (name == d.Moderator || slices.Contains(d.Participants, name))
}

// NextOrdinal returns the ordinal the next appended message must carry.
func (d *Discussion) NextOrdinal() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.Messages)
}

// Append adds msg to the transcript. The ordinal must equal NextOrdinal and
// the speaker must be a participant or the moderator.
func (d *Discussion) Append(msg *Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if msg == nil {
		return &ValidationError{Field: "message", Message: "message is nil"}
	}
	if msg.Ordinal != len(d.Messages) {
		return &ValidationError{
			Field:   "ordinal",
			Message: "expected ordinal " + strconv.Itoa(len(d.Messages)) + ", got " + strconv.Itoa(msg.Ordinal),
		}
	}
	if !d.hasParticipantLocked(msg.Speaker) {
		return &ValidationError{Field: "speaker", Message: "speaker " + strconv.Quote(msg.Speaker) + " is not a participant"}
	}
	d.Messages = append(d.Messages, msg)
	return nil
}

// History returns the last n messages (or all if n <= 0).
func (d *Discussion) History(limit int) []*Message {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 || limit >= len(d.Messages) {
		result := make([]*Message, len(d.Messages))
		copy(result, d.Messages)
		return result
	}
	return Window(d.Messages, limit)
}

// Length returns the number of messages.
func (d *Discussion) Length() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.Messages)
}

// LastMessage returns the most recent message, or nil if empty.
func (d *Discussion) LastMessage() *Message {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.Messages) == 0 {
		return nil
	}
	return d.Messages[len(d.Messages)-1]
}

// SetStatus updates the lifecycle status.
func (d *Discussion) SetStatus(s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Status = s
}

// CurrentStatus returns the lifecycle status.
func (d *Discussion) CurrentStatus() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.Status
}

// RecordFailure appends a participant failure.
func (d *Discussion) RecordFailure(f Failure) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	d.Failures = append(d.Failures, f)
}

// Finish stamps the terminal status and termination reason.
func (d *Discussion) Finish(status Status, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	d.EndedAt = &now
	d.Status = status
	d.TerminationReason = reason
}

// MarshalJSON encodes the discussion under its read lock.
func (d *Discussion) MarshalJSON() ([]byte, error) {
	type plain Discussion
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.Marshal((*plain)(d))
}

// Validate checks ids, dense ordinals and speaker membership.
func (d *Discussion) Validate() *ValidationError {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if d.CreatedAt.IsZero() {
		return &ValidationError{Field: "created_at", Message: "created_at is required"}
	}
	if d.EndedAt != nil && d.EndedAt.Before(d.CreatedAt) {
		return &ValidationError{Field: "ended_at", Message: "ended_at must not be before created_at"}
	}

	for i, msg := range d.Messages {
		idx := strconv.Itoa(i)
		if msg == nil {
			return &ValidationError{Field: "messages", Message: "message at index " + idx + " is nil"}
		}
		if err := msg.Validate(); err != nil {
			return err.within("messages[" + idx + "]")
		}
		if msg.Ordinal != i {
			return &ValidationError{Field: "messages[" + idx + "].ordinal", Message: "ordinals must be dense and increasing"}
		}
		if !d.hasParticipantLocked(msg.Speaker) {
			return &ValidationError{Field: "messages[" + idx + "].speaker", Message: "speaker is not a participant"}
		}
	}
	return nil
}
