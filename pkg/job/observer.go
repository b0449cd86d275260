package job

import (
	"time"

	"github.com/dimits-ts/syndisco/yarn"
)

// Kind distinguishes discussion jobs from annotation jobs.
type Kind string

const (
	KindDiscussion Kind = "discussion"
	KindAnnotation Kind = "annotation"
)

// Summary describes a finished job.
type Summary struct {
	Kind     Kind          `json:"kind"`
	ID       string        `json:"id"`
	Source   string        `json:"source,omitempty"` // discussion id, for annotations
	Status   State         `json:"status"`
	Reason   string        `json:"reason"`
	Messages int           `json:"messages"`
	Failures int           `json:"failures"`
	Path     string        `json:"path,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Observer receives job progress. Callbacks run on the job's goroutine and
// must not block.
type Observer interface {
	// OnStart is called once, when the job begins running.
	OnStart(kind Kind, jobID string)
	// OnTurn is called before a participant is asked to speak, or before an
	// annotation item is judged.
	OnTurn(kind Kind, jobID string, turn int, speaker string)
	// OnMessage is called after a message is appended to a discussion.
	OnMessage(jobID string, msg *yarn.Message)
	// OnParticipantRemoved is called when a failing participant leaves the
	// active set.
	OnParticipantRemoved(jobID, participant string, err error)
	// OnFinish is called once, after the record is persisted.
	OnFinish(s Summary)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnStart(Kind, string)                       {}
func (NopObserver) OnTurn(Kind, string, int, string)           {}
func (NopObserver) OnMessage(string, *yarn.Message)            {}
func (NopObserver) OnParticipantRemoved(string, string, error) {}
func (NopObserver) OnFinish(Summary)                           {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) OnStart(kind Kind, jobID string) {
	for _, obs := range o {
		obs.OnStart(kind, jobID)
	}
}

func (o Observers) OnTurn(kind Kind, jobID string, turn int, speaker string) {
	for _, obs := range o {
		obs.OnTurn(kind, jobID, turn, speaker)
	}
}

func (o Observers) OnMessage(jobID string, msg *yarn.Message) {
	for _, obs := range o {
		obs.OnMessage(jobID, msg)
	}
}

func (o Observers) OnParticipantRemoved(jobID, participant string, err error) {
	for _, obs := range o {
		obs.OnParticipantRemoved(jobID, participant, err)
	}
}

func (o Observers) OnFinish(s Summary) {
	for _, obs := range o {
		obs.OnFinish(s)
	}
}
