package api

import (
	"time"

	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/yarn"
)

// StartEvent announces a job that began running.
type StartEvent struct {
	Kind  job.Kind `json:"kind"`
	JobID string   `json:"jobId"`
}

// TurnEvent announces a scheduled speaker or annotated message.
type TurnEvent struct {
	Kind    job.Kind `json:"kind"`
	JobID   string   `json:"jobId"`
	Turn    int      `json:"turn"`
	Speaker string   `json:"speaker"`
}

// MessageEvent carries a message appended to a discussion.
type MessageEvent struct {
	DiscussionID string    `json:"discussionId"`
	Ordinal      int       `json:"ordinal"`
	Speaker      string    `json:"speaker"`
	Text         string    `json:"text"`
	Model        string    `json:"model,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RemovalEvent reports a participant isolated after generation failures.
type RemovalEvent struct {
	DiscussionID string `json:"discussionId"`
	Participant  string `json:"participant"`
	Error        string `json:"error"`
}

// FinishEvent reports a persisted job.
type FinishEvent struct {
	Kind       job.Kind  `json:"kind"`
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	Status     job.State `json:"status"`
	Reason     string    `json:"reason"`
	Messages   int       `json:"messages"`
	Failures   int       `json:"failures"`
	Path       string    `json:"path,omitempty"`
	DurationMS int64     `json:"durationMs"`
}

// HubObserver publishes job events to a hub.
type HubObserver struct {
	hub *Hub
}

var _ job.Observer = (*HubObserver)(nil)

// NewHubObserver returns an observer publishing to hub.
func NewHubObserver(hub *Hub) *HubObserver {
	return &HubObserver{hub: hub}
}

func (o *HubObserver) OnStart(kind job.Kind, jobID string) {
	o.hub.Publish(ChannelJobs, newEnvelope(EventTypeJobStarted, StartEvent{Kind: kind, JobID: jobID}))
}

func (o *HubObserver) OnTurn(kind job.Kind, jobID string, turn int, speaker string) {
	o.hub.Publish(ChannelJobs, newEnvelope(EventTypeTurn, TurnEvent{
		Kind:    kind,
		JobID:   jobID,
		Turn:    turn,
		Speaker: speaker,
	}))
}

func (o *HubObserver) OnMessage(jobID string, msg *yarn.Message) {
	o.hub.Publish(ChannelMessages, newEnvelope(EventTypeMessage, MessageEvent{
		DiscussionID: jobID,
		Ordinal:      msg.Ordinal,
		Speaker:      msg.Speaker,
		Text:         msg.Text,
		Model:        msg.Model,
		Timestamp:    msg.Timestamp,
	}))
}

func (o *HubObserver) OnParticipantRemoved(jobID, participant string, err error) {
	ev := RemovalEvent{DiscussionID: jobID, Participant: participant}
	if err != nil {
		ev.Error = err.Error()
	}
	o.hub.Publish(ChannelJobs, newEnvelope(EventTypeParticipantRemoved, ev))
}

func (o *HubObserver) OnFinish(s job.Summary) {
	o.hub.Publish(ChannelJobs, newEnvelope(EventTypeJobFinished, FinishEvent{
		Kind:       s.Kind,
		ID:         s.ID,
		Source:     s.Source,
		Status:     s.Status,
		Reason:     s.Reason,
		Messages:   s.Messages,
		Failures:   s.Failures,
		Path:       s.Path,
		DurationMS: s.Duration.Milliseconds(),
	}))
}
