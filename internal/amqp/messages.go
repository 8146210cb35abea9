package amqp

import (
	"encoding/json"
	"time"

	"spesesync/internal/syncer"
)

// SyncEventMessage describes one sync status change. Failed passes carry
// the action that stopped the drain.
type SyncEventMessage struct {
	Status         string    `json:"status"`
	QueueLen       int       `json:"queue_len"`
	Attempted      int       `json:"attempted,omitempty"`
	Applied        int       `json:"applied,omitempty"`
	FailedKind     string    `json:"failed_kind,omitempty"`
	FailedRecordID string    `json:"failed_record_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMS     int64     `json:"duration_ms,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewSyncEventMessage(ev syncer.Event) *SyncEventMessage {
	msg := &SyncEventMessage{
		Status:    ev.Status.String(),
		QueueLen:  ev.QueueLen,
		Timestamp: ev.At,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if p := ev.Pass; p != nil {
		msg.Attempted = p.Attempted
		msg.Applied = p.Applied
		msg.DurationMS = p.Duration.Milliseconds()
		if p.Failed != nil {
			msg.FailedKind = string(p.Failed.Kind)
			msg.FailedRecordID = p.Failed.RecordID()
		}
		if p.Err != nil {
			msg.Error = p.Err.Error()
		}
	}
	return msg
}

// Failed reports whether the message describes a pass that stopped early.
func (m *SyncEventMessage) Failed() bool {
	return m.Error != ""
}

func (m *SyncEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncEventMessageFromJSON(data []byte) (*SyncEventMessage, error) {
	var msg SyncEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
