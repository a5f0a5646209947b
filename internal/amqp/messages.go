package amqp

import (
	"encoding/json"
	"time"
)

// DraftSyncMessage asks the worker to archive one draft. It carries only
// the id and version; the worker reads the draft from the store.
type DraftSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDraftSyncMessage(id, version int64) *DraftSyncMessage {
	return &DraftSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *DraftSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DraftSyncMessageFromJSON(data []byte) (*DraftSyncMessage, error) {
	var msg DraftSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
