package amqp

import (
	"encoding/json"
	"time"
)

// FileCleanupMessage names file-store paths that no longer have a document
// row. The worker deletes them; paths already gone are ignored.
type FileCleanupMessage struct {
	Paths     []string  `json:"paths"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewFileCleanupMessage(paths []string, reason string) *FileCleanupMessage {
	return &FileCleanupMessage{
		Paths:     paths,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *FileCleanupMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func FileCleanupMessageFromJSON(data []byte) (*FileCleanupMessage, error) {
	var msg FileCleanupMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
