package eventgraph

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newEvent builds the next event in the chain after prevHash.
func newEvent(prevHash, eventType, source string, content map[string]any) (*Event, []byte, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal content: %w", err)
	}

	e := &Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      eventType,
		Timestamp: time.Now().Truncate(time.Microsecond),
		Source:    source,
		Content:   content,
		PrevHash:  prevHash,
	}
	e.Hash = computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, contentJSON)
	return e, contentJSON, nil
}

// verifyLink checks e against the hash of its predecessor. rawContent is the
// content as stored, when the backend keeps it; nil means re-marshal only.
func verifyLink(i int, e *Event, prevHash string, rawContent []byte) error {
	if e.PrevHash != prevHash {
		return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
	}
	remarshalled, _ := json.Marshal(e.Content)
	expected := computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, remarshalled)
	if e.Hash == expected {
		return nil
	}
	if rawContent != nil {
		if raw := computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, rawContent); e.Hash == raw {
			return nil
		}
	}
	return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, expected)
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, eventType, source string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, eventType, source, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}
