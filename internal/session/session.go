package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
)

var (
	// ErrSessionNotFound is returned by Read and Update for an unknown id
	ErrSessionNotFound = cnst.ErrSessionNotFound
	// ErrSessionExists is returned by Create for an id that is already stored
	ErrSessionExists = cnst.ErrSessionExists
)

// Data is the serialized projection of a live connection
type Data struct {
	Rooms        []string `json:"rooms"`
	Handshake    any      `json:"handshake"`
	DecodedToken any      `json:"decoded_token"`
}

// Snapshot is what the relay hands to the store on every mutation
type Snapshot struct {
	ID   string
	Data Data
}

// Record is a stored session
type Record struct {
	ID        string    `json:"id"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps one record per connected socket.
// The backing table or key space is volatile: Init wipes it.
// Operations on different ids may run concurrently; operations on the
// same id are not serialized by the store.
type Store interface {
	// Init connects to the backend and resets the session table.
	Init(ctx context.Context) error

	// Create inserts a record, failing with ErrSessionExists on a duplicate id.
	Create(ctx context.Context, snap *Snapshot) error

	// Read returns the record or ErrSessionNotFound.
	Read(ctx context.Context, id string) (*Record, error)

	// Update overwrites the data of an existing record or fails with ErrSessionNotFound.
	Update(ctx context.Context, snap *Snapshot) error

	// Delete removes a record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases the backend connection.
	Close() error
}

func encodeData(d Data) (string, error) {
	if d.Rooms == nil {
		d.Rooms = []string{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode session data: %w", err)
	}
	return string(b), nil
}

func decodeData(s string) (Data, error) {
	var d Data
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return d, fmt.Errorf("failed to decode session data: %w", err)
	}
	return d, nil
}
