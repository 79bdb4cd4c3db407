// Package idgen generates process-unique identifiers.
package idgen

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GetID returns a random UUID (version 4) string.
func GetID() string {
	return uuid.New().String()
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSortableID returns a ULID. IDs created by one process sort in creation
// order, even within the same millisecond.
func NewSortableID() string {
	return newSortableIDAt(time.Now())
}

func newSortableIDAt(t time.Time) string {
	// ulid.MonotonicReader is not safe for concurrent use.
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
