package cache

import (
	"context"
	"time"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/domain/record"
)

// State is the derived lifecycle state of an entry.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// FetchFunc retrieves the payload of one key. The store never retries it.
type FetchFunc func(ctx context.Context) (any, error)

// Entry is a point-in-time snapshot of a cache entry. A Loading entry may
// still carry the payload of a previous fetch.
type Entry struct {
	Key       record.Key `json:"key"`
	Payload   any        `json:"payload,omitempty"`
	FetchedAt time.Time  `json:"fetchedAt,omitempty"`
	State     State      `json:"state"`
}

// HasPayload reports whether the snapshot carries data.
func (e Entry) HasPayload() bool {
	return !e.FetchedAt.IsZero()
}

// entry is the store-owned record behind a key. All fields are guarded by
// Store.mu.
type entry struct {
	key        record.Key
	payload    any
	hasPayload bool
	fetchedAt  time.Time

	// staleGen is the store generation of the last invalidation. A flight
	// dispatched before it cannot make the entry fresh again.
	staleGen    uint64
	forcedStale bool

	flight *flight
}

// flight is one in-flight fetch shared by every waiter of a key.
type flight struct {
	done    chan struct{}
	gen     uint64
	payload any
	err     error
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
