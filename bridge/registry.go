package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
)

// PendingRequest is an outstanding call awaiting its correlated response.
// The slot accepts at most one value and is owned by the Registry until resolved or cancelled.
type PendingRequest struct {
	CorrelationID string
	CreatedAt     time.Time

	slot chan json.RawMessage
}

// Done is fed exactly once when the request is resolved. It is never closed.
func (p *PendingRequest) Done() <-chan json.RawMessage { return p.slot }

// Registry is the in-memory correlation table shared by a Client and an Intake.
// It is safe for concurrent use and holds no lock across I/O.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*PendingRequest
	now     func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]*PendingRequest),
		now:     time.Now,
	}
}

// Register stores a fresh slot for correlationID.
// A duplicate id means the id generator is broken and is reported as ErrDuplicateCorrelationID.
func (r *Registry) Register(correlationID string) (*PendingRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[correlationID]; exists {
		return nil, fmt.Errorf("register %s: %w", correlationID, berr.ErrDuplicateCorrelationID)
	}

	p := &PendingRequest{
		CorrelationID: correlationID,
		CreatedAt:     r.now(),
		slot:          make(chan json.RawMessage, 1),
	}
	r.pending[correlationID] = p

	return p, nil
}

// Resolve assigns value to the slot for correlationID and removes it.
// It reports false when no slot exists; the value is then discarded.
func (r *Registry) Resolve(correlationID string, value json.RawMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[correlationID]
	if !ok {
		return false
	}

	delete(r.pending, correlationID)
	// buffered with capacity 1 and fed only here, under the lock, after removal
	p.slot <- value

	return true
}

// Cancel removes the slot for correlationID without resolving it.
// It reports false when the slot was already resolved or never existed.
func (r *Registry) Cancel(correlationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[correlationID]; !ok {
		return false
	}

	delete(r.pending, correlationID)

	return true
}

// Len returns the number of outstanding requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}
