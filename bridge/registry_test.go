package bridge_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	berr "github.com/next-trace/scg-wallet-bridge/contract/errors"
	"github.com/next-trace/scg-wallet-bridge/bridge"
)

func TestRegistry_RegisterResolve(t *testing.T) {
	r := bridge.NewRegistry()

	p, err := r.Register("c1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if p.CorrelationID != "c1" || p.CreatedAt.IsZero() {
		t.Fatalf("unexpected pending request: %+v", p)
	}

	if !r.Resolve("c1", json.RawMessage(`{"ok":true}`)) {
		t.Fatalf("resolve should succeed")
	}

	if got := string(<-p.Done()); got != `{"ok":true}` {
		t.Fatalf("slot value: %s", got)
	}

	if r.Len() != 0 {
		t.Fatalf("slot must be removed on resolve, len=%d", r.Len())
	}

	// second resolution of the same id is a late/duplicate response
	if r.Resolve("c1", json.RawMessage(`{}`)) {
		t.Fatalf("duplicate resolve must report false")
	}
}

func TestRegistry_DuplicateCorrelationID(t *testing.T) {
	r := bridge.NewRegistry()

	if _, err := r.Register("dup"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := r.Register("dup"); !errors.Is(err, berr.ErrDuplicateCorrelationID) {
		t.Fatalf("want duplicate correlation id, got %v", err)
	}

	// id is reusable once removed
	r.Cancel("dup")

	if _, err := r.Register("dup"); err != nil {
		t.Fatalf("re-register after cancel: %v", err)
	}
}

func TestRegistry_CancelThenResolveIsDropped(t *testing.T) {
	r := bridge.NewRegistry()
	p, _ := r.Register("c1")

	if !r.Cancel("c1") {
		t.Fatalf("cancel should remove existing slot")
	}

	if r.Cancel("c1") {
		t.Fatalf("second cancel must report false")
	}

	if r.Resolve("c1", json.RawMessage(`1`)) {
		t.Fatalf("resolve after cancel must report false")
	}

	select {
	case v := <-p.Done():
		t.Fatalf("cancelled slot received %s", v)
	default:
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := bridge.NewRegistry()
	if r.Resolve("missing", json.RawMessage(`1`)) {
		t.Fatalf("resolve of unknown id must report false")
	}
}

func TestRegistry_ResolveAndCancelRace_ExactlyOneWins(t *testing.T) {
	r := bridge.NewRegistry()

	const n = 500
	var resolved, cancelled atomic.Int32

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i)
		if _, err := r.Register(id); err != nil {
			t.Fatalf("register: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if r.Resolve(id, json.RawMessage(`1`)) {
				resolved.Add(1)
			}
		}()

		go func() {
			defer wg.Done()
			if r.Cancel(id) {
				cancelled.Add(1)
			}
		}()

		wg.Wait()
	}

	if total := resolved.Load() + cancelled.Load(); total != n {
		t.Fatalf("want exactly one winner per id, got resolved=%d cancelled=%d", resolved.Load(), cancelled.Load())
	}

	if r.Len() != 0 {
		t.Fatalf("registry leaked %d entries", r.Len())
	}
}
