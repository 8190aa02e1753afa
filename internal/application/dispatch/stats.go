package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/notify-dispatch/internal/domain"
)

// Stats accumulates per-method outcomes of one request while sends complete
// concurrently. Success counters are lock-free; the error map is guarded by
// a mutex since failures are the rare path.
type Stats struct {
	sent map[domain.DeliveryMethod]*atomic.Int64

	mu           sync.Mutex
	errors       map[domain.DeliveryMethod]map[string]string
	targetErrors map[string]string
}

// NewStats builds an accumulator with a counter per enabled method, so the
// counter map is never mutated during the fan-out.
func NewStats(methods []domain.DeliveryMethod) *Stats {
	s := &Stats{
		sent:   make(map[domain.DeliveryMethod]*atomic.Int64, len(methods)),
		errors: make(map[domain.DeliveryMethod]map[string]string),
	}
	for _, m := range methods {
		s.sent[m] = &atomic.Int64{}
	}
	return s
}

// ReportSent records one successful send.
func (s *Stats) ReportSent(m domain.DeliveryMethod) {
	if c, ok := s.sent[m]; ok {
		c.Add(1)
	}
}

// ReportError records one failed or skipped send, keyed by recipient identity.
func (s *Stats) ReportError(m domain.DeliveryMethod, recipientID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errors[m] == nil {
		s.errors[m] = make(map[string]string)
	}
	s.errors[m][recipientID] = message
}

// ReportTargetError records a target that was excluded from the dispatch
// because it could not be resolved.
func (s *Stats) ReportTargetError(targetID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.targetErrors == nil {
		s.targetErrors = make(map[string]string)
	}
	s.targetErrors[targetID] = message
}

// Snapshot freezes the accumulator into the persisted stats shape.
func (s *Stats) Snapshot() *domain.RequestStats {
	out := &domain.RequestStats{
		Sent:   make(map[domain.DeliveryMethod]int64, len(s.sent)),
		Errors: make(map[domain.DeliveryMethod]map[string]string),
	}
	for m, c := range s.sent {
		out.Sent[m] = c.Load()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for m, errs := range s.errors {
		cp := make(map[string]string, len(errs))
		for k, v := range errs {
			cp[k] = v
		}
		out.Errors[m] = cp
	}
	if len(s.targetErrors) > 0 {
		out.TargetErrors = make(map[string]string, len(s.targetErrors))
		for k, v := range s.targetErrors {
			out.TargetErrors[k] = v
		}
	}
	return out
}
