package kernel

import "github.com/k9ran/phycore/internal/tag"

// Stub is a Doer that performs no real DSP math and simply maps an input
// event's kind to a fixed completion kind. It stands in for the actual
// FFT/LDPC/beamforming/QAM kernels, which spec.md §1 specifies only by
// contract. cmd/phycore and the worker pool's tests use Stub so the
// pipeline can be exercised without real signal processing.
type Stub struct {
	kind       Kind
	completion tag.EventKind
	onRun      func(tag.Event) // optional hook for tests to observe dispatch
}

// NewStub builds a Stub Doer of the given kind that always reports
// completion for every event it runs.
func NewStub(kind Kind, completion tag.EventKind) *Stub {
	return &Stub{kind: kind, completion: completion}
}

// WithHook attaches an observer called synchronously on every Run, for
// tests asserting task dispatch order.
func (s *Stub) WithHook(fn func(tag.Event)) *Stub {
	s.onRun = fn
	return s
}

func (s *Stub) Kind() Kind { return s.kind }

func (s *Stub) Run(in tag.Event) tag.EventKind {
	if s.onRun != nil {
		s.onRun(in)
	}
	return s.completion
}
