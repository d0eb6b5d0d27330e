// Package interrupt implements the pause/resume protocol that lets any point
// inside a run (a tool hook, a node hook, a tool itself) suspend the whole run
// until an external party supplies a response.
//
// Interrupt identifiers are a pure function of (event kind, tool-use id, name),
// so raising "the same" interrupt again after a resume finds the stored
// response instead of pausing a second time.
package interrupt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrUnknownInterrupt is returned by Resume when a response references an
	// id that is not part of the state.
	ErrUnknownInterrupt = errors.New("interrupt: unknown interrupt id")

	// ErrInvalidResponse is returned when a resume payload is malformed.
	ErrInvalidResponse = errors.New("interrupt: invalid response")
)

// Interrupt is a single pause request. Response is the only field that changes
// after creation.
type Interrupt struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Reason   any    `json:"reason,omitempty"`
	Response any    `json:"response,omitempty"`

	answered bool
}

// Answered reports whether a response has been applied.
func (i *Interrupt) Answered() bool { return i.answered }

// NewID derives the deterministic interrupt id.
func NewID(kind, toolUseID, name string) string {
	return fmt.Sprintf("v1:%s:%s:%s", kind, toolUseID, uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)))
}

// Signal is the error returned from a raise point that has no response yet.
// It unwinds the current unit of work; orchestrators turn it into a suspended
// outcome instead of a failure.
type Signal struct {
	Interrupts []*Interrupt
}

func (s *Signal) Error() string {
	names := make([]string, 0, len(s.Interrupts))
	for _, i := range s.Interrupts {
		names = append(names, i.Name)
	}

	return fmt.Sprintf("interrupt raised: %s", strings.Join(names, ", "))
}

// Merge combines several signals into one, dropping duplicate ids.
func Merge(signals ...*Signal) *Signal {
	merged := &Signal{}
	seen := map[string]bool{}

	for _, s := range signals {
		if s == nil {
			continue
		}

		for _, i := range s.Interrupts {
			if seen[i.ID] {
				continue
			}

			seen[i.ID] = true
			merged.Interrupts = append(merged.Interrupts, i)
		}
	}

	if len(merged.Interrupts) == 0 {
		return nil
	}

	return merged
}

// AsSignal extracts a *Signal from err.
func AsSignal(err error) (*Signal, bool) {
	var sig *Signal
	if errors.As(err, &sig) {
		return sig, true
	}

	return nil, false
}

// Response is one externally supplied answer.
type Response struct {
	InterruptID string `json:"interruptId"`
	Response    any    `json:"response"`
}

// State holds the interrupts of one run. It is safe for concurrent use.
type State struct {
	mu         sync.Mutex
	interrupts map[string]*Interrupt
	context    map[string]any
	activated  bool
}

// NewState returns an inactive state.
func NewState() *State {
	return &State{
		interrupts: map[string]*Interrupt{},
		context:    map[string]any{},
	}
}

// Activated reports whether an interrupt has been raised since the last
// Deactivate.
func (s *State) Activated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.activated
}

// Deactivate clears interrupts, context and the activation flag together.
func (s *State) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interrupts = map[string]*Interrupt{}
	s.context = map[string]any{}
	s.activated = false
}

// Get returns the interrupt stored under id.
func (s *State) Get(id string) (*Interrupt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.interrupts[id]

	return i, ok
}

// Pending returns unanswered interrupts sorted by id.
func (s *State) Pending() []*Interrupt {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Interrupt

	for _, i := range s.interrupts {
		if !i.answered {
			pending = append(pending, i)
		}
	}

	sort.Slice(pending, func(a, b int) bool { return pending[a].ID < pending[b].ID })

	return pending
}

// Len returns the number of stored interrupts.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.interrupts)
}

// SetContext stores a value that survives until Deactivate.
func (s *State) SetContext(key string, value any) {
	s.mu.Lock()
	s.context[key] = value
	s.mu.Unlock()
}

// Context returns a stored context value.
func (s *State) Context(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.context[key]

	return v, ok
}

// Resume applies responses. Every entry is validated before any response is
// written; a malformed entry or an unknown id leaves the state untouched.
func (s *State) Resume(responses []Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for n, r := range responses {
		if r.InterruptID == "" {
			return fmt.Errorf("%w: entry %d has no interrupt id", ErrInvalidResponse, n)
		}

		if _, ok := s.interrupts[r.InterruptID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownInterrupt, r.InterruptID)
		}
	}

	for _, r := range responses {
		i := s.interrupts[r.InterruptID]
		i.Response = r.Response
		i.answered = true
	}

	return nil
}

// RaiseOption configures a single Raise call.
type RaiseOption func(o *raiseOptions)

type raiseOptions struct {
	response    any
	hasResponse bool
}

// WithResponse supplies a preemptive response. Raise returns it immediately
// and records nothing.
func WithResponse(v any) RaiseOption {
	return func(o *raiseOptions) {
		o.response = v
		o.hasResponse = true
	}
}

// Raise requests a pause. It returns the stored response when the interrupt
// was already answered, the preemptive response when one is supplied, and
// otherwise records the interrupt, activates the state and returns a *Signal.
func (s *State) Raise(kind, toolUseID, name string, reason any, opts ...RaiseOption) (any, error) {
	o := raiseOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	id := NewID(kind, toolUseID, name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.interrupts[id]; ok && existing.answered {
		return existing.Response, nil
	}

	if o.hasResponse {
		return o.response, nil
	}

	i, ok := s.interrupts[id]
	if !ok {
		i = &Interrupt{ID: id, Name: name, Reason: reason}
		s.interrupts[id] = i
	}

	s.activated = true

	return nil, &Signal{Interrupts: []*Interrupt{i}}
}

type responseEnvelope struct {
	InterruptResponse *struct {
		InterruptID *string         `json:"interruptId"`
		Response    json.RawMessage `json:"response"`
	} `json:"interruptResponse"`
}

// ParseResponses decodes a JSON resume payload of the form
//
//	[{"interruptResponse": {"interruptId": "...", "response": ...}}]
//
// Every entry must carry both keys.
func ParseResponses(data []byte) ([]Response, error) {
	var envelopes []responseEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	responses := make([]Response, 0, len(envelopes))

	for n, env := range envelopes {
		ir := env.InterruptResponse
		if ir == nil {
			return nil, fmt.Errorf("%w: entry %d must contain interruptResponse", ErrInvalidResponse, n)
		}

		if ir.InterruptID == nil || *ir.InterruptID == "" {
			return nil, fmt.Errorf("%w: entry %d must contain interruptId", ErrInvalidResponse, n)
		}

		if ir.Response == nil {
			return nil, fmt.Errorf("%w: entry %d must contain response", ErrInvalidResponse, n)
		}

		var v any
		if err := json.Unmarshal(ir.Response, &v); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidResponse, n, err)
		}

		responses = append(responses, Response{InterruptID: *ir.InterruptID, Response: v})
	}

	return responses, nil
}
