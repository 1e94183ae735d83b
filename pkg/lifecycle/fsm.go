// Package lifecycle validates the event ordering of a single action stream.
//
// A stream starts in NoAction, moves to SawStart on the first start event
// and to Finished on the first finish event. Any rule breach moves it to the
// absorbing Violated state and ends evaluation.
package lifecycle

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// State is the machine position.
type State int

const (
	StateNoAction State = iota
	StateSawStart
	StateFinished
	StateViolated
)

func (s State) String() string {
	switch s {
	case StateNoAction:
		return "NoAction"
	case StateSawStart:
		return "SawStart"
	case StateFinished:
		return "Finished"
	case StateViolated:
		return "Violated"
	default:
		return "State(?)"
	}
}

// EventKind is the closed set of event classes the machine recognises.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindStart
	KindFinish
)

func (k EventKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindFinish:
		return "finish"
	default:
		return "unknown"
	}
}

var kindTokens = map[string]EventKind{
	"start":  KindStart,
	"begin":  KindStart,
	"finish": KindFinish,
	"end":    KindFinish,
}

// Classify maps an event kind label onto the closed kind set. The label's
// last segment, split on '.', ':' or '/', is case-folded and matched
// exactly, so "action.start" and "Tool:BEGIN" are starts while
// "restart" and "action.started" are unknown.
func Classify(label string) EventKind {
	if i := strings.LastIndexAny(label, ".:/"); i >= 0 {
		label = label[i+1:]
	}
	token := cases.Fold().String(strings.TrimSpace(label))
	if k, ok := kindTokens[token]; ok {
		return k
	}
	return KindUnknown
}

// Event is one entry of an action stream. Kind takes precedence over Type
// when both are set.
type Event struct {
	ActionID string `json:"action_id"`
	EventID  string `json:"event_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Class returns the event's recognised kind.
func (e Event) Class() EventKind {
	if e.Kind != "" {
		return Classify(e.Kind)
	}
	return Classify(e.Type)
}

// Violation is a lifecycle rule breach.
type Violation struct {
	Code    contracts.ViolationCode `json:"code"`
	Message string                  `json:"message,omitempty"`
	EventID string                  `json:"event_id,omitempty"`
}

// Result is the single output of a run. ActionID is nil when no event
// established an identity.
type Result struct {
	ActionID   *string     `json:"action_id"`
	Violations []Violation `json:"violations"`
}

// MarshalJSON encodes the result with a non-null violations array.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := plain(r)
	if out.Violations == nil {
		out.Violations = []Violation{}
	}
	return json.Marshal(out)
}

// Codes returns the violation codes in order.
func (r Result) Codes() []contracts.ViolationCode {
	codes := make([]contracts.ViolationCode, 0, len(r.Violations))
	for _, v := range r.Violations {
		codes = append(codes, v.Code)
	}
	return codes
}

// Machine is a single-pass lifecycle checker. The zero value is ready.
type Machine struct {
	state     State
	actionID  string
	hasAction bool
	violation *Violation
}

// State returns the current machine position.
func (m *Machine) State() State {
	return m.state
}

// Step feeds one event. It returns false once the machine is Violated;
// further events are ignored.
func (m *Machine) Step(ev Event) bool {
	if m.state == StateViolated {
		return false
	}

	if ev.ActionID == "" {
		return m.fail(contracts.FSMEventMissingActionID, "event has no action_id", ev.EventID)
	}
	if !m.hasAction {
		m.actionID = ev.ActionID
		m.hasAction = true
	} else if ev.ActionID != m.actionID {
		return m.fail(contracts.FSMCrossActionID, "multiple action_id values observed", ev.EventID)
	}

	switch ev.Class() {
	case KindStart:
		if m.state == StateNoAction {
			m.state = StateSawStart
		}
	case KindFinish:
		switch m.state {
		case StateNoAction:
			return m.fail(contracts.FSMInvalidOrder, "finish observed before start", ev.EventID)
		case StateFinished:
			return m.fail(contracts.FSMDoubleFinish, "multiple finish events observed", ev.EventID)
		default:
			m.state = StateFinished
		}
	case KindUnknown:
	}
	return true
}

func (m *Machine) fail(code contracts.ViolationCode, msg, eventID string) bool {
	m.state = StateViolated
	m.violation = &Violation{Code: code, Message: msg, EventID: eventID}
	return false
}

// Result reports the machine's verdict so far.
func (m *Machine) Result() Result {
	var res Result
	if m.hasAction {
		id := m.actionID
		res.ActionID = &id
	}
	if m.violation != nil {
		if m.violation.Code == contracts.FSMEventMissingActionID {
			res.ActionID = nil
		}
		res.Violations = []Violation{*m.violation}
	}
	return res
}

// Run evaluates a whole stream.
func Run(events []Event) Result {
	var m Machine
	for _, ev := range events {
		if !m.Step(ev) {
			break
		}
	}
	return m.Result()
}
