package lifecycle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/immuva/pkg/contracts"
)

// ErrNoInput is returned by ParseJSONL for an empty or blank stream.
var ErrNoInput = errors.New("lifecycle: no input")

const maxLineBytes = 1 << 20

// ParseJSONL reads one JSON event object per line. Blank lines are skipped.
// Identifier fields may be JSON strings or numbers.
func ParseJSONL(r io.Reader) ([]Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var events []Event
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lifecycle: read: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNoInput
	}
	return events, nil
}

// RunJSONL parses and evaluates a JSONL stream. Input problems are reported
// as FSM_NO_INPUT or FSM_INTERNAL_ERROR violations, never as errors.
func RunJSONL(r io.Reader) Result {
	events, err := ParseJSONL(r)
	switch {
	case errors.Is(err, ErrNoInput):
		return Result{Violations: []Violation{{Code: contracts.FSMNoInput, Message: "no events in input"}}}
	case err != nil:
		return Result{Violations: []Violation{{Code: contracts.FSMInternalError, Message: err.Error()}}}
	}
	return Run(events)
}

func decodeEvent(raw []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Event{}, err
	}
	if fields == nil {
		return Event{}, errors.New("event is not a JSON object")
	}
	return Event{
		ActionID: scalar(fields["action_id"]),
		EventID:  scalar(fields["event_id"]),
		Kind:     scalar(fields["kind"]),
		Type:     scalar(fields["type"]),
	}, nil
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
