// rep.go - Representative: gebundene Session und Zustandsmaschine
// Enthält: State-Konstanten, Representative, Run und Close.
// Zustaende: Unprepared -> Prepared -> Running -> Completed; Failed ist
// terminal. Ein Representative gehoert genau einem Testfall.
package ml

import (
	"errors"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// State tracks a representative through its single-test lifecycle.
type State int

const (
	StateUnprepared State = iota
	StatePrepared
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unprepared"
	}
}

// Representative is the runtime handle bound to one graph and one engine
// session. It is owned by a single test case, never shared across
// goroutines, and released via Close when the test completes.
type Representative struct {
	ID uuid.UUID

	inputs  []string
	outputs []string
	shapes  *orderedmap.OrderedMap[string, []int64]
	session Session
	state   State
}

// Inputs returns the graph's declared input names in order.
func (r *Representative) Inputs() []string { return r.inputs }

// Outputs returns the graph's declared output names in order.
func (r *Representative) Outputs() []string { return r.outputs }

// OutputShape returns the declared dims for a named output.
func (r *Representative) OutputShape(name string) ([]int64, bool) {
	return r.shapes.Get(name)
}

// State returns the current lifecycle state.
func (r *Representative) State() State { return r.state }

// Run executes the bound session with the given harness-native inputs and
// returns shaped float32 tensors ordered by the graph's declared outputs.
// Any failure moves the representative to Failed and propagates the
// originating error unchanged.
func (r *Representative) Run(inputs []Value) ([]*tensor.Dense, error) {
	if r.session == nil {
		return nil, &SessionError{Err: errors.New("representative is closed")}
	}

	named, err := toEngine(r.inputs, inputs, r.shapes)
	if err != nil {
		r.state = StateFailed
		return nil, err
	}

	r.state = StateRunning
	results, err := r.session.Run(named)
	if err != nil {
		r.state = StateFailed
		return nil, &SessionError{Err: err}
	}

	out, err := fromEngine(results, r.shapes)
	if err != nil {
		r.state = StateFailed
		return nil, err
	}
	r.state = StateCompleted
	return out, nil
}

// Close releases the engine session. It is safe to call more than once.
func (r *Representative) Close() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	return err
}
