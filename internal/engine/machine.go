package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/statekit"

	"github.com/karimatan1106/workflow-plugin/internal/phases"
)

// Machine events.
const (
	eventNext  = "NEXT"
	eventReset = "RESET"

	guardSubPhases = "subPhasesComplete"
)

func approveEvent(approvalType string) statekit.EventType {
	return statekit.EventType("APPROVE_" + strings.ToUpper(approvalType))
}

// machineContext carries what the guards need to know about the task.
type machineContext struct {
	Incomplete []phases.Phase
}

// phaseMachine is the transition graph of one task size, positioned at the
// task's current phase.
type phaseMachine struct {
	interpreter *statekit.Interpreter[machineContext]
}

// newPhaseMachine builds the graph for size:
//   - NEXT follows the sequence, guarded for parallel groups until every
//     sub-phase is complete, and absent on review phases
//   - APPROVE_<TYPE> leaves a review phase for its approval target
//   - RESET returns any phase but research to research
func newPhaseMachine(current phases.Phase, size phases.TaskSize, incomplete []phases.Phase) (*phaseMachine, error) {
	seq := phases.Sequence(size)
	if phases.Index(current, size) < 0 {
		return nil, fmt.Errorf("phase %q is not part of the %q sequence", current, size)
	}

	builder := statekit.NewMachine[machineContext]("workflow-"+string(size)).
		WithInitial(statekit.StateID(current)).
		WithContext(machineContext{Incomplete: incomplete}).
		WithGuard(guardSubPhases, func(ctx machineContext, _ statekit.Event) bool {
			return len(ctx.Incomplete) == 0
		})

	research := statekit.StateID(phases.Research)
	for i, p := range seq {
		id := statekit.StateID(p)
		var next statekit.StateID
		if i+1 < len(seq) {
			next = statekit.StateID(seq[i+1])
		}

		switch {
		case p == phases.Research:
			builder.State(id).
				On(eventNext).Target(next).
				Done()
		case p == phases.Completed:
			builder.State(id).
				On(eventReset).Target(research).
				Done()
		case phases.RequiresApproval(p):
			typ, approval, ok := approvalFor(p)
			if !ok {
				builder.State(id).
					On(eventReset).Target(research).
					Done()
				continue
			}
			builder.State(id).
				On(approveEvent(typ)).Target(statekit.StateID(approval.Next)).
				On(eventReset).Target(research).
				Done()
		case phases.IsParallel(p):
			builder.State(id).
				On(eventNext).Target(next).Guard(guardSubPhases).
				On(eventReset).Target(research).
				Done()
		default:
			builder.State(id).
				On(eventNext).Target(next).
				On(eventReset).Target(research).
				Done()
		}
	}

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building phase machine: %w", err)
	}
	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &phaseMachine{interpreter: interpreter}, nil
}

// approvalFor returns the approval type whose gate is phase p.
func approvalFor(p phases.Phase) (string, phases.Approval, bool) {
	types := make([]string, 0, len(phases.Approvals))
	for t := range phases.Approvals {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if a := phases.Approvals[t]; a.Expected == p {
			return t, a, true
		}
	}
	return "", phases.Approval{}, false
}

// Current returns the machine's phase.
func (m *phaseMachine) Current() phases.Phase {
	return phases.Phase(m.interpreter.State().Value)
}

// fire sends event and returns the new phase. An event that leaves the
// phase unchanged was either undefined for the phase or refused by a guard.
func (m *phaseMachine) fire(event statekit.EventType) (phases.Phase, error) {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: event})
	after := m.Current()
	if before == after {
		return before, fmt.Errorf("event %s not allowed in phase %s", event, before)
	}
	return after, nil
}
