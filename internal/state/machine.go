package state

// Machine holds the current position on both state axes. It is an explicitly
// constructed value owned by the orchestrator — there is no package-level
// instance — and it is not safe for concurrent use; the orchestrator's
// serialized event loop is the only writer.
type Machine struct {
	session   SessionState
	operation OperationState
}

// NewMachine returns a machine in SessionIdle / OpIdle.
func NewMachine() *Machine {
	return &Machine{session: SessionIdle, operation: OpIdle}
}

// Session returns the current session-axis state.
func (m *Machine) Session() SessionState { return m.session }

// Operation returns the current operation-axis state.
func (m *Machine) Operation() OperationState { return m.operation }

// Apply feeds ev to both transition tables and reports whether either axis
// moved. An event with no entry for the current state of an axis leaves that
// axis unchanged — never an error.
func (m *Machine) Apply(ev Event) (changed bool) {
	if next, ok := sessionTransitions[m.session][ev]; ok && next != m.session {
		m.session = next
		changed = true
	}
	if next, ok := operationTransitions[m.operation][ev]; ok && next != m.operation {
		m.operation = next
		changed = true
	}
	return changed
}

// CanApply reports whether ev has a transition entry on either axis for the
// machine's current position.
func (m *Machine) CanApply(ev Event) bool {
	if _, ok := sessionTransitions[m.session][ev]; ok {
		return true
	}
	_, ok := operationTransitions[m.operation][ev]
	return ok
}
