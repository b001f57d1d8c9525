package executor

import "fmt"

// --------------------------------------------------------------------------
// Execution Unit
// --------------------------------------------------------------------------

// ExecutionUnit is one statement with its ordered parameters, targeted at one connection.
// Units are immutable once built, use NewExecutionUnit to create them.
type ExecutionUnit struct {
	connectionID string
	statement    string
	params       []any
}

// NewExecutionUnit creates a unit for the given connection. The parameters are copied.
// An empty connectionID means the unit targets the connection of the group it is added to.
func NewExecutionUnit(connectionID, statement string, params ...any) ExecutionUnit {
	p := make([]any, len(params))
	copy(p, params)
	return ExecutionUnit{
		connectionID: connectionID,
		statement:    statement,
		params:       p,
	}
}

// ConnectionID returns the identity of the connection the unit targets
func (u ExecutionUnit) ConnectionID() string { return u.connectionID }

// Statement returns the statement text
func (u ExecutionUnit) Statement() string { return u.statement }

// Params returns a copy of the ordered parameter values
func (u ExecutionUnit) Params() []any {
	p := make([]any, len(u.params))
	copy(p, u.params)
	return p
}

// Param returns the i-th parameter or nil if there is none
func (u ExecutionUnit) Param(i int) any {
	if i < 0 || i >= len(u.params) {
		return nil
	}
	return u.params[i]
}

// NumParams returns the number of parameters
func (u ExecutionUnit) NumParams() int { return len(u.params) }

func (u ExecutionUnit) String() string {
	return fmt.Sprintf("%s: %s %v", u.connectionID, u.statement, u.params)
}

// --------------------------------------------------------------------------
// Execution Group
// --------------------------------------------------------------------------

// ExecutionGroup is an ordered sequence of units bound to exactly one connection.
// The units of a group run strictly sequentially on that connection, so they may share
// connection local state like an open transaction.
type ExecutionGroup[C any] struct {
	ConnectionID string
	Conn         C
	Units        []ExecutionUnit
}

// NewExecutionGroup creates a group for the connection identified by connectionID
func NewExecutionGroup[C any](connectionID string, conn C, units ...ExecutionUnit) *ExecutionGroup[C] {
	return &ExecutionGroup[C]{
		ConnectionID: connectionID,
		Conn:         conn,
		Units:        units,
	}
}

// --------------------------------------------------------------------------
// Execution Group Context
// --------------------------------------------------------------------------

// ExecutionGroupContext holds all groups of one Execute call. It is owned by the caller,
// the engine does not retain it after Execute returned.
type ExecutionGroupContext[C any] struct {
	ExecutionID string
	Groups      []*ExecutionGroup[C]
	Metadata    map[string]string
}

// NewExecutionGroupContext creates a new context for the given groups
func NewExecutionGroupContext[C any](executionID string, groups ...*ExecutionGroup[C]) *ExecutionGroupContext[C] {
	return &ExecutionGroupContext[C]{
		ExecutionID: executionID,
		Groups:      groups,
		Metadata:    map[string]string{},
	}
}

// NumUnits returns the total number of units of all groups
func (c *ExecutionGroupContext[C]) NumUnits() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Units)
	}
	return n
}

// Validate checks the exclusive connection binding of all groups. Execute validates the
// context itself; callers may check it first to avoid acquiring connections in vain.
func (c *ExecutionGroupContext[C]) Validate() error {
	seen := make(map[string]int, len(c.Groups))
	for i, g := range c.Groups {
		if g == nil {
			return fmt.Errorf("group %d: %w", i, ErrNilGroup)
		}
		if prev, ok := seen[g.ConnectionID]; ok {
			return fmt.Errorf("groups %d and %d use connection %q: %w", prev, i, g.ConnectionID, ErrSharedConnection)
		}
		seen[g.ConnectionID] = i

		for j, u := range g.Units {
			if u.connectionID != "" && u.connectionID != g.ConnectionID {
				return fmt.Errorf("unit %d of group %d targets %q instead of %q: %w", j, i, u.connectionID, g.ConnectionID, ErrUnitConnectionMismatch)
			}
		}
	}
	return nil
}
