// Package worker defines the per-role capabilities the orchestrator
// dispatches tasks to. A capability receives one task assignment and returns
// the payload to persist; it never touches the tracker.
package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/kingrea/weekflow/internal/tasktype"
)

// Assignment is one ready task handed to a capability.
type Assignment struct {
	RunID      string
	Round      int
	Group      string
	Item       string
	TaskType   string
	Role       string
	Definition tasktype.Definition
}

// GroupLevel reports whether the assignment targets the whole group.
func (a Assignment) GroupLevel() bool {
	return a.Item == ""
}

// Subject names what the task is about: the item, or the group for
// group-level tasks.
func (a Assignment) Subject() string {
	if a.Item == "" {
		return a.Group
	}
	return a.Item
}

func (a Assignment) String() string {
	if a.Item == "" {
		return fmt.Sprintf("%s/%s", a.Group, a.TaskType)
	}
	return fmt.Sprintf("%s/%s/%s", a.Group, a.Item, a.TaskType)
}

// Result is the payload a capability produced. Data is preferred for
// structured outputs; Body carries free text such as markdown.
type Result struct {
	Body    string
	Data    map[string]any
	Summary string
	Model   string
}

// Capability performs tasks for one role.
type Capability interface {
	Perform(ctx context.Context, a Assignment) (Result, error)
}

// Func adapts a plain function to Capability.
type Func func(ctx context.Context, a Assignment) (Result, error)

// Perform calls f.
func (f Func) Perform(ctx context.Context, a Assignment) (Result, error) {
	return f(ctx, a)
}

// Set maps roles to capabilities.
type Set map[string]Capability

// Lookup returns the capability for role.
func (s Set) Lookup(role string) (Capability, bool) {
	c, ok := s[role]
	return c, ok && c != nil
}

// Roles returns the roles with a capability, sorted.
func (s Set) Roles() []string {
	roles := make([]string, 0, len(s))
	for role, c := range s {
		if c != nil {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}
