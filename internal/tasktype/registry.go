package tasktype

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknown is returned when a task type name is not part of the registry.
var ErrUnknown = errors.New("tasktype: unknown task type")

// Registry is an immutable, validated set of task type definitions. It is
// built once at startup; there is no way to add types afterwards.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry validates the definitions and freezes them into a registry.
func NewRegistry(defs ...Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("tasktype: at least one definition is required")
	}
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := r.defs[def.Name]; exists {
			return nil, fmt.Errorf("tasktype: %s declared twice", def.Name)
		}
		def.DependsOn = append([]string(nil), def.DependsOn...)
		r.defs[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	for _, name := range r.order {
		def := r.defs[name]
		for _, dep := range def.DependsOn {
			target, ok := r.defs[dep]
			if !ok {
				return nil, fmt.Errorf("tasktype: %s depends on undeclared %s", name, dep)
			}
			// Group tasks aggregate over items; an item task cannot wait on a group task.
			if def.Scope == ScopeItem && target.Scope == ScopeGroup {
				return nil, fmt.Errorf("tasktype: item task %s cannot depend on group task %s", name, dep)
			}
		}
	}
	if err := r.checkCycles(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustRegistry panics if the definitions do not form a valid registry.
func MustRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a registry holding the built-in pipeline.
func Default() *Registry {
	return MustRegistry(Defaults()...)
}

// Lookup returns the definition for name or ErrUnknown.
func (r *Registry) Lookup(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return def, nil
}

// Has reports whether name is a registered task type.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns task type names in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// ItemDefaults lists the item-scoped task types every new item receives.
func (r *Registry) ItemDefaults() []Definition {
	return r.byScope(ScopeItem)
}

// GroupDefaults lists the group-scoped task types every new group receives.
func (r *Registry) GroupDefaults() []Definition {
	return r.byScope(ScopeGroup)
}

// Roles returns distinct roles in declaration order.
func (r *Registry) Roles() []string {
	seen := map[string]struct{}{}
	var roles []string
	for _, name := range r.order {
		role := r.defs[name].Role
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// RoleOf returns the responsible role for a task type, or "" if unknown.
func (r *Registry) RoleOf(name string) string {
	return r.defs[name].Role
}

// MatchesRole compares roles case-insensitively.
func MatchesRole(role, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(role), filter)
}

func (r *Registry) byScope(scope Scope) []Definition {
	var out []Definition
	for _, name := range r.order {
		if def := r.defs[name]; def.Scope == scope {
			out = append(out, def)
		}
	}
	return out
}

func (r *Registry) checkCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.defs))
	var visit func(string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("tasktype: dependency cycle through %s", name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range r.defs[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}
	for _, name := range r.order {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
