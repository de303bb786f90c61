// Package tasktype declares the closed set of task types the tracker knows
// about: their dependencies, scope, responsible role and where their output
// lands on disk.
package tasktype

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope says whether a task runs once per item or once per group.
type Scope string

const (
	ScopeItem  Scope = "item"
	ScopeGroup Scope = "group"
)

// Built-in task type names.
const (
	Research = "research"
	Content  = "content"
	Publish  = "publish"
)

// Built-in roles.
const (
	RoleResearcher = "researcher"
	RoleWriter     = "writer"
	RoleEditor     = "editor"
)

// Definition describes a single task type.
type Definition struct {
	Name          string
	DependsOn     []string
	Scope         Scope
	Role          string
	OutputPattern string
	Description   string
}

// Validate ensures the definition is well-formed on its own.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("tasktype: name is required")
	}
	switch d.Scope {
	case ScopeItem, ScopeGroup:
	default:
		return fmt.Errorf("tasktype: %s has invalid scope %q", d.Name, d.Scope)
	}
	if strings.TrimSpace(d.Role) == "" {
		return fmt.Errorf("tasktype: role is required for %s", d.Name)
	}
	for _, dep := range d.DependsOn {
		if dep == d.Name {
			return fmt.Errorf("tasktype: %s depends on itself", d.Name)
		}
	}
	return nil
}

// IsGroupLevel reports whether the task is tracked once per group.
func (d Definition) IsGroupLevel() bool {
	return d.Scope == ScopeGroup
}

// OutputPath renders the output pattern for a concrete task instance.
// Supported placeholders: {sanitized_name}, {name}, {group}, {letter}, {year}.
func (d Definition) OutputPath(group, item string, year int) string {
	if d.OutputPattern == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{sanitized_name}", SanitizeName(item),
		"{name}", item,
		"{group}", group,
		"{letter}", strings.ToUpper(group),
		"{year}", strconv.Itoa(year),
	)
	return r.Replace(d.OutputPattern)
}

var sanitizer = strings.NewReplacer(
	" ", "_",
	"&", "and",
	"/", "_",
	".", "_",
	",", "",
	"'", "",
	`"`, "",
)

// SanitizeName converts an item name into a stable file-name stem.
func SanitizeName(name string) string {
	return sanitizer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// Defaults returns the built-in research -> content -> publish pipeline.
func Defaults() []Definition {
	return []Definition{
		{
			Name:          Research,
			Scope:         ScopeItem,
			Role:          RoleResearcher,
			OutputPattern: "research/{sanitized_name}.yaml",
			Description:   "Research project details, features, and use cases",
		},
		{
			Name:          Content,
			DependsOn:     []string{Research},
			Scope:         ScopeItem,
			Role:          RoleWriter,
			OutputPattern: "content/{sanitized_name}.md",
			Description:   "Write detailed content for the project",
		},
		{
			Name:          Publish,
			DependsOn:     []string{Content},
			Scope:         ScopeGroup,
			Role:          RoleEditor,
			OutputPattern: "publish/{group}.md",
			Description:   "Assemble and publish the group post once every item has content",
		},
	}
}
