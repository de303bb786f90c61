package worker

import (
	"context"
	"fmt"
	"strings"
)

// Static is a dry-run capability. It produces placeholder payloads shaped
// like real outputs so the whole pipeline can be exercised offline.
type Static struct {
	Note string
}

// Perform returns a deterministic payload for a.
func (s Static) Perform(_ context.Context, a Assignment) (Result, error) {
	note := s.Note
	if note == "" {
		note = "dry run"
	}
	if strings.HasSuffix(a.Definition.OutputPattern, ".yaml") {
		return Result{
			Data: map[string]any{
				"name":        a.Subject(),
				"group":       a.Group,
				"description": fmt.Sprintf("%s placeholder for %s", a.TaskType, a.Subject()),
				"note":        note,
			},
			Summary: note,
			Model:   "static",
		}, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Subject())
	fmt.Fprintf(&b, "_%s placeholder (%s)._\n", a.TaskType, note)
	return Result{Body: b.String(), Summary: note, Model: "static"}, nil
}
