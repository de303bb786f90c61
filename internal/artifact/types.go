// Package artifact persists the payloads workers produce. Each task type's
// output pattern decides where an artifact lives inside its group directory
// and the extension decides its shape: markdown documents carry YAML
// frontmatter, YAML documents carry a _weekflow metadata block.
package artifact

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind captures the serialization format of an artifact.
type Kind string

const (
	// KindDocument is a markdown-like text document with YAML frontmatter.
	KindDocument Kind = "document"
	// KindYAML is a structured YAML document enriched with a _weekflow block.
	KindYAML Kind = "yaml"
)

// KindFor infers the kind from a file name.
func KindFor(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return KindYAML
	default:
		return KindDocument
	}
}

// Metadata captures provenance stored alongside an artifact body.
type Metadata struct {
	Group     string
	Item      string
	TaskType  string
	Role      string
	RunID     string
	Model     string
	CreatedAt time.Time
	Checksum  string
}

// State reports what Check found on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateInvalid State = "invalid"
)
