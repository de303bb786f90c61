package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

// metadataKey is the envelope key in frontmatter and YAML documents.
const metadataKey = "_weekflow"

// ParseFrontMatter extracts the metadata block and body from a document that
// starts with `---` YAML fences.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	if len(content) == 0 {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	parts := bytes.SplitN(normalized[4:], []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	var envelope struct {
		Meta *envelopeMetadata `yaml:"_weekflow"`
	}
	if err := yaml.Unmarshal(parts[0], &envelope); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse frontmatter: %w", err)
	}
	if envelope.Meta == nil {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	meta, err := envelope.Meta.toMetadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, bytes.TrimPrefix(parts[1], []byte("\n")), nil
}

// WriteFrontMatter renders metadata + body with YAML fences.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	data, err := yaml.Marshal(map[string]envelopeMetadata{metadataKey: fromMetadata(meta)})
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

type envelopeMetadata struct {
	Group    string `yaml:"group"`
	Item     string `yaml:"item,omitempty"`
	TaskType string `yaml:"task_type"`
	Role     string `yaml:"role,omitempty"`
	Run      string `yaml:"run,omitempty"`
	Model    string `yaml:"model,omitempty"`
	Created  string `yaml:"created"`
	Checksum string `yaml:"checksum,omitempty"`
}

func (e envelopeMetadata) toMetadata() (Metadata, error) {
	if e.Group == "" || e.TaskType == "" {
		return Metadata{}, ErrMalformedFrontMatter
	}
	created, err := parseTime(e.Created)
	if err != nil {
		return Metadata{}, fmt.Errorf("artifact: parse created timestamp: %w", err)
	}
	return Metadata{
		Group:     e.Group,
		Item:      e.Item,
		TaskType:  e.TaskType,
		Role:      e.Role,
		RunID:     e.Run,
		Model:     e.Model,
		CreatedAt: created,
		Checksum:  e.Checksum,
	}, nil
}

func fromMetadata(meta Metadata) envelopeMetadata {
	return envelopeMetadata{
		Group:    meta.Group,
		Item:     meta.Item,
		TaskType: meta.TaskType,
		Role:     meta.Role,
		Run:      meta.RunID,
		Model:    meta.Model,
		Created:  meta.CreatedAt.UTC().Format(timeLayout),
		Checksum: meta.Checksum,
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("artifact: empty created timestamp")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
