package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/weekflow/internal/catalog"
	"github.com/kingrea/weekflow/internal/fsutil"
	"github.com/kingrea/weekflow/internal/worker"
)

// Writer stores worker results under the data directory.
type Writer struct {
	root string
	now  func() time.Time
}

// WriterOption customizes a Writer during construction.
type WriterOption func(*Writer)

// WithClock overrides the clock used for metadata timestamps and {year}.
func WithClock(clock func() time.Time) WriterOption {
	return func(w *Writer) {
		if clock != nil {
			w.now = clock
		}
	}
}

// NewWriter builds a writer rooted at the data directory.
func NewWriter(root string, opts ...WriterOption) *Writer {
	w := &Writer{root: root, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path resolves a group-relative artifact path to an absolute one.
func (w *Writer) Path(group, rel string) string {
	return filepath.Join(w.root, catalog.GroupDir(group), filepath.FromSlash(rel))
}

// Write renders the output path for a, persists res atomically and returns
// the path relative to the group directory.
func (w *Writer) Write(ctx context.Context, a worker.Assignment, res worker.Result) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	now := w.now().UTC()
	rel := a.Definition.OutputPath(a.Group, a.Item, now.Year())
	if rel == "" {
		return "", fmt.Errorf("artifact: %s has no output pattern", a.TaskType)
	}
	meta := Metadata{
		Group:     a.Group,
		Item:      a.Item,
		TaskType:  a.TaskType,
		Role:      a.Role,
		RunID:     a.RunID,
		Model:     res.Model,
		CreatedAt: now,
	}
	var (
		content []byte
		err     error
	)
	switch KindFor(rel) {
	case KindYAML:
		content, err = encodeYAML(meta, res)
	default:
		body := []byte(res.Body)
		meta.Checksum = checksum(body)
		content, err = WriteFrontMatter(meta, body)
	}
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(w.Path(a.Group, rel), content, 0o644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", rel, err)
	}
	return rel, nil
}

// Check inspects a recorded output and reports whether it is readable.
func (w *Writer) Check(group, rel string) (State, error) {
	_, _, err := w.Read(group, rel)
	switch {
	case err == nil:
		return StateReady, nil
	case errors.Is(err, fs.ErrNotExist):
		return StateMissing, nil
	default:
		return StateInvalid, err
	}
}

// Read loads an artifact and its metadata.
func (w *Writer) Read(group, rel string) (Metadata, []byte, error) {
	data, err := os.ReadFile(w.Path(group, rel))
	if err != nil {
		return Metadata{}, nil, err
	}
	if KindFor(rel) == KindYAML {
		return decodeYAML(data)
	}
	meta, body, err := ParseFrontMatter(data)
	if err != nil {
		return Metadata{}, nil, err
	}
	if meta.Checksum != "" && meta.Checksum != checksum(body) {
		return Metadata{}, nil, fmt.Errorf("artifact: checksum mismatch for %s", rel)
	}
	return meta, body, nil
}

func encodeYAML(meta Metadata, res worker.Result) ([]byte, error) {
	payload := make(map[string]any, len(res.Data)+1)
	for k, v := range res.Data {
		payload[k] = v
	}
	if len(payload) == 0 && strings.TrimSpace(res.Body) != "" {
		payload["body"] = res.Body
	}
	payload[metadataKey] = fromMetadata(meta)
	data, err := yaml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode yaml: %w", err)
	}
	return data, nil
}

func decodeYAML(data []byte) (Metadata, []byte, error) {
	var envelope struct {
		Meta *envelopeMetadata `yaml:"_weekflow"`
	}
	if err := yaml.Unmarshal(data, &envelope); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse yaml: %w", err)
	}
	if envelope.Meta == nil {
		return Metadata{}, nil, fmt.Errorf("artifact: missing %s metadata", metadataKey)
	}
	meta, err := envelope.Meta.toMetadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	var payload map[string]any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return Metadata{}, nil, fmt.Errorf("artifact: parse yaml: %w", err)
	}
	delete(payload, metadataKey)
	body, err := yaml.Marshal(payload)
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, body, nil
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
