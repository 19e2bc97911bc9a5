package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Extensions recognized by Source, in lookup order.
var Extensions = []string{".yaml", ".yml", ".json"}

// Source implements ports.ModelSource and ports.Watchable over a directory.
// The diagram for a client is <dir>/<diagramType><ext>, where diagramType is the
// client's requestModel option (domain.DefaultDiagramType when absent).
// JSON files are read with the YAML decoder.
type Source struct {
	Dir    string
	logger *slog.Logger
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a source reading from dir.
func NewSource(dir string, opts ...SourceOption) *Source {
	s := &Source{Dir: dir, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate loads the diagram selected by options.
func (s *Source) Generate(ctx context.Context, clientID string, options map[string]string) (*domain.ModelRoot, error) {
	diagramType := options[domain.OptionDiagramType]
	if diagramType == "" {
		diagramType = domain.DefaultDiagramType
	}
	return s.Load(diagramType)
}

// Load reads and parses the diagram of the given type.
func (s *Source) Load(diagramType string) (*domain.ModelRoot, error) {
	if !validName(diagramType) {
		return nil, fmt.Errorf("%w: %q", domain.ErrModelNotFound, diagramType)
	}

	for _, ext := range Extensions {
		path := filepath.Join(s.Dir, diagramType+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read diagram %s: %w", path, err)
		}

		var root domain.ModelRoot
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("failed to parse diagram %s: %w", path, err)
		}
		if root.ID == "" {
			return nil, fmt.Errorf("diagram %s: root id is required", path)
		}
		s.logger.Debug("Diagram loaded", "diagram_type", diagramType, "path", path)
		return &root, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, diagramType)
}

// Types returns the diagram types available in the directory, sorted.
func (s *Source) Types() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagrams: %w", err)
	}

	var types []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := diagramType(entry.Name()); ok && !slices.Contains(types, name) {
			types = append(types, name)
		}
	}
	slices.Sort(types)
	return types, nil
}

// diagramType maps a file name to the diagram type it defines.
func diagramType(fileName string) (string, bool) {
	base := filepath.Base(fileName)
	ext := filepath.Ext(base)
	if !slices.Contains(Extensions, ext) || strings.HasPrefix(base, ".") {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}
