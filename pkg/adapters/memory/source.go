package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/diagram/pkg/domain"
)

// Source implements ports.ModelSource over diagrams held in memory,
// keyed by the diagramType option of the requesting client.
type Source struct {
	mu       sync.RWMutex
	diagrams map[string]*domain.ModelRoot
}

// NewSource creates a source serving the given diagrams.
func NewSource(diagrams map[string]*domain.ModelRoot) *Source {
	src := &Source{diagrams: make(map[string]*domain.ModelRoot, len(diagrams))}
	for k, root := range diagrams {
		src.diagrams[k] = root.Clone()
	}
	return src
}

// Put adds or replaces a diagram.
func (s *Source) Put(diagramType string, root *domain.ModelRoot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagrams[diagramType] = root.Clone()
}

// Generate returns a copy of the diagram named by options["diagramType"],
// or of the default diagram when the option is absent.
func (s *Source) Generate(ctx context.Context, clientID string, options map[string]string) (*domain.ModelRoot, error) {
	diagramType := options[domain.OptionDiagramType]
	if diagramType == "" {
		diagramType = domain.DefaultDiagramType
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.diagrams[diagramType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, diagramType)
	}
	return root.Clone(), nil
}

// Types returns the available diagram types, sorted.
func (s *Source) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.diagrams))
	for k := range s.diagrams {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
