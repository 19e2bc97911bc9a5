package middleware

import (
	"context"
	"maps"
	"regexp"

	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks, before saving, option values
// and element properties whose keys match one of the patterns.
// The snapshot passed to Save is not modified.
func NewRedactMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactMiddleware) Save(ctx context.Context, clientID string, snapshot *domain.Snapshot) error {
	cloned := *snapshot
	cloned.Options = maps.Clone(snapshot.Options)
	cloned.Model = snapshot.Model.Clone()

	for k := range cloned.Options {
		if m.matches(k) {
			cloned.Options[k] = Mask
		}
	}
	if cloned.Model != nil {
		cloned.Model.Walk(func(el *domain.Element) bool {
			maskMap(el.Properties, m.matches)
			return true
		})
	}
	return m.next.Save(ctx, clientID, &cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, clientID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, clientID)
}

func (m *redactMiddleware) Delete(ctx context.Context, clientID string) error {
	return m.next.Delete(ctx, clientID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func maskMap(m map[string]any, matches func(string) bool) {
	for k, v := range m {
		if matches(k) {
			m[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, matches)
		}
	}
}
