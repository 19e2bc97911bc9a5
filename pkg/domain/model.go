package domain

import "github.com/mohae/deepcopy"

// Root type and id used by a session that has not received a model yet.
const (
	EmptyRootType = "NONE"
	EmptyRootID   = "EMPTY"
)

// Point is a position in diagram coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dimension is the size of an element.
type Dimension struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Bounds combines a position and a size.
type Bounds struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Element is a node of the diagram model tree.
// The session does not interpret Type or Properties; layout engines read and
// write Position and Size.
type Element struct {
	Type       string         `json:"type" yaml:"type"`
	ID         string         `json:"id" yaml:"id"`
	Children   []*Element     `json:"children,omitempty" yaml:"children,omitempty"`
	Position   *Point         `json:"position,omitempty" yaml:"position,omitempty"`
	Size       *Dimension     `json:"size,omitempty" yaml:"size,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// ModelRoot is the root of a diagram model.
type ModelRoot struct {
	Element `yaml:",inline"`

	// Revision is stamped by the session every time the root becomes current.
	Revision int64 `json:"revision,omitempty" yaml:"revision,omitempty"`

	// CanvasBounds is the visible area reported by the client, if known.
	CanvasBounds *Bounds `json:"canvasBounds,omitempty" yaml:"canvasBounds,omitempty"`
}

// EmptyRoot returns the placeholder model a session holds before the first SetModel.
func EmptyRoot() *ModelRoot {
	return &ModelRoot{Element: Element{Type: EmptyRootType, ID: EmptyRootID}}
}

// IsEmpty reports whether the root is the placeholder returned by EmptyRoot.
func (r *ModelRoot) IsEmpty() bool {
	return r == nil || (r.Type == EmptyRootType && r.ID == EmptyRootID)
}

// Clone returns a deep copy of the root.
func (r *ModelRoot) Clone() *ModelRoot {
	if r == nil {
		return nil
	}
	return deepcopy.Copy(r).(*ModelRoot)
}

// Walk visits the element and all its descendants depth-first.
// Returning false from fn stops the walk.
func (e *Element) Walk(fn func(*Element) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e) {
		return false
	}
	for _, child := range e.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the element with the given id, or nil.
func (e *Element) Find(id string) *Element {
	var found *Element
	e.Walk(func(el *Element) bool {
		if el.ID == id {
			found = el
			return false
		}
		return true
	})
	return found
}
