package layout

import (
	"context"
	"math"
	"sort"

	"github.com/aretw0/diagram/pkg/domain"
)

// Default element size used by Grid when an element carries no size.
const (
	DefaultWidth  = 100.0
	DefaultHeight = 50.0
)

// Grid places the top-level children of the root on a grid, row by row.
// In INTERACTIVE mode the placement order follows the positions already present
// in the model (top to bottom, then left to right); otherwise it follows the
// declaration order. Positions are always overwritten.
type Grid struct {
	Columns int     // elements per row; 0 means ceil(sqrt(n))
	Gap     float64 // space between cells
	Padding float64 // offset of the first cell
}

// NewGrid returns a Grid with the default gap and padding.
func NewGrid() *Grid {
	return &Grid{Gap: 40, Padding: 20}
}

// Layout implements ports.LayoutEngine.
func (g *Grid) Layout(ctx context.Context, root *domain.ModelRoot, _ domain.Action, kind domain.LayoutKind) error {
	if root == nil || len(root.Children) == 0 {
		return nil
	}

	order := make([]*domain.Element, len(root.Children))
	copy(order, root.Children)
	if kind == domain.LayoutInteractive {
		sortByPosition(order)
	}

	columns := g.Columns
	if columns <= 0 {
		columns = int(math.Ceil(math.Sqrt(float64(len(order)))))
	}

	cellW, cellH := 0.0, 0.0
	for _, el := range order {
		w, h := sizeOf(el)
		cellW = math.Max(cellW, w)
		cellH = math.Max(cellH, h)
	}

	for i, el := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		col := i % columns
		row := i / columns
		el.Position = &domain.Point{
			X: g.Padding + float64(col)*(cellW+g.Gap),
			Y: g.Padding + float64(row)*(cellH+g.Gap),
		}
		if el.Size == nil {
			el.Size = &domain.Dimension{Width: DefaultWidth, Height: DefaultHeight}
		}
	}
	return nil
}

func sizeOf(el *domain.Element) (float64, float64) {
	if el.Size == nil {
		return DefaultWidth, DefaultHeight
	}
	return el.Size.Width, el.Size.Height
}

// sortByPosition orders elements top to bottom, then left to right.
// Elements without a position keep their relative order after positioned ones.
func sortByPosition(elements []*domain.Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		a, b := elements[i].Position, elements[j].Position
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Y != b.Y:
			return a.Y < b.Y
		default:
			return a.X < b.X
		}
	})
}
