// Package mandalart lays an epic tree out on the 9x9 mandalart chart.
//
// The root sits in the center cell (4,4). Each depth-1 epic owns one of the
// eight surrounding 3x3 blocks, chosen by its position, and appears twice: in
// the ring around the root and at the center of its own block. Depth-2 epics
// fill the ring of their parent's block. Epics that cannot be placed (deeper
// levels, duplicate or missing slots once every slot is taken) are reported
// in Overflow rather than dropped.
package mandalart

import (
	"github.com/pbaille/mandalart/internal/domain"
)

const (
	size   = domain.GridSize
	center = size / 2
	slots  = 8
)

// Cell is one square of the chart
type Cell struct {
	Epic *domain.Epic
	// Mirror marks the ring copy of a depth-1 epic next to the root
	Mirror bool
}

// Empty reports whether nothing was placed in the cell
func (c Cell) Empty() bool {
	return c.Epic == nil
}

// Grid is a laid-out chart
type Grid struct {
	Root     domain.Epic
	Cells    [size][size]Cell
	Overflow []domain.Epic
}

// At returns the cell at row, col; out of range yields an empty cell
func (g *Grid) At(row, col int) Cell {
	if row < 0 || row >= size || col < 0 || col >= size {
		return Cell{}
	}
	return g.Cells[row][col]
}

// Placed counts the distinct epics on the chart
func (g *Grid) Placed() int {
	n := 0
	for _, row := range g.Cells {
		for _, c := range row {
			if c.Epic != nil && !c.Mirror {
				n++
			}
		}
	}
	return n
}

// Build lays out root and its first two levels of subs
func Build(root domain.Epic) *Grid {
	g := &Grid{Root: root}
	g.Cells[center][center] = Cell{Epic: &g.Root}

	blocks := assign(g.Root.Subs, func(p domain.Position) (int, bool) {
		row, col, ok := p.Cell()
		if !ok {
			return 0, false
		}
		return slotOf(row-center, col-center, 3)
	})

	for i := range g.Root.Subs {
		sub := &g.Root.Subs[i]
		slot, ok := blocks[i]
		if !ok {
			g.Overflow = append(g.Overflow, *sub)
			continue
		}

		dr, dc, _ := domain.Offset(slot)
		g.Cells[center+dr][center+dc] = Cell{Epic: sub, Mirror: true}
		br, bc := center+3*dr, center+3*dc
		g.Cells[br][bc] = Cell{Epic: sub}

		g.placeBlock(sub, br, bc)
	}
	return g
}

// placeBlock fills the ring around the block centered at (br, bc)
func (g *Grid) placeBlock(parent *domain.Epic, br, bc int) {
	cells := assign(parent.Subs, func(p domain.Position) (int, bool) {
		row, col, ok := p.Cell()
		if !ok {
			return 0, false
		}
		return slotOf(row-br, col-bc, 1)
	})

	for i := range parent.Subs {
		sub := &parent.Subs[i]
		slot, ok := cells[i]
		if !ok {
			g.Overflow = append(g.Overflow, *sub)
			continue
		}
		dr, dc, _ := domain.Offset(slot)
		g.Cells[br+dr][bc+dc] = Cell{Epic: sub}
		for _, deeper := range sub.Subs {
			g.Overflow = append(g.Overflow, deeper)
		}
	}
}

// slotOf maps a displacement of exactly step cells per axis to a ring slot
func slotOf(dr, dc, step int) (int, bool) {
	if dr%step != 0 || dc%step != 0 {
		return 0, false
	}
	slot, ok := domain.GridIndexOf(dr/step, dc/step)
	if !ok || slot == 0 {
		return 0, false
	}
	return slot, true
}

// assign gives each epic a ring slot 1-8. Explicit positions are honored
// first-come; the rest take the lowest free slot. Epics left without a slot
// are absent from the result.
func assign(epics []domain.Epic, fromCoordinate func(domain.Position) (int, bool)) map[int]int {
	out := make(map[int]int, len(epics))
	taken := make(map[int]bool, slots)

	for i, e := range epics {
		if e.Position == nil {
			continue
		}
		slot, ok := e.Position.Index()
		if !ok {
			slot, ok = fromCoordinate(*e.Position)
		}
		if !ok || slot < 1 || slot > slots || taken[slot] {
			continue
		}
		out[i] = slot
		taken[slot] = true
	}

	next := 1
	for i := range epics {
		if _, ok := out[i]; ok {
			continue
		}
		for next <= slots && taken[next] {
			next++
		}
		if next > slots {
			break
		}
		out[i] = next
		taken[next] = true
	}
	return out
}

// Roots returns the epics without a parent, in order
func Roots(epics []domain.Epic) []domain.Epic {
	var roots []domain.Epic
	for _, e := range epics {
		if e.CoreEpicID == nil {
			roots = append(roots, e)
		}
	}
	return roots
}

// Find returns the epic with id anywhere in the forest
func Find(epics []domain.Epic, id int64) (*domain.Epic, bool) {
	for i := range epics {
		if epics[i].ID == id {
			return &epics[i], true
		}
		if e, ok := Find(epics[i].Subs, id); ok {
			return e, true
		}
	}
	return nil, false
}
