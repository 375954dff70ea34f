package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GridSize is the side of the full mandalart grid (3x3 blocks of 3x3 cells)
const GridSize = 9

// PositionKind tells which wire contract a Position came from
type PositionKind int

const (
	// PositionGrid is an integer 0-8, clockwise in a 3x3 grid with 0 at the center
	PositionGrid PositionKind = iota + 1
	// PositionCoordinate is a "row,col" key into the 9x9 grid
	PositionCoordinate
)

// Position is either a GridIndex or a CoordinateKey. The two are mutually
// exclusive encodings of the same field and round-trip in the form received.
type Position struct {
	kind  PositionKind
	index int
	row   int
	col   int
	// raw holds a coordinate string that is not "r,c"; it is echoed back unchanged
	raw string
}

// GridIndex returns a clockwise 3x3 position
func GridIndex(i int) Position {
	return Position{kind: PositionGrid, index: i}
}

// CoordinateKey returns a 9x9 cell position
func CoordinateKey(row, col int) Position {
	return Position{kind: PositionCoordinate, row: row, col: col}
}

// RawCoordinate keeps a coordinate string that does not parse as "r,c".
// It has no cell and fails Validate.
func RawCoordinate(s string) Position {
	return Position{kind: PositionCoordinate, raw: s}
}

func (p Position) Kind() PositionKind { return p.kind }

// Index returns the grid index and whether p is a GridIndex
func (p Position) Index() (int, bool) {
	return p.index, p.kind == PositionGrid
}

// Cell returns the row and column and whether p is a CoordinateKey
func (p Position) Cell() (row, col int, ok bool) {
	return p.row, p.col, p.kind == PositionCoordinate && p.raw == ""
}

// Validate checks the range of either variant
func (p Position) Validate() error {
	switch p.kind {
	case PositionGrid:
		if p.index < 0 || p.index > 8 {
			return fmt.Errorf("grid position %d out of range [0,8]", p.index)
		}
	case PositionCoordinate:
		if p.raw != "" {
			return fmt.Errorf("coordinate key %q is not \"row,col\"", p.raw)
		}
		if p.row < 0 || p.row >= GridSize || p.col < 0 || p.col >= GridSize {
			return fmt.Errorf("coordinate %d,%d outside %dx%d grid", p.row, p.col, GridSize, GridSize)
		}
	default:
		return fmt.Errorf("empty position")
	}
	return nil
}

// String is the storage form: "3" for a grid index, "4,4" for a coordinate
func (p Position) String() string {
	switch p.kind {
	case PositionGrid:
		return strconv.Itoa(p.index)
	case PositionCoordinate:
		if p.raw != "" {
			return p.raw
		}
		return fmt.Sprintf("%d,%d", p.row, p.col)
	}
	return ""
}

// ParsePosition reads the storage form back. Legacy "(4, 4)" keys are accepted.
func ParsePosition(s string) (Position, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Position{}, fmt.Errorf("empty position")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return GridIndex(n), nil
	}
	return ParseCoordinateKey(s)
}

// ReadPosition is ParsePosition for data already accepted elsewhere:
// strings it cannot parse come back as a RawCoordinate instead of an error
func ReadPosition(s string) (Position, bool) {
	if strings.TrimSpace(s) == "" {
		return Position{}, false
	}
	p, err := ParsePosition(s)
	if err != nil {
		return RawCoordinate(s), true
	}
	return p, true
}

// ParseCoordinateKey parses "r,c", also tolerating "(r, c)"
func ParseCoordinateKey(s string) (Position, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")

	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("invalid coordinate key %q", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Position{}, fmt.Errorf("invalid coordinate row in %q: %w", s, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Position{}, fmt.Errorf("invalid coordinate column in %q: %w", s, err)
	}
	return CoordinateKey(row, col), nil
}

func (p Position) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case PositionGrid:
		return json.Marshal(p.index)
	case PositionCoordinate:
		return json.Marshal(p.String())
	}
	return []byte("null"), nil
}

func (p *Position) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Position{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		pos, err := ParseCoordinateKey(s)
		if err != nil {
			pos = RawCoordinate(s)
		}
		*p = pos
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("position must be an integer or a coordinate string: %w", err)
	}
	*p = GridIndex(n)
	return nil
}

// clockwise offsets for grid indexes 1-8, starting at the top-left cell
var clockwise = [9][2]int{
	{0, 0},
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, 1},
	{1, 1}, {1, 0}, {1, -1},
	{0, -1},
}

// Offset returns the (row, col) step of a grid index from the center of its 3x3 block
func Offset(index int) (int, int, bool) {
	if index < 0 || index > 8 {
		return 0, 0, false
	}
	return clockwise[index][0], clockwise[index][1], true
}

// BlockCenter is the 9x9 cell at the center of the 3x3 block a top-level
// grid index owns: 0 -> (4,4), 1 -> (1,1), 2 -> (1,4) and so on clockwise.
func BlockCenter(index int) (Position, bool) {
	dr, dc, ok := Offset(index)
	if !ok {
		return Position{}, false
	}
	return CoordinateKey(4+3*dr, 4+3*dc), true
}

// GridIndexOf is the inverse of Offset for a cell relative to its block center
func GridIndexOf(dr, dc int) (int, bool) {
	for i, off := range clockwise {
		if off[0] == dr && off[1] == dc {
			return i, true
		}
	}
	return 0, false
}
