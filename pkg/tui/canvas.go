package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-topology/pkg/render"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// TargetKind is what a canvas cell belongs to
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetLine
	TargetMarker
)

// Target is the clickable object under a cell
type Target struct {
	Kind TargetKind
	ID   int64 // link id for lines
	Ref  topology.EntityRef
}

type cell struct {
	ch      rune
	color   string
	bold    bool
	reverse bool
}

// Viewport maps world coordinates to terminal cells. Rows are twice as tall
// as columns are wide, so Y is scaled by two.
type Viewport struct {
	Scale  float64 // world units per column
	Offset topology.Position
}

// ToCell converts a world position to a cell
func (v Viewport) ToCell(p topology.Position) (int, int) {
	x := math.Round((p.X - v.Offset.X) / v.Scale)
	y := math.Round((p.Y - v.Offset.Y) / (v.Scale * 2))
	return int(x), int(y)
}

// ToWorld converts a cell back to a world position
func (v Viewport) ToWorld(x, y int) topology.Position {
	return topology.Position{
		X: float64(x)*v.Scale + v.Offset.X,
		Y: float64(y)*v.Scale*2 + v.Offset.Y,
	}
}

// Canvas is a character grid with a parallel hit map
type Canvas struct {
	width, height int
	view          Viewport
	cells         [][]cell
	hits          [][]Target
}

// NewCanvas allocates an empty canvas
func NewCanvas(width, height int, view Viewport) *Canvas {
	width, height = max(width, 1), max(height, 1)
	c := &Canvas{width: width, height: height, view: view}
	c.cells = make([][]cell, height)
	c.hits = make([][]Target, height)
	for y := range c.cells {
		c.cells[y] = make([]cell, width)
		c.hits[y] = make([]Target, width)
	}
	return c
}

// Draw paints a scene. Markers are drawn over lines so that they win hit
// tests.
func (c *Canvas) Draw(scene render.Scene) {
	for _, l := range scene.Lines {
		x0, y0 := c.view.ToCell(l.From.Position)
		x1, y1 := c.view.ToCell(l.To.Position)
		c.Line(x0, y0, x1, y1, cell{ch: lineRune(x1-x0, y1-y0), color: l.Color, bold: l.Active},
			Target{Kind: TargetLine, ID: l.Link.ID})
	}
	for _, m := range scene.Markers {
		x, y := c.view.ToCell(m.Entity.Position)
		glyph := '●'
		if m.Entity.Ref.Kind == topology.KindNode {
			glyph = '◆'
		}
		target := Target{Kind: TargetMarker, Ref: m.Entity.Ref}
		c.Set(x, y, cell{ch: glyph, color: markerColor, bold: true, reverse: m.Selected}, target)
		c.Text(x+1, y, m.Entity.Code, cell{color: labelColor, reverse: m.Selected}, target)
	}
}

// Line rasterizes a segment with Bresenham's algorithm. Both endpoints are
// included.
func (c *Canvas) Line(x0, y0, x1, y1 int, style cell, target Target) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.Set(x0, y0, style, target)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Text writes a string starting at (x, y)
func (c *Canvas) Text(x, y int, s string, style cell, target Target) {
	for i, r := range []rune(s) {
		st := style
		st.ch = r
		c.Set(x+i, y, st, target)
	}
}

// Set writes one cell; coordinates outside the canvas are ignored
func (c *Canvas) Set(x, y int, v cell, target Target) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	c.cells[y][x] = v
	c.hits[y][x] = target
}

// HitAt returns the target under a cell
func (c *Canvas) HitAt(x, y int) Target {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return Target{}
	}
	return c.hits[y][x]
}

// Find returns the first cell belonging to target
func (c *Canvas) Find(target Target) (int, int, bool) {
	for y, row := range c.hits {
		for x, t := range row {
			if t == target {
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

// Render returns the canvas as styled lines of exactly width columns
func (c *Canvas) Render() string {
	var b strings.Builder
	for y, row := range c.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		cur := cell{}
		flush := func() {
			if run.Len() == 0 {
				return
			}
			b.WriteString(styleOf(cur).Render(run.String()))
			run.Reset()
		}
		for _, v := range row {
			ch := v.ch
			if ch == 0 {
				ch = ' '
			}
			key := cell{color: v.color, bold: v.bold, reverse: v.reverse}
			if key != cur {
				flush()
				cur = key
			}
			run.WriteRune(ch)
		}
		flush()
	}
	return b.String()
}

func styleOf(v cell) lipgloss.Style {
	s := lipgloss.NewStyle()
	if v.color != "" {
		s = s.Foreground(lipgloss.Color(v.color))
	}
	return s.Bold(v.bold).Reverse(v.reverse)
}

// lineRune picks a glyph for a segment direction
func lineRune(dx, dy int) rune {
	switch {
	case dy == 0:
		return '─'
	case dx == 0:
		return '│'
	case abs(dx) > 2*abs(dy):
		return '─'
	case abs(dy) > 2*abs(dx):
		return '│'
	case (dx > 0) == (dy > 0):
		return '╲'
	default:
		return '╱'
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
