package render

import "sync"

// Colors is the route palette, assigned in first-seen order and cycled
var Colors = []string{
	"#2563eb", "#059669", "#f97316", "#8b5cf6",
	"#14b8a6", "#ef4444", "#0ea5e9", "#f59e0b",
}

// UnassignedColor styles links that belong to no route
const UnassignedColor = "#9ca3af"

// Palette keeps route colours stable for a session until Reset
type Palette struct {
	mu     sync.Mutex
	colors map[int64]string
	next   int
}

// NewPalette creates an empty palette
func NewPalette() *Palette {
	return &Palette{colors: make(map[int64]string)}
}

// Color returns the route's colour, assigning the next one on first sight
func (p *Palette) Color(routeID int64) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.colors[routeID]; ok {
		return c
	}
	c := Colors[p.next%len(Colors)]
	p.next++
	p.colors[routeID] = c
	return c
}

// Reset forgets every assignment. Called on full reload.
func (p *Palette) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors = make(map[int64]string)
	p.next = 0
}
