package topology

import (
	"fmt"
	"strings"
)

// EntityKind distinguishes the two positioned endpoint kinds
type EntityKind string

const (
	KindNode   EntityKind = "node"
	KindDevice EntityKind = "device"
)

// PathSegment returns the URL collection segment for the kind
func (k EntityKind) PathSegment() string {
	switch k {
	case KindNode:
		return "nodes"
	case KindDevice:
		return "devices"
	default:
		return ""
	}
}

// Valid reports whether k is a known entity kind
func (k EntityKind) Valid() bool {
	return k == KindNode || k == KindDevice
}

// EntityRef identifies a node or a device
type EntityRef struct {
	Kind EntityKind
	ID   int64
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// Position represents a 2D coordinate on the editor canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p shifted by d
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Sub returns the delta from q to p
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// Node is a structural topology point (panel, junction, ...).
// X and Y are nil until the operator places it.
type Node struct {
	ID   int64    `json:"id"`
	Code string   `json:"code"`
	Name string   `json:"name"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
}

// Device is an equipment endpoint. Same shape as Node plus the equipment type.
type Device struct {
	ID   int64    `json:"id"`
	Type string   `json:"type,omitempty"`
	Code string   `json:"code"`
	Name string   `json:"name"`
	X    *float64 `json:"x"`
	Y    *float64 `json:"y"`
}

// Entity is a resolved endpoint: either a node or a device with its
// display position.
type Entity struct {
	Ref      EntityRef
	Code     string
	Name     string
	Position Position
}

// Label returns the human readable endpoint description
func (e Entity) Label() string {
	switch e.Ref.Kind {
	case KindNode:
		return "[Node] " + e.Name
	case KindDevice:
		return "[Device] " + e.Name
	}
	return e.Name
}

// Topology is the node/device/link aggregate of one calculation
type Topology struct {
	Nodes   []Node   `json:"nodes"`
	Devices []Device `json:"devices"`
	Links   []Link   `json:"links"`
}

// Clone returns a deep copy of t
func (t Topology) Clone() Topology {
	out := Topology{
		Nodes:   make([]Node, len(t.Nodes)),
		Devices: make([]Device, len(t.Devices)),
		Links:   make([]Link, len(t.Links)),
	}
	for i, n := range t.Nodes {
		n.X, n.Y = cloneFloat(n.X), cloneFloat(n.Y)
		out.Nodes[i] = n
	}
	for i, d := range t.Devices {
		d.X, d.Y = cloneFloat(d.X), cloneFloat(d.Y)
		out.Devices[i] = d
	}
	for i, l := range t.Links {
		out.Links[i] = l.Clone()
	}
	return out
}

// Material is read-only reference data offered as a route's main material
type Material struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// DefaultMaterialCategory groups materials that carry no category
const DefaultMaterialCategory = "Materials"

// MaterialGroup is a category with its materials sorted by name
type MaterialGroup struct {
	Category  string
	Materials []Material
}

// CompareNames orders names case-insensitively, falling back to byte order
func CompareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// ID returns a pointer to v
func ID(v int64) *int64 { return &v }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
