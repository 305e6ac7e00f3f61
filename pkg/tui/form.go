package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

type formKind int

const (
	formNewRoute formKind = iota
	formEditRoute
	formEditLink
)

// Field order per form
const (
	fieldName = iota
	fieldRouteType
	fieldSurface
	fieldMaterial
)

const (
	fieldLinkType = iota
	fieldLength
	fieldCores
	fieldSplices
	fieldConnectors
)

// form is a modal editor made of text inputs. It is drawn in place of the
// inspector.
type form struct {
	kind   formKind
	id     int64
	title  string
	labels []string
	inputs []textinput.Model
	focus  int
	err    string
}

func newInput(value, placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 255
	ti.Width = 24
	ti.SetValue(value)
	return ti
}

func joinCodes[T ~string](codes []T) string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return strings.Join(out, " ")
}

func newRouteForm() *form {
	f := &form{
		kind:   formNewRoute,
		title:  "New route",
		labels: []string{"Name", "Type", "Surface"},
		inputs: []textinput.Model{
			newInput("", "Route name"),
			newInput(string(topology.RouteCableChannel), joinCodes(topology.RouteTypes)),
			newInput(string(topology.SurfaceWall), joinCodes(topology.SurfaceTypes)),
		},
	}
	f.setFocus(0)
	return f
}

func editRouteForm(r topology.Route) *form {
	material := ""
	if r.MainMaterialID != nil {
		material = strconv.FormatInt(*r.MainMaterialID, 10)
	}
	f := &form{
		kind:   formEditRoute,
		id:     r.ID,
		title:  fmt.Sprintf("Edit route %q", r.Name),
		labels: []string{"Name", "Type", "Surface", "Material id"},
		inputs: []textinput.Model{
			newInput(r.Name, "Route name"),
			newInput(string(r.RouteType), joinCodes(topology.RouteTypes)),
			newInput(string(r.SurfaceType), joinCodes(topology.SurfaceTypes)),
			newInput(material, "empty = none"),
		},
	}
	f.setFocus(0)
	return f
}

func editLinkForm(l topology.Link) *form {
	f := &form{
		kind:   formEditLink,
		id:     l.ID,
		title:  fmt.Sprintf("Edit link %d", l.ID),
		labels: []string{"Type", "Length (m)", "Fiber cores", "Splices", "Connectors"},
		inputs: []textinput.Model{
			newInput(string(l.LinkType), joinCodes(topology.LinkTypes)),
			newInput(formatFloat(l.Length), ""),
			newInput(formatInt(l.FiberCores), ""),
			newInput(formatInt(l.FiberSpliceCount), ""),
			newInput(formatInt(l.FiberConnectorCount), ""),
		},
	}
	f.setFocus(0)
	return f
}

// fiberEnabled reports whether the fiber counters are editable. The values
// are kept when the type changes away from FIBER.
func (f *form) fiberEnabled() bool {
	if f.kind != formEditLink {
		return false
	}
	t, ok := topology.ParseLinkType(f.inputs[fieldLinkType].Value())
	return ok && t == topology.LinkFiber
}

func (f *form) enabled(i int) bool {
	if f.kind == formEditLink && i >= fieldCores {
		return f.fiberEnabled()
	}
	return true
}

func (f *form) setFocus(i int) {
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.focus = i
	f.inputs[i].Focus()
}

// move shifts focus by step, skipping disabled fields
func (f *form) move(step int) {
	n := len(f.inputs)
	i := f.focus
	for range n {
		i = (i + step + n) % n
		if f.enabled(i) {
			f.setFocus(i)
			return
		}
	}
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

func (f *form) view() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(f.title))
	s.WriteString("\n")
	for i, in := range f.inputs {
		label := fmt.Sprintf("%-12s", f.labels[i])
		if !f.enabled(i) {
			s.WriteString(dimStyle.Render(label + " " + in.Value() + " (FIBER only)"))
		} else {
			s.WriteString(label + " " + in.View())
		}
		s.WriteString("\n")
	}
	if f.err != "" {
		s.WriteString(errorStyle.Render(f.err))
		s.WriteString("\n")
	}
	s.WriteString(helpStyle.Render("enter save • tab next • esc cancel"))
	return formStyle.Render(s.String())
}

// routeFields reads the route inputs. Codes are upper-cased; unknown codes
// are left for validation to reject.
func (f *form) routeFields() (string, topology.RouteType, topology.SurfaceType) {
	return f.value(fieldName),
		topology.RouteType(strings.ToUpper(f.value(fieldRouteType))),
		topology.SurfaceType(strings.ToUpper(f.value(fieldSurface)))
}

// routeEdit builds an edit from the route form. An empty or zero material
// clears it.
func (f *form) routeEdit() (topology.RouteEdit, error) {
	name, routeType, surface := f.routeFields()
	edit := topology.RouteEdit{Name: name, RouteType: routeType, SurfaceType: surface}

	raw := f.value(fieldMaterial)
	if raw == "" {
		return edit, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return edit, fmt.Errorf("material id must be a whole number")
	}
	if id > 0 {
		edit.MainMaterialID = &id
	}
	return edit, nil
}

// linkUpdate builds a link edit. Empty inputs keep the server value.
func (f *form) linkUpdate() (topology.LinkUpdate, error) {
	var upd topology.LinkUpdate

	if raw := f.value(fieldLinkType); raw != "" {
		t, ok := topology.ParseLinkType(raw)
		if !ok {
			return upd, fmt.Errorf("type must be one of %s", joinCodes(topology.LinkTypes))
		}
		upd.LinkType = t
	}
	if raw := f.value(fieldLength); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return upd, fmt.Errorf("length must be a number")
		}
		upd.Length = &v
	}

	counters := []struct {
		field int
		name  string
		dst   **int
	}{
		{fieldCores, "fiber cores", &upd.FiberCores},
		{fieldSplices, "splices", &upd.FiberSpliceCount},
		{fieldConnectors, "connectors", &upd.FiberConnectorCount},
	}
	for _, c := range counters {
		raw := f.value(c.field)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return upd, fmt.Errorf("%s must be a whole number", c.name)
		}
		*c.dst = &v
	}
	return upd, nil
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func formatInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
