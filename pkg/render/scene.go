// Package render projects the stores and the selection onto a Scene. Render
// is recomputed wholesale on every state change.
package render

import (
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-topology/pkg/routestore"
	"github.com/dd0wney/cluso-topology/pkg/selection"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Input is everything a render reads
type Input struct {
	Entities       []topology.Entity
	Links          []topology.Link
	Routes         []topology.Route
	MaterialGroups []topology.MaterialGroup
	Selection      selection.State
	Palette        *Palette
	LoadErr        error
}

// RouteItem is one row of the route list
type RouteItem struct {
	Route     topology.Route
	Color     string
	LinkCount int
	Active    bool
}

// Marker is a positioned node or device
type Marker struct {
	Entity   topology.Entity
	Selected bool
}

// Line connects the centres of a link's endpoints
type Line struct {
	Link   topology.Link
	From   topology.Entity
	To     topology.Entity
	Color  string
	Active bool
}

// Scene is the visual tree. When Blocking is set nothing else is shown.
type Scene struct {
	Blocking  string
	Routes    []RouteItem
	Markers   []Marker
	Lines     []Line
	Skipped   []int64
	Inspector Inspector
}

// Render builds a scene
func Render(in Input) Scene {
	if in.LoadErr != nil {
		return Scene{Blocking: fmt.Sprintf("Failed to load: %v", in.LoadErr)}
	}
	palette := in.Palette
	if palette == nil {
		palette = NewPalette()
	}
	sel := in.Selection

	counts := make(map[int64]int, len(in.Routes))
	for _, l := range in.Links {
		if l.RouteID != nil {
			counts[*l.RouteID]++
		}
	}

	var scene Scene
	routesByID := make(map[int64]topology.Route, len(in.Routes))
	for _, r := range in.Routes {
		routesByID[r.ID] = r
		scene.Routes = append(scene.Routes, RouteItem{
			Route:     r,
			Color:     palette.Color(r.ID),
			LinkCount: counts[r.ID],
			Active:    sel.Kind == selection.RouteSelected && sel.ID == r.ID,
		})
	}

	entities := make(map[topology.EntityRef]topology.Entity, len(in.Entities))
	for _, e := range in.Entities {
		entities[e.Ref] = e
		scene.Markers = append(scene.Markers, Marker{Entity: e, Selected: isSelected(sel, e.Ref)})
	}

	resolve := func(ep topology.Endpoint) (topology.Entity, bool) {
		ref, err := ep.Ref()
		if err != nil {
			return topology.Entity{}, false
		}
		e, ok := entities[ref]
		return e, ok
	}

	for _, l := range in.Links {
		from, okFrom := resolve(l.From())
		to, okTo := resolve(l.To())
		if !okFrom || !okTo {
			scene.Skipped = append(scene.Skipped, l.ID)
			continue
		}
		color := UnassignedColor
		if l.RouteID != nil {
			if _, known := routesByID[*l.RouteID]; known {
				color = palette.Color(*l.RouteID)
			}
		}
		active := (sel.Kind == selection.LinkSelected && sel.ID == l.ID) ||
			(sel.Kind == selection.RouteSelected && l.RouteID != nil && *l.RouteID == sel.ID)
		scene.Lines = append(scene.Lines, Line{Link: l, From: from, To: to, Color: color, Active: active})
	}

	scene.Inspector = inspect(in, sel, routesByID, counts, resolve, palette)
	return scene
}

func isSelected(sel selection.State, ref topology.EntityRef) bool {
	switch sel.Kind {
	case selection.NodeSelected:
		return ref.Kind == topology.KindNode && ref.ID == sel.ID
	case selection.DeviceSelected:
		return ref.Kind == topology.KindDevice && ref.ID == sel.ID
	}
	return false
}

// InspectorKind selects which inspector is shown
type InspectorKind int

const (
	InspectorEmpty InspectorKind = iota
	InspectorRoute
	InspectorLink
	InspectorEntity
)

// Inspector is the side panel view model
type Inspector struct {
	Kind   InspectorKind
	Route  *RouteInspector
	Link   *LinkInspector
	Entity *topology.Entity
}

// RouteInspector shows a route's editable fields and derived length
type RouteInspector struct {
	Route          topology.Route
	Color          string
	LinkCount      int
	RouteTypes     []topology.RouteType
	SurfaceOptions []topology.SurfaceType
	MaterialGroups []topology.MaterialGroup
}

// LinkInspector shows a link with its endpoints and route
type LinkInspector struct {
	Link               topology.Link
	From               string
	To                 string
	RouteName          string
	LinkTypes          []topology.LinkType
	FiberFieldsEnabled bool
	AssignableRoutes   []topology.Route
}

func inspect(
	in Input,
	sel selection.State,
	routes map[int64]topology.Route,
	counts map[int64]int,
	resolve func(topology.Endpoint) (topology.Entity, bool),
	palette *Palette,
) Inspector {
	switch sel.Kind {
	case selection.RouteSelected:
		r, ok := routes[sel.ID]
		if !ok {
			return Inspector{}
		}
		return Inspector{Kind: InspectorRoute, Route: &RouteInspector{
			Route:          r,
			Color:          palette.Color(r.ID),
			LinkCount:      counts[r.ID],
			RouteTypes:     topology.RouteTypes,
			SurfaceOptions: routestore.SurfaceOptions(r),
			MaterialGroups: in.MaterialGroups,
		}}

	case selection.LinkSelected:
		for _, l := range in.Links {
			if l.ID != sel.ID {
				continue
			}
			li := &LinkInspector{
				Link:               l,
				From:               describe(l.From(), resolve),
				To:                 describe(l.To(), resolve),
				LinkTypes:          topology.LinkTypes,
				FiberFieldsEnabled: l.IsFiber(),
				AssignableRoutes:   assignable(in.Routes, l),
			}
			if l.RouteID != nil {
				if r, ok := routes[*l.RouteID]; ok {
					li.RouteName = r.Name
				}
			}
			return Inspector{Kind: InspectorLink, Link: li}
		}

	case selection.NodeSelected, selection.DeviceSelected:
		for _, e := range in.Entities {
			if isSelected(sel, e.Ref) {
				e := e
				return Inspector{Kind: InspectorEntity, Entity: &e}
			}
		}
	}
	return Inspector{}
}

func describe(ep topology.Endpoint, resolve func(topology.Endpoint) (topology.Entity, bool)) string {
	if e, ok := resolve(ep); ok {
		return e.Label()
	}
	ref, err := ep.Ref()
	if err != nil {
		return "(none)"
	}
	return fmt.Sprintf("(missing %s)", ref)
}

// assignable lists routes the link could move to, excluding its current one
func assignable(routes []topology.Route, l topology.Link) []topology.Route {
	out := make([]topology.Route, 0, len(routes))
	for _, r := range routes {
		if l.RouteID != nil && *l.RouteID == r.ID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return topology.CompareNames(out[i].Name, out[j].Name) < 0
	})
	return out
}

// LineCount returns the number of drawn lines, for metrics
func (s Scene) LineCount() int { return len(s.Lines) }
