// Package selection is the editor's selection state machine. Dispatch is a
// pure function; callers apply the returned effects.
package selection

import "fmt"

// Kind is the selection state
type Kind int

const (
	Idle Kind = iota
	RouteSelected
	LinkSelected
	NodeSelected
	DeviceSelected
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case RouteSelected:
		return "route"
	case LinkSelected:
		return "link"
	case NodeSelected:
		return "node"
	case DeviceSelected:
		return "device"
	default:
		return "unknown"
	}
}

// State is the current selection. ID is zero in Idle.
type State struct {
	Kind Kind
	ID   int64
}

// None is the empty selection
var None = State{Kind: Idle}

// Route returns RouteSelected(id)
func Route(id int64) State { return State{Kind: RouteSelected, ID: id} }

// Link returns LinkSelected(id)
func Link(id int64) State { return State{Kind: LinkSelected, ID: id} }

// Node returns NodeSelected(id)
func Node(id int64) State { return State{Kind: NodeSelected, ID: id} }

// Device returns DeviceSelected(id)
func Device(id int64) State { return State{Kind: DeviceSelected, ID: id} }

func (s State) String() string {
	if s.Kind == Idle {
		return "idle"
	}
	return fmt.Sprintf("%s(%d)", s.Kind, s.ID)
}

// ActionKind is a user or system event
type ActionKind int

const (
	ClickRoute ActionKind = iota
	ClickLink
	ClickNode
	ClickDevice
	ClickBackground
	Reloaded
)

// Action is dispatched to the state machine. For Reloaded, Exists reports
// which selections survived the reload, and KeepRoute marks the reload that
// follows an assignment change: a surviving RouteSelected is kept so that
// links can be assigned one after another.
type Action struct {
	Kind      ActionKind
	ID        int64
	Exists    func(State) bool
	KeepRoute bool
}

// Caps parameterizes the machine for one editor surface
type Caps struct {
	// AssignOnLinkClick makes a link click while a route is selected assign
	// the link instead of selecting it (routes editor)
	AssignOnLinkClick bool
	// SelectEntities lets node/device clicks select the inert entity states
	// (topology editor); otherwise they are ignored
	SelectEntities bool
	// KeepSelectionOnReload keeps a selection whose target survived a reload.
	// By default every successful reload resets to Idle.
	KeepSelectionOnReload bool
}

// TopologyEditor is the capability set of the base topology editor
var TopologyEditor = Caps{SelectEntities: true}

// RoutesEditor is the capability set of the route assignment editor
var RoutesEditor = Caps{AssignOnLinkClick: true}

// EffectKind names a side effect requested by a transition
type EffectKind int

const (
	// AssignLink assigns LinkID to RouteID
	AssignLink EffectKind = iota
)

// Effect is a side effect for the caller to perform
type Effect struct {
	Kind    EffectKind
	RouteID int64
	LinkID  int64
}

// Dispatch computes the next state and any effects
func Dispatch(caps Caps, s State, a Action) (State, []Effect) {
	switch a.Kind {
	case ClickRoute:
		return Route(a.ID), nil

	case ClickLink:
		if s.Kind == RouteSelected && caps.AssignOnLinkClick {
			return s, []Effect{{Kind: AssignLink, RouteID: s.ID, LinkID: a.ID}}
		}
		return Link(a.ID), nil

	case ClickNode:
		if caps.SelectEntities {
			return Node(a.ID), nil
		}
		return s, nil

	case ClickDevice:
		if caps.SelectEntities {
			return Device(a.ID), nil
		}
		return s, nil

	case ClickBackground:
		return None, nil

	case Reloaded:
		if s.Kind == Idle || a.Exists == nil || !a.Exists(s) {
			return None, nil
		}
		if caps.KeepSelectionOnReload || (a.KeepRoute && s.Kind == RouteSelected) {
			return s, nil
		}
		return None, nil
	}
	return s, nil
}
