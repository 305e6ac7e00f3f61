// Package drag implements drag-to-reposition. Positions change locally on
// every pointer move; exactly one persist is requested per completed drag.
package drag

import (
	"sync"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// State is Idle when Dragging is false
type State struct {
	Dragging      bool
	Ref           topology.EntityRef
	StartPointer  topology.Position
	StartPosition topology.Position
	Moved         bool
}

// Idle is the resting state
var Idle = State{}

// EventKind is a pointer event
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	// Cancel aborts a drag and restores the start position
	Cancel
)

// Event is a pointer event in world coordinates. Ref and EntityPosition are
// only read on PointerDown.
type Event struct {
	Kind           EventKind
	Pointer        topology.Position
	Ref            topology.EntityRef
	EntityPosition topology.Position
}

// EffectKind names a side effect
type EffectKind int

const (
	// SetLocalPosition moves the entity in memory only
	SetLocalPosition EffectKind = iota
	// PersistPosition saves the entity's current position
	PersistPosition
)

// Effect is applied by the caller in order
type Effect struct {
	Kind     EffectKind
	Ref      topology.EntityRef
	Position topology.Position
}

// Step computes the next drag state. Move and Up while idle are no-ops, as
// is a second PointerDown during a drag.
func Step(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case PointerDown:
		if s.Dragging {
			return s, nil
		}
		return State{
			Dragging:      true,
			Ref:           ev.Ref,
			StartPointer:  ev.Pointer,
			StartPosition: ev.EntityPosition,
		}, nil

	case PointerMove:
		if !s.Dragging {
			return s, nil
		}
		s.Moved = true
		return s, []Effect{{Kind: SetLocalPosition, Ref: s.Ref, Position: s.target(ev.Pointer)}}

	case PointerUp:
		if !s.Dragging {
			return s, nil
		}
		final := s.target(ev.Pointer)
		return Idle, []Effect{
			{Kind: SetLocalPosition, Ref: s.Ref, Position: final},
			{Kind: PersistPosition, Ref: s.Ref, Position: final},
		}

	case Cancel:
		if !s.Dragging {
			return s, nil
		}
		return Idle, []Effect{{Kind: SetLocalPosition, Ref: s.Ref, Position: s.StartPosition}}
	}
	return s, nil
}

func (s State) target(pointer topology.Position) topology.Position {
	return s.StartPosition.Add(pointer.Sub(s.StartPointer))
}

// Controller holds the drag state for one editor
type Controller struct {
	mu    sync.Mutex
	state State
}

// NewController creates an idle controller
func NewController() *Controller {
	return &Controller{}
}

// Handle advances the state and returns the effects to apply
func (c *Controller) Handle(ev Event) []Effect {
	c.mu.Lock()
	defer c.mu.Unlock()
	var effects []Effect
	c.state, effects = Step(c.state, ev)
	return effects
}

// State returns the current drag state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
