package editor

import (
	"context"

	"github.com/dd0wney/cluso-topology/pkg/drag"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/pubsub"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// BeginDrag starts dragging an entity from its current position. It reports
// false when the entity is unknown or a drag is already running.
func (s *Session) BeginDrag(ref topology.EntityRef, pointer topology.Position) bool {
	pos, ok := s.graph.Position(ref)
	if !ok || s.drag.State().Dragging {
		return false
	}
	s.applyDrag(context.Background(), s.drag.Handle(drag.Event{
		Kind:           drag.PointerDown,
		Pointer:        pointer,
		Ref:            ref,
		EntityPosition: pos,
	}))
	return true
}

// DragTo moves the dragged entity locally. No network call is made.
func (s *Session) DragTo(pointer topology.Position) {
	s.applyDrag(context.Background(), s.drag.Handle(drag.Event{Kind: drag.PointerMove, Pointer: pointer}))
}

// EndDrag finishes a drag at pointer and persists the final position once.
// A persist failure is logged only and keeps the local position.
func (s *Session) EndDrag(ctx context.Context, pointer topology.Position) {
	s.applyDrag(ctx, s.drag.Handle(drag.Event{Kind: drag.PointerUp, Pointer: pointer}))
}

// CancelDrag aborts a drag and restores the start position
func (s *Session) CancelDrag() {
	s.applyDrag(context.Background(), s.drag.Handle(drag.Event{Kind: drag.Cancel}))
}

// Dragging reports whether a drag is in progress
func (s *Session) Dragging() (topology.EntityRef, bool) {
	st := s.drag.State()
	return st.Ref, st.Dragging
}

// DragMoved reports whether the running drag has moved the entity
func (s *Session) DragMoved() bool {
	return s.drag.State().Moved
}

func (s *Session) applyDrag(ctx context.Context, effects []drag.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case drag.SetLocalPosition:
			if err := s.graph.SetLocalPosition(e.Ref, e.Position); err != nil {
				s.logger.Debug("Local move skipped", logging.Entity(e.Ref), logging.Error(err))
				continue
			}
			s.publish(pubsub.EventPosition, e.Ref.String(), nil)

		case drag.PersistPosition:
			err := s.graph.PersistPosition(ctx, e.Ref)
			s.metrics.RecordDrag(err)
			if err != nil {
				// graphstore already logged the failure; the local position stays
				continue
			}
			if rerr := s.Reload(ctx, TriggerPosition); rerr != nil {
				s.logger.Warn("Reload after move failed", logging.Entity(e.Ref), logging.Error(rerr))
			}
		}
	}
}
