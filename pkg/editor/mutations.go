package editor

import (
	"context"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/pubsub"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Mutation operation names
const (
	OpCreateRoute  = "create-route"
	OpUpdateRoute  = "update-route"
	OpDeleteRoute  = "delete-route"
	OpAssignLink   = "assign-link"
	OpUnassignLink = "unassign-link"
	OpCreateLink   = "create-link"
	OpUpdateLink   = "update-link"
	OpDeleteLink   = "delete-link"
)

// finish applies the write policy once the server call has returned. A
// successful write reloads both aggregates. A failed write notifies the
// operator, and reconcile forces a reload anyway. Reloads after an assign or
// unassign keep the selected route.
func (s *Session) finish(ctx context.Context, op, entity string, id int64, err error, reconcile bool) error {
	s.metrics.RecordMutation(op, err)
	keepRoute := op == OpAssignLink || op == OpUnassignLink

	if err == nil {
		s.logger.Info("Mutation applied", logging.Operation(op), logging.Int64("id", id))
		return s.reload(ctx, TriggerMutation, keepRoute)
	}

	merr := &topology.MutationError{Op: op, Entity: entity, ID: id, Cause: err}
	s.logger.Warn("Mutation failed", logging.Operation(op), logging.Int64("id", id), logging.Error(err))
	s.notify(merr)
	if reconcile {
		if rerr := s.reload(ctx, TriggerReconcile, keepRoute); rerr != nil {
			s.logger.Error("Reconciling reload failed", logging.Operation(op), logging.Error(rerr))
		}
	}
	return merr
}

// CreateRoute creates a route and reloads
func (s *Session) CreateRoute(ctx context.Context, name string, routeType topology.RouteType, surface topology.SurfaceType) (topology.Route, error) {
	route, err := s.routes.Create(ctx, name, routeType, surface)
	if ferr := s.finish(ctx, OpCreateRoute, "route", route.ID, err, false); ferr != nil {
		return route, ferr
	}
	return route, nil
}

// UpdateRoute edits a route, echoing its derived length, and reloads
func (s *Session) UpdateRoute(ctx context.Context, routeID int64, edit topology.RouteEdit) (topology.Route, error) {
	route, err := s.routes.Update(ctx, routeID, edit)
	if ferr := s.finish(ctx, OpUpdateRoute, "route", routeID, err, false); ferr != nil {
		return route, ferr
	}
	return route, nil
}

// DeleteRoute removes a route. Its links become unassigned server-side.
func (s *Session) DeleteRoute(ctx context.Context, routeID int64) error {
	err := s.routes.Delete(ctx, routeID)
	return s.finish(ctx, OpDeleteRoute, "route", routeID, err, true)
}

// AssignLink moves a link onto a route. The assignment is shown immediately
// and reconciled by the following reload whatever the outcome. A route
// missing locally is never written into a link.
func (s *Session) AssignLink(ctx context.Context, routeID, linkID int64) error {
	if !s.routes.Exists(routeID) {
		return s.finish(ctx, OpAssignLink, "link", linkID, topology.NotFound("route", routeID), true)
	}
	s.setLinkRoute(linkID, &routeID)
	err := s.routes.AssignLink(ctx, routeID, linkID)
	return s.finish(ctx, OpAssignLink, "link", linkID, err, true)
}

// UnassignLink removes a link from a route. Unassigning a link that is not
// on the route is left to the server; a failure is reconciled like any
// other.
func (s *Session) UnassignLink(ctx context.Context, routeID, linkID int64) error {
	s.setLinkRoute(linkID, nil)
	err := s.routes.UnassignLink(ctx, routeID, linkID)
	return s.finish(ctx, OpUnassignLink, "link", linkID, err, true)
}

// UnassignSelected unassigns a link from whichever route it is on
func (s *Session) UnassignSelected(ctx context.Context, linkID int64) error {
	link, ok := s.graph.Link(linkID)
	if !ok {
		return s.finish(ctx, OpUnassignLink, "link", linkID, topology.NotFound("link", linkID), false)
	}
	if link.RouteID == nil {
		return nil
	}
	return s.UnassignLink(ctx, *link.RouteID, linkID)
}

func (s *Session) setLinkRoute(linkID int64, routeID *int64) {
	if err := s.graph.SetLinkRoute(linkID, routeID); err != nil {
		s.logger.Debug("Optimistic assignment skipped", logging.LinkID(linkID), logging.Error(err))
	}
	s.routes.SetLinkRoute(linkID, routeID)
	s.publish(pubsub.EventOptimistic, OpAssignLink, nil)
}

// CreateLink connects two known entities
func (s *Session) CreateLink(ctx context.Context, req topology.LinkCreate) (topology.Link, error) {
	link, err := s.graph.CreateLink(ctx, req)
	if ferr := s.finish(ctx, OpCreateLink, "link", link.ID, err, false); ferr != nil {
		return link, ferr
	}
	return link, nil
}

// UpdateLink edits a link's physical attributes. Fiber counters are sent
// as entered even when the type is not FIBER.
func (s *Session) UpdateLink(ctx context.Context, linkID int64, upd topology.LinkUpdate) (topology.Link, error) {
	link, err := s.graph.UpdateLink(ctx, linkID, upd)
	if ferr := s.finish(ctx, OpUpdateLink, "link", linkID, err, false); ferr != nil {
		return link, ferr
	}
	return link, nil
}

// DeleteLink removes a link
func (s *Session) DeleteLink(ctx context.Context, linkID int64) error {
	err := s.graph.DeleteLink(ctx, linkID)
	return s.finish(ctx, OpDeleteLink, "link", linkID, err, true)
}
