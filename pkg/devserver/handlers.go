package devserver

import (
	"net/http"

	"github.com/dd0wney/cluso-topology/pkg/changefeed"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.data.Topology())
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	s.respondJSON(w, http.StatusOK, s.data.Routes())
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	var req topology.RouteCreate
	if s.newRequestDecoder(w, r).DecodeJSON(&req).RespondError() {
		return
	}
	route, err := s.data.CreateRoute(req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindRouteCreated, route.ID)
	s.respondJSON(w, http.StatusCreated, route)
}

func (s *Server) handleUpdateRoute(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req topology.RouteUpdate
	if s.newRequestDecoder(w, r).DecodeJSON(&req).RespondError() {
		return
	}
	route, err := s.data.UpdateRoute(id, req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindRouteUpdated, id)
	s.respondJSON(w, http.StatusOK, route)
}

func (s *Server) handleDeleteRoute(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.data.DeleteRoute(id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindRouteDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAssignLink(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, s.data.AssignLink)
}

func (s *Server) handleUnassignLink(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, s.data.UnassignLink)
}

func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request, apply func(routeID, linkID int64) error) {
	if !s.checkCalculation(w, r) {
		return
	}
	routeID, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req topology.LinkAssignment
	if s.newRequestDecoder(w, r).DecodeJSON(&req).RespondError() {
		return
	}
	if req.LinkID <= 0 {
		s.respondError(w, http.StatusBadRequest, "linkId is required")
		return
	}
	if err := apply(routeID, req.LinkID); err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindLinkAssigned, req.LinkID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	var req topology.LinkCreate
	if s.newRequestDecoder(w, r).DecodeJSON(&req).RespondError() {
		return
	}
	link, err := s.data.CreateLink(req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindLinkCreated, link.ID)
	s.respondJSON(w, http.StatusCreated, link)
}

func (s *Server) handleUpdateLink(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var req topology.LinkUpdate
	if s.newRequestDecoder(w, r).DecodeJSON(&req).RespondError() {
		return
	}
	link, err := s.data.UpdateLink(id, req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindLinkUpdated, id)
	s.respondJSON(w, http.StatusOK, link)
}

func (s *Server) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.data.DeleteLink(id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindLinkDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if !s.checkCalculation(w, r) {
		return
	}
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}
	var kind topology.EntityKind
	switch r.PathValue("kind") {
	case topology.KindNode.PathSegment():
		kind = topology.KindNode
	case topology.KindDevice.PathSegment():
		kind = topology.KindDevice
	default:
		s.respondError(w, http.StatusNotFound, "unknown entity collection")
		return
	}
	var pos topology.PositionUpdate
	if s.newRequestDecoder(w, r).DecodeJSON(&pos).RespondError() {
		return
	}
	ref := topology.EntityRef{Kind: kind, ID: id}
	if err := s.data.Move(ref, pos); err != nil {
		s.respondErr(w, err)
		return
	}
	s.announce(changefeed.KindEntityMoved, id)
	w.WriteHeader(http.StatusNoContent)
}
