// Package routestore caches routes, their link membership and the material
// catalogue of one calculation.
package routestore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/topology"
	"github.com/dd0wney/cluso-topology/pkg/validation"
)

// API is the subset of the sync client the store needs
type API interface {
	LoadRoutes(ctx context.Context) (topology.Routes, error)
	CreateRoute(ctx context.Context, req topology.RouteCreate) (topology.Route, error)
	UpdateRoute(ctx context.Context, routeID int64, req topology.RouteUpdate) (topology.Route, error)
	DeleteRoute(ctx context.Context, routeID int64) error
	AssignLink(ctx context.Context, routeID, linkID int64) error
	UnassignLink(ctx context.Context, routeID, linkID int64) error
}

// Snapshot is an immutable copy of the routes aggregate
type Snapshot struct {
	Routes    []topology.Route
	Links     []topology.RouteLink
	Materials []topology.Material
}

// Store is rebuilt in full on every Load
type Store struct {
	api    API
	logger logging.Logger

	mu        sync.RWMutex
	loaded    bool
	routes    []topology.Route // sorted by name
	links     []topology.RouteLink
	materials []topology.Material
}

// New creates an empty store
func New(api API, logger logging.Logger) *Store {
	return &Store{
		api:    api,
		logger: logging.OrDefault(logger).With(logging.Component("routestore")),
	}
}

// Reset drops all cached data
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes, s.links, s.materials = nil, nil, nil
	s.loaded = false
}

// Loaded reports whether a snapshot has been installed
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Load fetches the routes aggregate and replaces the cache
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	r, err := s.api.LoadRoutes(ctx)
	if err != nil {
		return Snapshot{}, &topology.LoadError{Aggregate: "routes", Cause: err}
	}
	s.Replace(r)
	s.logger.Debug("Routes loaded",
		logging.Int("routes", len(r.Routes)),
		logging.Int("links", len(r.Links)),
		logging.Int("materials", len(r.Materials)),
	)
	return s.Snapshot(), nil
}

// Replace installs an aggregate
func (s *Store) Replace(r topology.Routes) {
	routes := slices.Clone(r.Routes)
	sortRoutes(routes)
	links := make([]topology.RouteLink, len(r.Links))
	for i, l := range r.Links {
		links[i] = cloneRouteLink(l)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = routes
	s.links = links
	s.materials = slices.Clone(r.Materials)
	s.loaded = true
}

func sortRoutes(routes []topology.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		if c := topology.CompareNames(routes[i].Name, routes[j].Name); c != 0 {
			return c < 0
		}
		return routes[i].ID < routes[j].ID
	})
}

// Snapshot returns a copy of the cached aggregate
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := make([]topology.RouteLink, len(s.links))
	for i, l := range s.links {
		links[i] = cloneRouteLink(l)
	}
	return Snapshot{
		Routes:    cloneRoutes(s.routes),
		Links:     links,
		Materials: slices.Clone(s.materials),
	}
}

// Routes lists routes sorted by name, case-insensitive
func (s *Store) Routes() []topology.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRoutes(s.routes)
}

// Route returns one route
func (s *Store) Route(id int64) (topology.Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.ID == id {
			return cloneRoute(r), true
		}
	}
	return topology.Route{}, false
}

// Exists reports whether the route is cached
func (s *Store) Exists(id int64) bool {
	_, ok := s.Route(id)
	return ok
}

// LinkCounts returns the number of links assigned to each route
func (s *Store) LinkCounts() map[int64]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[int64]int, len(s.routes))
	for _, l := range s.links {
		if l.RouteID != nil {
			counts[*l.RouteID]++
		}
	}
	return counts
}

// RouteOf returns the route a link is assigned to
func (s *Store) RouteOf(linkID int64) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.links {
		if l.ID == linkID && l.RouteID != nil {
			return *l.RouteID, true
		}
	}
	return 0, false
}

// Create validates and creates a route. The cache is refreshed by the
// caller's reload.
func (s *Store) Create(ctx context.Context, name string, routeType topology.RouteType, surface topology.SurfaceType) (topology.Route, error) {
	req := topology.RouteCreate{Name: name, RouteType: routeType, SurfaceType: surface}
	if err := validation.ValidateRouteCreate(&req); err != nil {
		return topology.Route{}, err
	}
	r, err := s.api.CreateRoute(ctx, req)
	if err != nil {
		return topology.Route{}, err
	}
	s.logger.Info("Route created", logging.RouteID(r.ID), logging.String("name", r.Name))
	return r, nil
}

// UpdateRequest builds the wire body for an edit. The stored length is
// echoed unchanged; a nil material becomes 0.
func UpdateRequest(current topology.Route, edit topology.RouteEdit) topology.RouteUpdate {
	var material int64
	if edit.MainMaterialID != nil {
		material = *edit.MainMaterialID
	}
	return topology.RouteUpdate{
		Name:           edit.Name,
		RouteType:      edit.RouteType,
		SurfaceType:    edit.SurfaceType,
		MainMaterialID: material,
		LengthMeters:   current.Length,
	}
}

// Update validates and sends a route edit
func (s *Store) Update(ctx context.Context, routeID int64, edit topology.RouteEdit) (topology.Route, error) {
	current, ok := s.Route(routeID)
	if !ok {
		return topology.Route{}, topology.NotFound("route", routeID)
	}
	req := UpdateRequest(current, edit)
	if err := validation.ValidateRouteUpdate(&req); err != nil {
		return topology.Route{}, err
	}
	return s.api.UpdateRoute(ctx, routeID, req)
}

// Delete removes a route; its links become unassigned on the server
func (s *Store) Delete(ctx context.Context, routeID int64) error {
	if !s.Exists(routeID) {
		return topology.NotFound("route", routeID)
	}
	return s.api.DeleteRoute(ctx, routeID)
}

// AssignLink assigns a link to an existing route. The server moves it off
// any previous route.
func (s *Store) AssignLink(ctx context.Context, routeID, linkID int64) error {
	if !s.Exists(routeID) {
		return topology.NotFound("route", routeID)
	}
	if err := validation.ValidateLinkAssignment(&topology.LinkAssignment{LinkID: linkID}); err != nil {
		return err
	}
	return s.api.AssignLink(ctx, routeID, linkID)
}

// UnassignLink removes a link from a route
func (s *Store) UnassignLink(ctx context.Context, routeID, linkID int64) error {
	if err := validation.ValidateLinkAssignment(&topology.LinkAssignment{LinkID: linkID}); err != nil {
		return err
	}
	return s.api.UnassignLink(ctx, routeID, linkID)
}

// SetLinkRoute mirrors an optimistic assignment in the routes view. A nil
// routeID unassigns.
func (s *Store) SetLinkRoute(linkID int64, routeID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.links {
		if s.links[i].ID == linkID {
			if routeID == nil {
				s.links[i].RouteID = nil
			} else {
				s.links[i].RouteID = topology.ID(*routeID)
			}
			return
		}
	}
}

// SurfaceOptions lists the standard surfaces plus the route's legacy value
// so that it round-trips through an edit form
func SurfaceOptions(route topology.Route) []topology.SurfaceType {
	opts := slices.Clone(topology.SurfaceTypes)
	if route.SurfaceType != "" && !route.SurfaceType.IsStandard() {
		opts = append(opts, route.SurfaceType)
	}
	return opts
}

// MaterialGroups groups the catalogue by category. Materials without a
// category go under DefaultMaterialCategory.
func (s *Store) MaterialGroups() []topology.MaterialGroup {
	s.mu.RLock()
	materials := slices.Clone(s.materials)
	s.mu.RUnlock()
	return GroupMaterials(materials)
}

// GroupMaterials sorts groups by category and materials by name
func GroupMaterials(materials []topology.Material) []topology.MaterialGroup {
	byCategory := make(map[string][]topology.Material)
	for _, m := range materials {
		cat := m.Category
		if cat == "" {
			cat = topology.DefaultMaterialCategory
		}
		byCategory[cat] = append(byCategory[cat], m)
	}

	groups := make([]topology.MaterialGroup, 0, len(byCategory))
	for cat, ms := range byCategory {
		sort.SliceStable(ms, func(i, j int) bool {
			return topology.CompareNames(ms[i].Name, ms[j].Name) < 0
		})
		groups = append(groups, topology.MaterialGroup{Category: cat, Materials: ms})
	}
	sort.Slice(groups, func(i, j int) bool {
		return topology.CompareNames(groups[i].Category, groups[j].Category) < 0
	})
	return groups
}

func cloneRoute(r topology.Route) topology.Route {
	if r.MainMaterialID != nil {
		r.MainMaterialID = topology.ID(*r.MainMaterialID)
	}
	return r
}

func cloneRoutes(rs []topology.Route) []topology.Route {
	out := make([]topology.Route, len(rs))
	for i, r := range rs {
		out[i] = cloneRoute(r)
	}
	return out
}

func cloneRouteLink(l topology.RouteLink) topology.RouteLink {
	c := l.AsLink()
	return topology.RouteLink{
		ID:           c.ID,
		FromNodeID:   c.FromNodeID,
		ToNodeID:     c.ToNodeID,
		FromDeviceID: c.FromDeviceID,
		ToDeviceID:   c.ToDeviceID,
		RouteID:      c.RouteID,
		Length:       c.Length,
		LinkType:     c.LinkType,
	}
}
