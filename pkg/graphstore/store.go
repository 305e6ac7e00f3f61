// Package graphstore caches the node/device/link aggregate of one
// calculation and resolves link endpoints to positioned entities.
package graphstore

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/topology"
	"github.com/dd0wney/cluso-topology/pkg/validation"
)

// API is the subset of the sync client the store needs
type API interface {
	LoadTopology(ctx context.Context) (topology.Topology, error)
	CreateLink(ctx context.Context, req topology.LinkCreate) (topology.Link, error)
	UpdateLink(ctx context.Context, linkID int64, req topology.LinkUpdate) (topology.Link, error)
	DeleteLink(ctx context.Context, linkID int64) error
	MovePosition(ctx context.Context, ref topology.EntityRef, pos topology.PositionUpdate) error
}

// Default placement for entities the server has no position for
const (
	nodeSpacing   = 40.0
	deviceSpacing = 60.0
	deviceOffsetY = 120.0
)

// Store is a cache rebuilt in full on every Load. Only drag positions and
// optimistic route assignments are applied locally between loads.
type Store struct {
	api    API
	logger logging.Logger

	mu        sync.RWMutex
	loaded    bool
	nodes     []topology.Node
	devices   []topology.Device
	links     []topology.Link
	nodeIdx   map[int64]int
	deviceIdx map[int64]int
	linkIdx   map[int64]int
}

// New creates an empty store
func New(api API, logger logging.Logger) *Store {
	s := &Store{
		api:    api,
		logger: logging.OrDefault(logger).With(logging.Component("graphstore")),
	}
	s.Reset()
	return s
}

// Reset drops all cached data
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(topology.Topology{})
	s.loaded = false
}

// Loaded reports whether a snapshot has been installed
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Load fetches the topology aggregate and replaces the cache
func (s *Store) Load(ctx context.Context) (topology.Topology, error) {
	t, err := s.api.LoadTopology(ctx)
	if err != nil {
		return topology.Topology{}, &topology.LoadError{Aggregate: "topology", Cause: err}
	}
	s.Replace(t)
	s.logger.Debug("Topology loaded",
		logging.Int("nodes", len(t.Nodes)),
		logging.Int("devices", len(t.Devices)),
		logging.Int("links", len(t.Links)),
	)
	return t.Clone(), nil
}

// Replace installs a snapshot
func (s *Store) Replace(t topology.Topology) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(t.Clone())
	s.loaded = true
}

func (s *Store) install(t topology.Topology) {
	s.nodes, s.devices, s.links = t.Nodes, t.Devices, t.Links
	s.nodeIdx = make(map[int64]int, len(s.nodes))
	for i, n := range s.nodes {
		s.nodeIdx[n.ID] = i
	}
	s.deviceIdx = make(map[int64]int, len(s.devices))
	for i, d := range s.devices {
		s.deviceIdx[d.ID] = i
	}
	s.reindexLinks()
}

func (s *Store) reindexLinks() {
	s.linkIdx = make(map[int64]int, len(s.links))
	for i, l := range s.links {
		s.linkIdx[l.ID] = i
	}
}

// ApplyAssignments overlays route membership from the routes aggregate.
// Links only known to the routes aggregate are added.
func (s *Store) ApplyAssignments(routeLinks []topology.RouteLink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rl := range routeLinks {
		if i, ok := s.linkIdx[rl.ID]; ok {
			s.links[i].RouteID = copyID(rl.RouteID)
			if s.links[i].LinkType == "" {
				s.links[i].LinkType = rl.LinkType
			}
			continue
		}
		s.links = append(s.links, rl.AsLink())
		s.linkIdx[rl.ID] = len(s.links) - 1
	}
}

// Snapshot returns a copy of the cached aggregate
func (s *Store) Snapshot() topology.Topology {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return topology.Topology{Nodes: s.nodes, Devices: s.devices, Links: s.links}.Clone()
}

// Links returns a copy of all links in server order
func (s *Store) Links() []topology.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]topology.Link, len(s.links))
	for i, l := range s.links {
		out[i] = l.Clone()
	}
	return out
}

// Link returns a copy of one link
func (s *Store) Link(id int64) (topology.Link, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.linkIdx[id]
	if !ok {
		return topology.Link{}, false
	}
	return s.links[i].Clone(), true
}

// Entities returns every node then every device with its display position
func (s *Store) Entities() []topology.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]topology.Entity, 0, len(s.nodes)+len(s.devices))
	for i := range s.nodes {
		out = append(out, s.nodeEntity(i))
	}
	for i := range s.devices {
		out = append(out, s.deviceEntity(i))
	}
	return out
}

// Entity resolves a node or device reference
func (s *Store) Entity(ref topology.EntityRef) (topology.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entity(ref)
}

// ResolveEndpoint resolves a link endpoint. It fails when neither or both
// ids are set or the id is unknown.
func (s *Store) ResolveEndpoint(ep topology.Endpoint) (topology.Entity, bool) {
	ref, err := ep.Ref()
	if err != nil {
		return topology.Entity{}, false
	}
	return s.Entity(ref)
}

// Position returns the explicit or default display position
func (s *Store) Position(ref topology.EntityRef) (topology.Position, bool) {
	e, ok := s.Entity(ref)
	return e.Position, ok
}

func (s *Store) entity(ref topology.EntityRef) (topology.Entity, bool) {
	switch ref.Kind {
	case topology.KindNode:
		if i, ok := s.nodeIdx[ref.ID]; ok {
			return s.nodeEntity(i), true
		}
	case topology.KindDevice:
		if i, ok := s.deviceIdx[ref.ID]; ok {
			return s.deviceEntity(i), true
		}
	}
	return topology.Entity{}, false
}

func (s *Store) nodeEntity(i int) topology.Entity {
	n := s.nodes[i]
	pos := DefaultNodePosition(i)
	if n.X != nil && n.Y != nil {
		pos = topology.Position{X: *n.X, Y: *n.Y}
	}
	return topology.Entity{
		Ref:      topology.EntityRef{Kind: topology.KindNode, ID: n.ID},
		Code:     n.Code,
		Name:     n.Name,
		Position: pos,
	}
}

func (s *Store) deviceEntity(i int) topology.Entity {
	d := s.devices[i]
	pos := DefaultDevicePosition(i)
	if d.X != nil && d.Y != nil {
		pos = topology.Position{X: *d.X, Y: *d.Y}
	}
	return topology.Entity{
		Ref:      topology.EntityRef{Kind: topology.KindDevice, ID: d.ID},
		Code:     d.Code,
		Name:     d.Name,
		Position: pos,
	}
}

// DefaultNodePosition places the i-th unplaced node on a diagonal
func DefaultNodePosition(i int) topology.Position {
	v := nodeSpacing * float64(i+1)
	return topology.Position{X: v, Y: v}
}

// DefaultDevicePosition places the i-th unplaced device on a diagonal
// below the nodes
func DefaultDevicePosition(i int) topology.Position {
	v := deviceSpacing * float64(i+1)
	return topology.Position{X: v, Y: v + deviceOffsetY}
}

// SetLocalPosition moves an entity in memory only
func (s *Store) SetLocalPosition(ref topology.EntityRef, pos topology.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ref.Kind {
	case topology.KindNode:
		if i, ok := s.nodeIdx[ref.ID]; ok {
			s.nodes[i].X, s.nodes[i].Y = topology.Float(pos.X), topology.Float(pos.Y)
			return nil
		}
	case topology.KindDevice:
		if i, ok := s.deviceIdx[ref.ID]; ok {
			s.devices[i].X, s.devices[i].Y = topology.Float(pos.X), topology.Float(pos.Y)
			return nil
		}
	}
	return topology.NotFound(string(ref.Kind), ref.ID)
}

// RoundPosition converts a display position to the integer wire form,
// rounding half away from zero
func RoundPosition(p topology.Position) topology.PositionUpdate {
	return topology.PositionUpdate{X: int64(math.Round(p.X)), Y: int64(math.Round(p.Y))}
}

// PersistPosition sends the current position of an entity. A failure is
// logged and returned; the local position is kept.
func (s *Store) PersistPosition(ctx context.Context, ref topology.EntityRef) error {
	pos, ok := s.Position(ref)
	if !ok {
		return topology.NotFound(string(ref.Kind), ref.ID)
	}
	wire := RoundPosition(pos)

	if err := s.api.MovePosition(ctx, ref, wire); err != nil {
		s.logger.Warn("Position not saved",
			logging.Entity(ref),
			logging.Int64("x", wire.X),
			logging.Int64("y", wire.Y),
			logging.Error(err),
		)
		return fmt.Errorf("persist position %s: %w", ref, err)
	}
	return nil
}

// SetLinkRoute records a route assignment locally ahead of the server
// round-trip. A nil routeID unassigns.
func (s *Store) SetLinkRoute(linkID int64, routeID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.linkIdx[linkID]
	if !ok {
		return topology.NotFound("link", linkID)
	}
	s.links[i].RouteID = copyID(routeID)
	return nil
}

// UpdateLink validates and sends a link edit, then applies the server's
// answer locally
func (s *Store) UpdateLink(ctx context.Context, linkID int64, upd topology.LinkUpdate) (topology.Link, error) {
	if _, ok := s.Link(linkID); !ok {
		return topology.Link{}, topology.NotFound("link", linkID)
	}
	if err := validation.ValidateLinkUpdate(&upd); err != nil {
		return topology.Link{}, err
	}

	updated, err := s.api.UpdateLink(ctx, linkID, upd)
	if err != nil {
		return topology.Link{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.linkIdx[linkID]; ok {
		merged := mergeLink(s.links[i], updated, upd)
		s.links[i] = merged
		return merged.Clone(), nil
	}
	return updated, nil
}

// mergeLink keeps local fields the server answer omitted
func mergeLink(cur, answer topology.Link, upd topology.LinkUpdate) topology.Link {
	out := cur.Clone()
	if answer.LinkType != "" {
		out.LinkType = answer.LinkType
	} else if upd.LinkType != "" {
		out.LinkType = upd.LinkType
	}
	out.Length = firstFloat(answer.Length, upd.Length, out.Length)
	out.FiberCores = firstInt(answer.FiberCores, upd.FiberCores, out.FiberCores)
	out.FiberSpliceCount = firstInt(answer.FiberSpliceCount, upd.FiberSpliceCount, out.FiberSpliceCount)
	out.FiberConnectorCount = firstInt(answer.FiberConnectorCount, upd.FiberConnectorCount, out.FiberConnectorCount)
	return out
}

// DeleteLink removes a link on the server and from the cache
func (s *Store) DeleteLink(ctx context.Context, linkID int64) error {
	if err := s.api.DeleteLink(ctx, linkID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.linkIdx[linkID]; ok {
		s.links = append(s.links[:i], s.links[i+1:]...)
		s.reindexLinks()
	}
	return nil
}

// CreateLink validates both endpoints against the cache and creates the link
func (s *Store) CreateLink(ctx context.Context, req topology.LinkCreate) (topology.Link, error) {
	if err := validation.ValidateLinkCreate(&req); err != nil {
		return topology.Link{}, err
	}
	from, to := req.Endpoints()
	for _, ep := range []topology.Endpoint{from, to} {
		if _, ok := s.ResolveEndpoint(ep); !ok {
			ref, _ := ep.Ref()
			return topology.Link{}, topology.NotFound(string(ref.Kind), ref.ID)
		}
	}

	link, err := s.api.CreateLink(ctx, req)
	if err != nil {
		return topology.Link{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.linkIdx[link.ID]; !exists {
		s.links = append(s.links, link.Clone())
		s.linkIdx[link.ID] = len(s.links) - 1
	}
	return link, nil
}

func copyID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	return topology.ID(*p)
}

func firstFloat(ps ...*float64) *float64 {
	for _, p := range ps {
		if p != nil {
			return topology.Float(*p)
		}
	}
	return nil
}

func firstInt(ps ...*int) *int {
	for _, p := range ps {
		if p != nil {
			return topology.Int(*p)
		}
	}
	return nil
}
