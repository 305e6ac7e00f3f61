package devserver

import (
	"sync"

	"github.com/dd0wney/cluso-topology/pkg/topology"
	"github.com/dd0wney/cluso-topology/pkg/validation"
)

// Dataset is the in-memory state of one calculation. It applies the same
// rules the production API does: route length is derived from assigned
// links and a link belongs to at most one route.
type Dataset struct {
	mu          sync.RWMutex
	calculation int64
	nodes       []topology.Node
	devices     []topology.Device
	links       []topology.Link
	routes      []topology.Route
	materials   []topology.Material
	nextID      int64
}

// NewDataset seeds a dataset from fixtures
func NewDataset(f *Fixtures) *Dataset {
	d := &Dataset{}
	d.Replace(f)
	return d
}

// Replace discards all state and reseeds from fixtures
func (d *Dataset) Replace(f *Fixtures) {
	t := f.topology()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.calculation = f.CalculationID
	d.nodes, d.devices, d.links = t.Nodes, t.Devices, t.Links
	d.routes = f.routes()
	d.materials = f.materials()

	d.nextID = 0
	bump := func(id int64) {
		if id > d.nextID {
			d.nextID = id
		}
	}
	for _, n := range d.nodes {
		bump(n.ID)
	}
	for _, v := range d.devices {
		bump(v.ID)
	}
	for _, l := range d.links {
		bump(l.ID)
	}
	for _, r := range d.routes {
		bump(r.ID)
	}
}

// Calculation returns the calculation id served
func (d *Dataset) Calculation() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.calculation
}

// Counts returns entity counts for health reporting
func (d *Dataset) Counts() (nodes, devices, links, routes int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes), len(d.devices), len(d.links), len(d.routes)
}

func (d *Dataset) newID() int64 {
	d.nextID++
	return d.nextID
}

// Topology returns the node/device/link aggregate
func (d *Dataset) Topology() topology.Topology {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return topology.Topology{Nodes: d.nodes, Devices: d.devices, Links: d.links}.Clone()
}

// Routes returns the route aggregate with derived lengths and material
// names filled in
func (d *Dataset) Routes() topology.Routes {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := topology.Routes{
		Routes:    make([]topology.Route, 0, len(d.routes)),
		Links:     make([]topology.RouteLink, 0, len(d.links)),
		Materials: append([]topology.Material(nil), d.materials...),
	}
	for _, r := range d.routes {
		out.Routes = append(out.Routes, d.present(r))
	}
	for _, l := range d.links {
		l = l.Clone()
		out.Links = append(out.Links, topology.RouteLink{
			ID:           l.ID,
			FromNodeID:   l.FromNodeID,
			ToNodeID:     l.ToNodeID,
			FromDeviceID: l.FromDeviceID,
			ToDeviceID:   l.ToDeviceID,
			RouteID:      l.RouteID,
			Length:       l.Length,
			LinkType:     l.LinkType,
		})
	}
	return out
}

// present fills the derived fields of a route. Caller holds d.mu.
func (d *Dataset) present(r topology.Route) topology.Route {
	r.Length = 0
	for _, l := range d.links {
		if l.RouteID != nil && *l.RouteID == r.ID && l.Length != nil && *l.Length > r.Length {
			r.Length = *l.Length
		}
	}
	r.MainMaterialName, r.MainMaterialCategory = "", ""
	if r.MainMaterialID != nil {
		id := *r.MainMaterialID
		r.MainMaterialID = &id
		if m, ok := d.material(id); ok {
			r.MainMaterialName, r.MainMaterialCategory = m.Name, m.Category
		}
	}
	return r
}

func (d *Dataset) material(id int64) (topology.Material, bool) {
	for _, m := range d.materials {
		if m.ID == id {
			return m, true
		}
	}
	return topology.Material{}, false
}

func (d *Dataset) routeIndex(id int64) (int, error) {
	for i, r := range d.routes {
		if r.ID == id {
			return i, nil
		}
	}
	return -1, topology.NotFound("route", id)
}

func (d *Dataset) linkIndex(id int64) (int, error) {
	for i, l := range d.links {
		if l.ID == id {
			return i, nil
		}
	}
	return -1, topology.NotFound("link", id)
}

func (d *Dataset) hasEntity(ref topology.EntityRef) bool {
	switch ref.Kind {
	case topology.KindNode:
		for _, n := range d.nodes {
			if n.ID == ref.ID {
				return true
			}
		}
	case topology.KindDevice:
		for _, v := range d.devices {
			if v.ID == ref.ID {
				return true
			}
		}
	}
	return false
}

// CreateRoute adds an empty route
func (d *Dataset) CreateRoute(req topology.RouteCreate) (topology.Route, error) {
	if err := validation.ValidateRouteCreate(&req); err != nil {
		return topology.Route{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	r := topology.Route{
		ID:          d.newID(),
		Name:        req.Name,
		RouteType:   req.RouteType,
		SurfaceType: req.SurfaceType,
	}
	d.routes = append(d.routes, r)
	return d.present(r), nil
}

// UpdateRoute replaces the editable fields. The submitted length is ignored;
// it is always derived. Material 0 clears the material.
func (d *Dataset) UpdateRoute(id int64, req topology.RouteUpdate) (topology.Route, error) {
	if err := validation.ValidateRouteUpdate(&req); err != nil {
		return topology.Route{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	i, err := d.routeIndex(id)
	if err != nil {
		return topology.Route{}, err
	}

	var material *int64
	if req.MainMaterialID != 0 {
		if _, ok := d.material(req.MainMaterialID); !ok {
			return topology.Route{}, topology.NotFound("material", req.MainMaterialID)
		}
		material = topology.ID(req.MainMaterialID)
	}

	r := &d.routes[i]
	r.Name = req.Name
	r.RouteType = req.RouteType
	r.SurfaceType = req.SurfaceType
	r.MainMaterialID = material
	return d.present(*r), nil
}

// DeleteRoute removes a route and unassigns its links
func (d *Dataset) DeleteRoute(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, err := d.routeIndex(id)
	if err != nil {
		return err
	}
	d.routes = append(d.routes[:i], d.routes[i+1:]...)
	for j := range d.links {
		if d.links[j].RouteID != nil && *d.links[j].RouteID == id {
			d.links[j].RouteID = nil
		}
	}
	return nil
}

// AssignLink puts a link on a route, moving it off any other
func (d *Dataset) AssignLink(routeID, linkID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.routeIndex(routeID); err != nil {
		return err
	}
	j, err := d.linkIndex(linkID)
	if err != nil {
		return err
	}
	d.links[j].RouteID = topology.ID(routeID)
	return nil
}

// UnassignLink clears a link's route if it is on routeID. A link on another
// route, or on none, is left untouched.
func (d *Dataset) UnassignLink(routeID, linkID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.routeIndex(routeID); err != nil {
		return err
	}
	j, err := d.linkIndex(linkID)
	if err != nil {
		return err
	}
	if cur := d.links[j].RouteID; cur != nil && *cur == routeID {
		d.links[j].RouteID = nil
	}
	return nil
}

// CreateLink connects two existing entities
func (d *Dataset) CreateLink(req topology.LinkCreate) (topology.Link, error) {
	if err := validation.ValidateLinkCreate(&req); err != nil {
		return topology.Link{}, err
	}
	from, to := req.Endpoints()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ep := range []topology.Endpoint{from, to} {
		ref, _ := ep.Ref()
		if !d.hasEntity(ref) {
			return topology.Link{}, topology.NotFound(string(ref.Kind), ref.ID)
		}
	}

	l := topology.Link{
		ID:           d.newID(),
		FromNodeID:   from.NodeID,
		FromDeviceID: from.DeviceID,
		ToNodeID:     to.NodeID,
		ToDeviceID:   to.DeviceID,
		LinkType:     req.LinkType,
	}.Clone()
	d.links = append(d.links, l)
	return l.Clone(), nil
}

// UpdateLink merges the non-nil fields of upd. Fiber counters are stored
// whatever the link type.
func (d *Dataset) UpdateLink(id int64, upd topology.LinkUpdate) (topology.Link, error) {
	if err := validation.ValidateLinkUpdate(&upd); err != nil {
		return topology.Link{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	j, err := d.linkIndex(id)
	if err != nil {
		return topology.Link{}, err
	}

	l := &d.links[j]
	if upd.LinkType != "" {
		l.LinkType = upd.LinkType
	}
	if upd.Length != nil {
		l.Length = topology.Float(*upd.Length)
	}
	if upd.FiberCores != nil {
		l.FiberCores = topology.Int(*upd.FiberCores)
	}
	if upd.FiberSpliceCount != nil {
		l.FiberSpliceCount = topology.Int(*upd.FiberSpliceCount)
	}
	if upd.FiberConnectorCount != nil {
		l.FiberConnectorCount = topology.Int(*upd.FiberConnectorCount)
	}
	return l.Clone(), nil
}

// DeleteLink removes a link
func (d *Dataset) DeleteLink(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, err := d.linkIndex(id)
	if err != nil {
		return err
	}
	d.links = append(d.links[:j], d.links[j+1:]...)
	return nil
}

// Move stores an entity position
func (d *Dataset) Move(ref topology.EntityRef, pos topology.PositionUpdate) error {
	if err := validation.ValidateEntityRef(ref); err != nil {
		return err
	}
	x, y := float64(pos.X), float64(pos.Y)

	d.mu.Lock()
	defer d.mu.Unlock()
	switch ref.Kind {
	case topology.KindNode:
		for i := range d.nodes {
			if d.nodes[i].ID == ref.ID {
				d.nodes[i].X, d.nodes[i].Y = topology.Float(x), topology.Float(y)
				return nil
			}
		}
	case topology.KindDevice:
		for i := range d.devices {
			if d.devices[i].ID == ref.ID {
				d.devices[i].X, d.devices[i].Y = topology.Float(x), topology.Float(y)
				return nil
			}
		}
	}
	return topology.NotFound(string(ref.Kind), ref.ID)
}
