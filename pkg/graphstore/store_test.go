package graphstore

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/topology"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type moveCall struct {
	ref topology.EntityRef
	pos topology.PositionUpdate
}

type fakeAPI struct {
	mu        sync.Mutex
	topo      topology.Topology
	loadErr   error
	moveErr   error
	writeErr  error
	moves     []moveCall
	updated   topology.Link
	created   topology.Link
	deleted   []int64
	writeSeen int
}

func (f *fakeAPI) LoadTopology(ctx context.Context) (topology.Topology, error) {
	if f.loadErr != nil {
		return topology.Topology{}, f.loadErr
	}
	return f.topo.Clone(), nil
}

func (f *fakeAPI) CreateLink(ctx context.Context, req topology.LinkCreate) (topology.Link, error) {
	f.writeSeen++
	if f.writeErr != nil {
		return topology.Link{}, f.writeErr
	}
	return f.created, nil
}

func (f *fakeAPI) UpdateLink(ctx context.Context, id int64, req topology.LinkUpdate) (topology.Link, error) {
	f.writeSeen++
	if f.writeErr != nil {
		return topology.Link{}, f.writeErr
	}
	return f.updated, nil
}

func (f *fakeAPI) DeleteLink(ctx context.Context, id int64) error {
	f.writeSeen++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) MovePosition(ctx context.Context, ref topology.EntityRef, pos topology.PositionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, moveCall{ref, pos})
	return f.moveErr
}

func sampleTopology() topology.Topology {
	return topology.Topology{
		Nodes: []topology.Node{
			{ID: 1, Code: "N1", Name: "Panel A"},
			{ID: 2, Code: "N2", Name: "Panel B", X: topology.Float(300), Y: topology.Float(80)},
		},
		Devices: []topology.Device{
			{ID: 10, Code: "D1", Name: "Camera"},
			{ID: 11, Code: "D2", Name: "Switch"},
		},
		Links: []topology.Link{
			{ID: 100, FromNodeID: topology.ID(1), ToNodeID: topology.ID(2), LinkType: topology.LinkUTP},
			{ID: 101, FromNodeID: topology.ID(1), ToDeviceID: topology.ID(11), LinkType: topology.LinkFiber, FiberCores: topology.Int(12)},
			{ID: 102, FromNodeID: topology.ID(1), ToDeviceID: topology.ID(99), LinkType: topology.LinkPower},
		},
	}
}

func loadedStore(t *testing.T) (*Store, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{topo: sampleTopology()}
	s := New(api, logging.NewNopLogger())
	if _, err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s, api
}

func TestLoad_Error(t *testing.T) {
	api := &fakeAPI{loadErr: errors.New("502")}
	s := New(api, logging.NewNopLogger())

	_, err := s.Load(context.Background())

	var loadErr *topology.LoadError
	if !errors.As(err, &loadErr) || loadErr.Aggregate != "topology" {
		t.Fatalf("error = %v, want topology LoadError", err)
	}
	if s.Loaded() {
		t.Error("Loaded() = true after failed load")
	}
}

func TestPosition_Defaults(t *testing.T) {
	s, _ := loadedStore(t)

	tests := []struct {
		ref  topology.EntityRef
		want topology.Position
	}{
		{topology.EntityRef{Kind: topology.KindNode, ID: 1}, topology.Position{X: 40, Y: 40}},
		{topology.EntityRef{Kind: topology.KindNode, ID: 2}, topology.Position{X: 300, Y: 80}},
		{topology.EntityRef{Kind: topology.KindDevice, ID: 10}, topology.Position{X: 60, Y: 180}},
		{topology.EntityRef{Kind: topology.KindDevice, ID: 11}, topology.Position{X: 120, Y: 240}},
	}

	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			got, ok := s.Position(tt.ref)
			if !ok {
				t.Fatal("Position() not found")
			}
			if got != tt.want {
				t.Errorf("Position() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, ok := s.Position(topology.EntityRef{Kind: topology.KindNode, ID: 77}); ok {
		t.Error("Position() of unknown node should fail")
	}
}

func TestResolveEndpoint(t *testing.T) {
	s, _ := loadedStore(t)

	tests := []struct {
		name string
		ep   topology.Endpoint
		ok   bool
		want string
	}{
		{"node", topology.NodeEndpoint(1), true, "[Node] Panel A"},
		{"device", topology.DeviceEndpoint(11), true, "[Device] Switch"},
		{"unknown device", topology.DeviceEndpoint(99), false, ""},
		{"neither", topology.Endpoint{}, false, ""},
		{"both", topology.Endpoint{NodeID: topology.ID(1), DeviceID: topology.ID(10)}, false, ""},
		{"node id used as device", topology.DeviceEndpoint(1), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := s.ResolveEndpoint(tt.ep)
			if ok != tt.ok {
				t.Fatalf("ResolveEndpoint() ok = %v, want %v", ok, tt.ok)
			}
			if ok && e.Label() != tt.want {
				t.Errorf("Label() = %q, want %q", e.Label(), tt.want)
			}
		})
	}
}

func TestApplyAssignments(t *testing.T) {
	s, _ := loadedStore(t)

	s.ApplyAssignments([]topology.RouteLink{
		{ID: 100, RouteID: topology.ID(5)},
		{ID: 101},
		{ID: 200, FromDeviceID: topology.ID(10), ToDeviceID: topology.ID(11), RouteID: topology.ID(6), LinkType: topology.LinkWiFi},
	})

	l, _ := s.Link(100)
	if l.RouteID == nil || *l.RouteID != 5 {
		t.Errorf("link 100 RouteID = %v, want 5", l.RouteID)
	}
	if l.LinkType != topology.LinkUTP {
		t.Errorf("link 100 type overwritten: %s", l.LinkType)
	}
	l, _ = s.Link(101)
	if l.RouteID != nil {
		t.Errorf("link 101 RouteID = %v, want nil", *l.RouteID)
	}
	if *l.FiberCores != 12 {
		t.Error("fiber fields lost during overlay")
	}
	added, ok := s.Link(200)
	if !ok || *added.RouteID != 6 {
		t.Errorf("routes-only link not added: %+v", added)
	}
	if got := len(s.Links()); got != 4 {
		t.Errorf("len(Links()) = %d, want 4", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s, _ := loadedStore(t)

	snap := s.Snapshot()
	*snap.Links[1].FiberCores = 1
	snap.Nodes[0].Name = "changed"

	l, _ := s.Link(101)
	if *l.FiberCores != 12 {
		t.Error("Snapshot() shares link memory with the store")
	}
	e, _ := s.Entity(topology.EntityRef{Kind: topology.KindNode, ID: 1})
	if e.Name != "Panel A" {
		t.Error("Snapshot() shares node memory with the store")
	}
}

func TestSetLocalPosition(t *testing.T) {
	s, api := loadedStore(t)
	ref := topology.EntityRef{Kind: topology.KindDevice, ID: 10}

	if err := s.SetLocalPosition(ref, topology.Position{X: 12.5, Y: -3.5}); err != nil {
		t.Fatalf("SetLocalPosition() error = %v", err)
	}

	pos, _ := s.Position(ref)
	if pos != (topology.Position{X: 12.5, Y: -3.5}) {
		t.Errorf("Position() = %+v after local move", pos)
	}
	if len(api.moves) != 0 {
		t.Error("SetLocalPosition() must not call the server")
	}

	err := s.SetLocalPosition(topology.EntityRef{Kind: topology.KindNode, ID: 404}, topology.Position{})
	if !topology.IsNotFound(err) {
		t.Errorf("unknown entity error = %v, want not found", err)
	}
}

func TestPersistPosition(t *testing.T) {
	s, api := loadedStore(t)
	ref := topology.EntityRef{Kind: topology.KindNode, ID: 1}

	s.SetLocalPosition(ref, topology.Position{X: 12.5, Y: -3.5})
	if err := s.PersistPosition(context.Background(), ref); err != nil {
		t.Fatalf("PersistPosition() error = %v", err)
	}

	if len(api.moves) != 1 {
		t.Fatalf("moves = %d, want 1", len(api.moves))
	}
	if got := api.moves[0].pos; got != (topology.PositionUpdate{X: 13, Y: -4}) {
		t.Errorf("sent %+v, want {13 -4}", got)
	}
}

func TestPersistPosition_FailureKeepsLocal(t *testing.T) {
	s, api := loadedStore(t)
	api.moveErr = errors.New("offline")
	ref := topology.EntityRef{Kind: topology.KindNode, ID: 1}

	s.SetLocalPosition(ref, topology.Position{X: 500, Y: 600})
	if err := s.PersistPosition(context.Background(), ref); !errors.Is(err, api.moveErr) {
		t.Fatalf("PersistPosition() error = %v, want wrapped offline", err)
	}

	pos, _ := s.Position(ref)
	if pos != (topology.Position{X: 500, Y: 600}) {
		t.Errorf("position rolled back to %+v", pos)
	}
}

func TestSetLinkRoute(t *testing.T) {
	s, _ := loadedStore(t)

	if err := s.SetLinkRoute(100, topology.ID(3)); err != nil {
		t.Fatal(err)
	}
	l, _ := s.Link(100)
	if !l.Assigned() || *l.RouteID != 3 {
		t.Errorf("RouteID = %v, want 3", l.RouteID)
	}

	s.SetLinkRoute(100, nil)
	if l, _ := s.Link(100); l.Assigned() {
		t.Error("link still assigned after nil route")
	}

	if err := s.SetLinkRoute(999, nil); !topology.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestUpdateLink(t *testing.T) {
	s, api := loadedStore(t)
	api.updated = topology.Link{ID: 101, LinkType: topology.LinkUTP, Length: topology.Float(25)}

	got, err := s.UpdateLink(context.Background(), 101, topology.LinkUpdate{
		LinkType: topology.LinkUTP,
		Length:   topology.Float(25),
	})
	if err != nil {
		t.Fatalf("UpdateLink() error = %v", err)
	}

	if got.LinkType != topology.LinkUTP || *got.Length != 25 {
		t.Errorf("UpdateLink() = %+v", got)
	}
	// Fiber counters survive a type change away from FIBER
	if got.FiberCores == nil || *got.FiberCores != 12 {
		t.Errorf("FiberCores = %v, want 12 preserved", got.FiberCores)
	}
	if got.FromNodeID == nil || *got.FromNodeID != 1 {
		t.Error("endpoints lost on update")
	}
}

func TestUpdateLink_ValidationSkipsNetwork(t *testing.T) {
	s, api := loadedStore(t)

	_, err := s.UpdateLink(context.Background(), 100, topology.LinkUpdate{Length: topology.Float(-5)})
	if !errors.Is(err, topology.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if api.writeSeen != 0 {
		t.Error("invalid update reached the server")
	}

	if _, err := s.UpdateLink(context.Background(), 404, topology.LinkUpdate{}); !topology.IsNotFound(err) {
		t.Errorf("unknown link error = %v", err)
	}
}

func TestDeleteLink(t *testing.T) {
	s, api := loadedStore(t)

	if err := s.DeleteLink(context.Background(), 100); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Link(100); ok {
		t.Error("link 100 still cached")
	}
	if l, ok := s.Link(102); !ok || l.ID != 102 {
		t.Error("index not rebuilt after delete")
	}
	if len(api.deleted) != 1 || api.deleted[0] != 100 {
		t.Errorf("deleted = %v", api.deleted)
	}

	api.writeErr = errors.New("403")
	if err := s.DeleteLink(context.Background(), 101); err == nil {
		t.Error("expected error")
	}
	if _, ok := s.Link(101); !ok {
		t.Error("failed delete removed the link locally")
	}
}

func TestCreateLink(t *testing.T) {
	s, api := loadedStore(t)
	api.created = topology.Link{ID: 300, FromDeviceID: topology.ID(10), ToNodeID: topology.ID(2), LinkType: topology.LinkWiFi}

	req := topology.NewLinkCreate(topology.DeviceEndpoint(10), topology.NodeEndpoint(2), topology.LinkWiFi)
	link, err := s.CreateLink(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateLink() error = %v", err)
	}
	if link.ID != 300 {
		t.Errorf("ID = %d", link.ID)
	}
	if _, ok := s.Link(300); !ok {
		t.Error("created link not cached")
	}

	bad := topology.NewLinkCreate(topology.DeviceEndpoint(10), topology.NodeEndpoint(404), topology.LinkWiFi)
	if _, err := s.CreateLink(context.Background(), bad); !topology.IsNotFound(err) {
		t.Errorf("unknown endpoint error = %v", err)
	}
	if api.writeSeen != 1 {
		t.Errorf("writeSeen = %d, want 1", api.writeSeen)
	}
}

// TestPositionProperties verifies rounding and placement for arbitrary input
func TestPositionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("rounding is half away from zero and within 0.5", prop.ForAll(
		func(x, y float64) bool {
			p := RoundPosition(topology.Position{X: x, Y: y})
			within := math.Abs(float64(p.X)-x) <= 0.5 && math.Abs(float64(p.Y)-y) <= 0.5
			// symmetric around zero
			n := RoundPosition(topology.Position{X: -x, Y: -y})
			return within && n.X == -p.X && n.Y == -p.Y
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.Property("exact halves round away from zero", prop.ForAll(
		func(k int64) bool {
			p := RoundPosition(topology.Position{X: float64(k) + 0.5, Y: float64(-k) - 0.5})
			return p.X == k+1 && p.Y == -k-1
		},
		gen.Int64Range(0, 1e6),
	))

	properties.Property("persisted position is the rounded local position", prop.ForAll(
		func(x, y float64) bool {
			api := &fakeAPI{topo: sampleTopology()}
			s := New(api, logging.NewNopLogger())
			s.Load(context.Background())
			ref := topology.EntityRef{Kind: topology.KindDevice, ID: 11}

			s.SetLocalPosition(ref, topology.Position{X: x, Y: y})
			if err := s.PersistPosition(context.Background(), ref); err != nil {
				return false
			}
			return len(api.moves) == 1 && api.moves[0].pos == RoundPosition(topology.Position{X: x, Y: y})
		},
		gen.Float64Range(-5000, 5000),
		gen.Float64Range(-5000, 5000),
	))

	properties.Property("default placement is strictly increasing", prop.ForAll(
		func(i int) bool {
			a, b := DefaultNodePosition(i), DefaultNodePosition(i+1)
			c, d := DefaultDevicePosition(i), DefaultDevicePosition(i+1)
			return b.X > a.X && b.Y > a.Y && d.X > c.X && c.Y == c.X+deviceOffsetY
		},
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}
