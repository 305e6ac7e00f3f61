package editor_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-topology/pkg/devserver"
	"github.com/dd0wney/cluso-topology/pkg/editor"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/metrics"
	"github.com/dd0wney/cluso-topology/pkg/pubsub"
	"github.com/dd0wney/cluso-topology/pkg/render"
	"github.com/dd0wney/cluso-topology/pkg/selection"
	"github.com/dd0wney/cluso-topology/pkg/syncclient"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// recordingAPI counts calls and injects failures in front of a real client
type recordingAPI struct {
	editor.API

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	moves []topology.PositionUpdate
}

func (a *recordingAPI) record(op string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[op]++
	return a.fail[op]
}

func (a *recordingAPI) count(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[op]
}

func (a *recordingAPI) setFail(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[op] = err
}

func (a *recordingAPI) LoadTopology(ctx context.Context) (topology.Topology, error) {
	if err := a.record("load-topology"); err != nil {
		return topology.Topology{}, err
	}
	return a.API.LoadTopology(ctx)
}

func (a *recordingAPI) LoadRoutes(ctx context.Context) (topology.Routes, error) {
	if err := a.record("load-routes"); err != nil {
		return topology.Routes{}, err
	}
	return a.API.LoadRoutes(ctx)
}

func (a *recordingAPI) AssignLink(ctx context.Context, routeID, linkID int64) error {
	if err := a.record("assign"); err != nil {
		return err
	}
	return a.API.AssignLink(ctx, routeID, linkID)
}

func (a *recordingAPI) UnassignLink(ctx context.Context, routeID, linkID int64) error {
	if err := a.record("unassign"); err != nil {
		return err
	}
	return a.API.UnassignLink(ctx, routeID, linkID)
}

func (a *recordingAPI) MovePosition(ctx context.Context, ref topology.EntityRef, pos topology.PositionUpdate) error {
	a.mu.Lock()
	a.moves = append(a.moves, pos)
	a.mu.Unlock()
	if err := a.record("move"); err != nil {
		return err
	}
	return a.API.MovePosition(ctx, ref, pos)
}

type fixture struct {
	session *editor.Session
	api     *recordingAPI
	server  *devserver.Server
}

func newFixture(t *testing.T, caps selection.Caps, f *devserver.Fixtures) *fixture {
	t.Helper()
	srv, err := devserver.New(devserver.Options{Fixtures: f, Logger: logging.NewNopLogger(), Metrics: metrics.NewRegistry()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	calc := srv.Dataset().Calculation()
	api := &recordingAPI{
		API: syncclient.New(syncclient.Options{
			BaseURL:       ts.URL,
			CalculationID: calc,
			Logger:        logging.NewNopLogger(),
		}),
		calls: map[string]int{},
		fail:  map[string]error{},
	}
	s := editor.New(api, editor.Options{Caps: caps, Logger: logging.NewNopLogger(), Metrics: metrics.NewRegistry()})
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background()))
	return &fixture{session: s, api: api, server: srv}
}

func lineFor(scene render.Scene, linkID int64) (render.Line, bool) {
	for _, l := range scene.Lines {
		if l.Link.ID == linkID {
			return l, true
		}
	}
	return render.Line{}, false
}

func routeItem(scene render.Scene, routeID int64) (render.RouteItem, bool) {
	for _, r := range scene.Routes {
		if r.Route.ID == routeID {
			return r, true
		}
	}
	return render.RouteItem{}, false
}

func TestAssignThenUnassignLeavesLinkUnassigned(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	for _, linkID := range []int64{3, 4, 5} {
		require.NoError(t, fx.session.AssignLink(ctx, 2, linkID))
		line, ok := lineFor(fx.session.Scene(), linkID)
		require.True(t, ok)
		assert.NotEqual(t, render.UnassignedColor, line.Color)

		require.NoError(t, fx.session.UnassignLink(ctx, 2, linkID))
		link, ok := fx.session.Graph().Link(linkID)
		require.True(t, ok)
		assert.Nil(t, link.RouteID)

		line, ok = lineFor(fx.session.Scene(), linkID)
		require.True(t, ok)
		assert.Equal(t, render.UnassignedColor, line.Color)
	}
}

func TestRouteLinkCountsMatchAssignments(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	check := func() {
		scene := fx.session.Scene()
		want := map[int64]int{}
		for _, l := range fx.server.Dataset().Topology().Links {
			if l.RouteID != nil {
				want[*l.RouteID]++
			}
		}
		for _, item := range scene.Routes {
			assert.Equal(t, want[item.Route.ID], item.LinkCount, "route %d", item.Route.ID)
		}
	}

	check()
	require.NoError(t, fx.session.AssignLink(ctx, 2, 1))
	check()
	require.NoError(t, fx.session.DeleteRoute(ctx, 1))
	check()
}

func TestDragPersistsRoundedPositionOnce(t *testing.T) {
	fx := newFixture(t, selection.TopologyEditor, nil)
	ctx := context.Background()
	ref := topology.EntityRef{Kind: topology.KindNode, ID: 1}

	start, ok := fx.session.Graph().Position(ref)
	require.True(t, ok)
	require.Equal(t, topology.Position{X: 40, Y: 40}, start)

	require.True(t, fx.session.BeginDrag(ref, topology.Position{X: 500, Y: 500}))
	loads := fx.api.count("load-topology")
	for i := 1; i <= 20; i++ {
		fx.session.DragTo(topology.Position{X: 500 + float64(i), Y: 500 - float64(i)/2})
	}
	assert.Equal(t, 0, fx.api.count("move"), "no position may be sent mid-drag")
	assert.Equal(t, loads, fx.api.count("load-topology"))

	pos, _ := fx.session.Graph().Position(ref)
	assert.Equal(t, topology.Position{X: 60, Y: 30}, pos)

	fx.session.EndDrag(ctx, topology.Position{X: 510.6, Y: 496.6})

	require.Equal(t, 1, fx.api.count("move"))
	assert.Equal(t, topology.PositionUpdate{X: 51, Y: 37}, fx.api.moves[0])
	assert.Equal(t, loads+1, fx.api.count("load-topology"), "persist success reloads")

	node := fx.server.Dataset().Topology().Nodes[0]
	assert.Equal(t, 51.0, *node.X)
	assert.Equal(t, 37.0, *node.Y)

	_, dragging := fx.session.Dragging()
	assert.False(t, dragging)
}

func TestPositionPersistFailureKeepsLocalPosition(t *testing.T) {
	fx := newFixture(t, selection.TopologyEditor, nil)
	ctx := context.Background()
	ref := topology.EntityRef{Kind: topology.KindDevice, ID: 1}

	notes, err := fx.session.Subscribe(ctx, pubsub.TopicNotification)
	require.NoError(t, err)
	defer notes.Unsubscribe()

	fx.api.setFail("move", errors.New("connection reset"))
	loads := fx.api.count("load-topology")

	require.True(t, fx.session.BeginDrag(ref, topology.Position{}))
	fx.session.EndDrag(ctx, topology.Position{X: 7.25, Y: 3.5})

	pos, _ := fx.session.Graph().Position(ref)
	assert.Equal(t, topology.Position{X: 87.25, Y: 263.5}, pos)
	assert.Equal(t, loads, fx.api.count("load-topology"), "no reload after a failed persist")

	select {
	case ev := <-notes.Channel():
		t.Fatalf("persist failure must not notify, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRapidAssignKeepsRouteSelected(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	state, err := fx.session.Click(ctx, selection.Action{Kind: selection.ClickRoute, ID: 2})
	require.NoError(t, err)
	require.Equal(t, selection.Route(2), state)

	for _, linkID := range []int64{3, 4, 5} {
		next, effects := fx.session.Dispatch(selection.Action{Kind: selection.ClickLink, ID: linkID})
		assert.Equal(t, selection.Route(2), next)
		require.Len(t, effects, 1)
		assert.Equal(t, selection.Effect{Kind: selection.AssignLink, RouteID: 2, LinkID: linkID}, effects[0])
		require.NoError(t, fx.session.Apply(ctx, effects))
	}
	assert.Equal(t, 3, fx.api.count("assign"))

	for _, linkID := range []int64{3, 4, 5} {
		l, _ := fx.session.Graph().Link(linkID)
		require.NotNil(t, l.RouteID)
		assert.Equal(t, int64(2), *l.RouteID)
	}
}

func TestReloadResetsSelection(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	fx.session.Dispatch(selection.Action{Kind: selection.ClickRoute, ID: 1})
	require.NoError(t, fx.session.Reload(ctx, editor.TriggerManual))
	assert.Equal(t, selection.None, fx.session.Selection())
}

func TestKeepSelectionOnReload(t *testing.T) {
	caps := selection.RoutesEditor
	caps.KeepSelectionOnReload = true
	fx := newFixture(t, caps, nil)
	ctx := context.Background()

	fx.session.Dispatch(selection.Action{Kind: selection.ClickRoute, ID: 1})
	require.NoError(t, fx.session.Reload(ctx, editor.TriggerManual))
	assert.Equal(t, selection.Route(1), fx.session.Selection())

	require.NoError(t, fx.session.DeleteRoute(ctx, 1))
	assert.Equal(t, selection.None, fx.session.Selection(), "a deleted route cannot stay selected")
}

func TestUnresolvableLinkIsSkipped(t *testing.T) {
	f, err := devserver.ParseFixtures([]byte(`
calculation_id: 3
nodes:
  - {id: 1, code: A, name: A, x: 0, y: 0}
devices:
  - {id: 2, code: B, name: B, x: 100, y: 100}
links:
  - {id: 1, from_node: 1, to_device: 2, type: UTP}
  - {id: 2, from_node: 1, to_node: 99, type: UTP}
`))
	require.NoError(t, err)
	fx := newFixture(t, selection.TopologyEditor, f)

	scene := fx.session.Scene()
	require.Len(t, scene.Lines, 1)
	assert.Equal(t, []int64{2}, scene.Skipped)

	_, ok := fx.session.Graph().Link(2)
	assert.True(t, ok, "skipped link stays in the store")
}

func TestSingleLinkFiberScenario(t *testing.T) {
	f, err := devserver.ParseFixtures([]byte(`
calculation_id: 4
nodes:
  - {id: 1, code: A, name: A, x: 0, y: 0}
devices:
  - {id: 2, code: B, name: B, x: 100, y: 100}
links:
  - {id: 1, from_node: 1, to_device: 2, type: UTP}
`))
	require.NoError(t, err)
	fx := newFixture(t, selection.TopologyEditor, f)
	ctx := context.Background()

	scene := fx.session.Scene()
	require.Len(t, scene.Lines, 1)
	assert.Equal(t, topology.Position{X: 0, Y: 0}, scene.Lines[0].From.Position)
	assert.Equal(t, topology.Position{X: 100, Y: 100}, scene.Lines[0].To.Position)

	updated, err := fx.session.UpdateLink(ctx, 1, topology.LinkUpdate{LinkType: topology.LinkFiber})
	require.NoError(t, err)
	assert.Equal(t, topology.LinkFiber, updated.LinkType)

	fx.session.Dispatch(selection.Action{Kind: selection.ClickLink, ID: 1})
	scene = fx.session.Scene()
	require.Equal(t, render.InspectorLink, scene.Inspector.Kind)
	assert.True(t, scene.Inspector.Link.FiberFieldsEnabled)
}

func TestCreateRouteAppearsOnReload(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	route, err := fx.session.CreateRoute(ctx, "Trasса-1", topology.RouteCableChannel, topology.SurfaceWall)
	require.NoError(t, err)

	var matches []render.RouteItem
	for _, item := range fx.session.Scene().Routes {
		if item.Route.Name == "Trasса-1" {
			matches = append(matches, item)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, route.ID, matches[0].Route.ID)
	assert.Equal(t, 0, matches[0].LinkCount)
}

func TestUpdateRouteEchoesLength(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	route, err := fx.session.UpdateRoute(ctx, 2, topology.RouteEdit{
		Name:        "Ceiling tray",
		RouteType:   topology.RouteTrayOrStructure,
		SurfaceType: "FLOOR",
	})
	require.NoError(t, err)
	assert.Equal(t, topology.SurfaceType("FLOOR"), route.SurfaceType, "legacy surface round-trips")

	item, ok := routeItem(fx.session.Scene(), 2)
	require.True(t, ok)
	assert.Equal(t, "Ceiling tray", item.Route.Name)
}

func TestAssignFailureNotifiesAndReconciles(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	notes, err := fx.session.Subscribe(ctx, pubsub.TopicNotification)
	require.NoError(t, err)
	defer notes.Unsubscribe()

	fx.api.setFail("assign", &syncclient.HTTPError{Method: "POST", Path: "/routes/2/assign-link", Status: 409, Body: "conflict"})
	loads := fx.api.count("load-routes")

	err = fx.session.AssignLink(ctx, 2, 3)
	var merr *topology.MutationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, editor.OpAssignLink, merr.Op)
	assert.Equal(t, 409, syncclient.StatusOf(err))

	select {
	case ev := <-notes.Channel():
		assert.Equal(t, pubsub.EventNotification, ev.Kind)
		assert.Contains(t, ev.Message, "assign-link")
	case <-time.After(time.Second):
		t.Fatal("expected a notification")
	}

	assert.Equal(t, loads+1, fx.api.count("load-routes"), "failure triggers a reconciling reload")
	l, _ := fx.session.Graph().Link(3)
	assert.Nil(t, l.RouteID, "optimistic assignment is reverted by the reload")
}

func TestAssignToMissingRouteWritesNothing(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	fx.api.setFail("load-routes", errors.New("connection refused"))

	err := fx.session.AssignLink(ctx, 99, 3)
	var merr *topology.MutationError
	require.ErrorAs(t, err, &merr)
	assert.ErrorIs(t, err, topology.ErrNotFound)
	assert.Equal(t, 0, fx.api.count("assign"), "nothing sent for an unknown route")

	l, ok := fx.session.Graph().Link(3)
	require.True(t, ok)
	assert.Nil(t, l.RouteID, "no dangling route reference after a failed reconcile")
	_, assigned := fx.session.Routes().RouteOf(3)
	assert.False(t, assigned)
}

func TestApplyJoinsEffectErrors(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	fx.api.setFail("assign", &syncclient.HTTPError{Method: "POST", Status: 500, Body: "boom"})
	err := fx.session.Apply(ctx, []selection.Effect{
		{Kind: selection.AssignLink, RouteID: 2, LinkID: 3},
		{Kind: selection.AssignLink, RouteID: 2, LinkID: 5},
	})
	require.Error(t, err)
	assert.Equal(t, 2, fx.api.count("assign"), "second effect still runs")

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok, "errors are joined")
	assert.Len(t, joined.Unwrap(), 2)
	assert.Contains(t, err.Error(), "link 3")
	assert.Contains(t, err.Error(), "link 5")
}

func TestAssignmentReloadKeepsRouteOnly(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	fx.session.Dispatch(selection.Action{Kind: selection.ClickRoute, ID: 2})
	require.NoError(t, fx.session.AssignLink(ctx, 2, 3))
	assert.Equal(t, selection.Route(2), fx.session.Selection())

	require.NoError(t, fx.session.UnassignLink(ctx, 2, 3))
	assert.Equal(t, selection.Route(2), fx.session.Selection())

	require.NoError(t, fx.session.Reload(ctx, editor.TriggerChangeFeed))
	assert.Equal(t, selection.None, fx.session.Selection(), "other reloads still reset")
}

func TestValidationFailureSendsNothing(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	_, err := fx.session.CreateRoute(ctx, "   ", topology.RouteCableChannel, topology.SurfaceWall)
	require.ErrorIs(t, err, topology.ErrValidation)

	_, err = fx.session.UpdateLink(ctx, 1, topology.LinkUpdate{FiberCores: topology.Int(0)})
	require.ErrorIs(t, err, topology.ErrValidation)
}

func TestLoadFailureBlocksScene(t *testing.T) {
	fx := newFixture(t, selection.TopologyEditor, nil)
	ctx := context.Background()

	fx.api.setFail("load-routes", errors.New("503 Service Unavailable"))
	err := fx.session.Reload(ctx, editor.TriggerManual)
	var lerr *topology.LoadError
	require.ErrorAs(t, err, &lerr)

	scene := fx.session.Scene()
	assert.NotEmpty(t, scene.Blocking)
	assert.Empty(t, scene.Lines)
	assert.Empty(t, scene.Markers)

	fx.api.setFail("load-routes", nil)
	require.NoError(t, fx.session.Reload(ctx, editor.TriggerManual))
	assert.Empty(t, fx.session.Scene().Blocking)
	assert.NoError(t, fx.session.LoadErr())
}

func TestStateEventsArePublished(t *testing.T) {
	fx := newFixture(t, selection.TopologyEditor, nil)
	ctx := context.Background()

	sub, err := fx.session.Subscribe(ctx, pubsub.TopicState)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	fx.session.Dispatch(selection.Action{Kind: selection.ClickNode, ID: 2})
	require.NoError(t, fx.session.Reload(ctx, editor.TriggerChangeFeed))

	var kinds []pubsub.EventKind
	timeout := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-sub.Channel():
			kinds = append(kinds, ev.Kind)
		case <-timeout:
			t.Fatalf("got only %v", kinds)
		}
	}
	assert.Equal(t, []pubsub.EventKind{pubsub.EventSelection, pubsub.EventReloaded}, kinds)
}

func TestDeleteLinkRemovesLine(t *testing.T) {
	fx := newFixture(t, selection.TopologyEditor, nil)
	ctx := context.Background()

	fx.session.Dispatch(selection.Action{Kind: selection.ClickLink, ID: 4})
	require.NoError(t, fx.session.DeleteLink(ctx, 4))

	_, ok := lineFor(fx.session.Scene(), 4)
	assert.False(t, ok)
	assert.Equal(t, selection.None, fx.session.Selection())
}

func TestUnassignSelected(t *testing.T) {
	fx := newFixture(t, selection.RoutesEditor, nil)
	ctx := context.Background()

	require.NoError(t, fx.session.UnassignSelected(ctx, 2))
	l, _ := fx.session.Graph().Link(2)
	assert.Nil(t, l.RouteID)

	// Already unassigned: nothing is sent
	calls := fx.api.count("unassign")
	require.NoError(t, fx.session.UnassignSelected(ctx, 2))
	assert.Equal(t, calls, fx.api.count("unassign"))
}
