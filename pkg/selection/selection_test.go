package selection

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDispatch_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		caps    Caps
		from    State
		action  Action
		want    State
		effects int
	}{
		{"idle click route", RoutesEditor, None, Action{Kind: ClickRoute, ID: 1}, Route(1), 0},
		{"idle click link", RoutesEditor, None, Action{Kind: ClickLink, ID: 5}, Link(5), 0},
		{"route click other route", RoutesEditor, Route(1), Action{Kind: ClickRoute, ID: 2}, Route(2), 0},
		{"route click background", RoutesEditor, Route(1), Action{Kind: ClickBackground}, None, 0},
		{"route click link assigns", RoutesEditor, Route(1), Action{Kind: ClickLink, ID: 5}, Route(1), 1},
		{"link click background", RoutesEditor, Link(5), Action{Kind: ClickBackground}, None, 0},
		{"link click route", RoutesEditor, Link(5), Action{Kind: ClickRoute, ID: 3}, Route(3), 0},
		{"link click another link", RoutesEditor, Link(5), Action{Kind: ClickLink, ID: 6}, Link(6), 0},
		{"routes editor ignores node", RoutesEditor, Route(1), Action{Kind: ClickNode, ID: 9}, Route(1), 0},
		{"routes editor ignores device", RoutesEditor, Link(5), Action{Kind: ClickDevice, ID: 9}, Link(5), 0},
		{"topology route click link selects", TopologyEditor, Route(1), Action{Kind: ClickLink, ID: 5}, Link(5), 0},
		{"topology click node", TopologyEditor, Link(5), Action{Kind: ClickNode, ID: 9}, Node(9), 0},
		{"topology click device", TopologyEditor, None, Action{Kind: ClickDevice, ID: 4}, Device(4), 0},
		{"node click link", TopologyEditor, Node(9), Action{Kind: ClickLink, ID: 5}, Link(5), 0},
		{"device click background", TopologyEditor, Device(4), Action{Kind: ClickBackground}, None, 0},
		{"reload resets route", RoutesEditor, Route(1), Action{Kind: Reloaded}, None, 0},
		{"reload resets link", TopologyEditor, Link(5), Action{Kind: Reloaded}, None, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, effects := Dispatch(tt.caps, tt.from, tt.action)
			if got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
			if len(effects) != tt.effects {
				t.Errorf("effects = %v, want %d", effects, tt.effects)
			}
		})
	}
}

func TestDispatch_AssignEffect(t *testing.T) {
	_, effects := Dispatch(RoutesEditor, Route(7), Action{Kind: ClickLink, ID: 42})
	want := Effect{Kind: AssignLink, RouteID: 7, LinkID: 42}
	if len(effects) != 1 || effects[0] != want {
		t.Errorf("effects = %+v, want [%+v]", effects, want)
	}
}

func TestDispatch_KeepSelectionOnReload(t *testing.T) {
	caps := RoutesEditor
	caps.KeepSelectionOnReload = true

	alive := func(s State) bool { return s.ID == 1 }

	if got, _ := Dispatch(caps, Route(1), Action{Kind: Reloaded, Exists: alive}); got != Route(1) {
		t.Errorf("surviving route = %v, want route(1)", got)
	}
	if got, _ := Dispatch(caps, Route(2), Action{Kind: Reloaded, Exists: alive}); got != None {
		t.Errorf("deleted route = %v, want idle", got)
	}
	if got, _ := Dispatch(caps, Route(1), Action{Kind: Reloaded}); got != None {
		t.Errorf("no existence check = %v, want idle", got)
	}
}

func TestDispatch_KeepRouteAfterAssignment(t *testing.T) {
	alive := func(s State) bool { return s.ID == 1 }

	tests := []struct {
		name   string
		from   State
		action Action
		want   State
	}{
		{"surviving route kept", Route(1), Action{Kind: Reloaded, Exists: alive, KeepRoute: true}, Route(1)},
		{"deleted route dropped", Route(2), Action{Kind: Reloaded, Exists: alive, KeepRoute: true}, None},
		{"link still reset", Link(1), Action{Kind: Reloaded, Exists: alive, KeepRoute: true}, None},
		{"plain reload resets route", Route(1), Action{Kind: Reloaded, Exists: alive}, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Dispatch(RoutesEditor, tt.from, tt.action); got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if None.String() != "idle" {
		t.Errorf("None = %q", None.String())
	}
	if Route(3).String() != "route(3)" {
		t.Errorf("Route(3) = %q", Route(3).String())
	}
}

// TestRapidAssignment covers repeated link clicks while a route is selected
func TestRapidAssignment(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("every link click yields one assign and keeps the route", prop.ForAll(
		func(route int64, links []int64) bool {
			s := Route(route)
			var all []Effect
			for _, l := range links {
				var effects []Effect
				s, effects = Dispatch(RoutesEditor, s, Action{Kind: ClickLink, ID: l})
				if s != Route(route) {
					return false
				}
				all = append(all, effects...)
			}
			if len(all) != len(links) {
				return false
			}
			for i, e := range all {
				if e.Kind != AssignLink || e.RouteID != route || e.LinkID != links[i] {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 1000),
		gen.SliceOf(gen.Int64Range(1, 1000)),
	))

	properties.Property("background always returns to idle", prop.ForAll(
		func(kind int, id int64, assign, entities bool) bool {
			caps := Caps{AssignOnLinkClick: assign, SelectEntities: entities}
			s, _ := Dispatch(caps, State{Kind: Kind(kind), ID: id}, Action{Kind: ClickBackground})
			return s == None
		},
		gen.IntRange(0, 4),
		gen.Int64Range(1, 1000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("only a link click in route state produces effects", prop.ForAll(
		func(kind, action int, id int64) bool {
			from := State{Kind: Kind(kind), ID: 1}
			_, effects := Dispatch(RoutesEditor, from, Action{Kind: ActionKind(action), ID: id})
			expect := from.Kind == RouteSelected && ActionKind(action) == ClickLink
			return (len(effects) == 1) == expect
		},
		gen.IntRange(0, 4),
		gen.IntRange(0, 5),
		gen.Int64Range(1, 1000),
	))

	properties.TestingRun(t)
}
