// Package tui is the terminal front-end of the editor. Every network call
// runs as a tea.Cmd so the event loop never blocks; session events arrive
// back as messages and trigger a re-render.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-topology/pkg/config"
	"github.com/dd0wney/cluso-topology/pkg/editor"
	"github.com/dd0wney/cluso-topology/pkg/logging"
	"github.com/dd0wney/cluso-topology/pkg/pubsub"
	"github.com/dd0wney/cluso-topology/pkg/render"
	"github.com/dd0wney/cluso-topology/pkg/selection"
	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Editor modes
const (
	ModeTopology = config.ModeTopology
	ModeRoutes   = config.ModeRoutes
)

const (
	headerHeight = 2
	footerHeight = 2
	sidebarWidth = 40
	panStep      = 4
	noticeTTL    = 5 * time.Second
)

// Options configures the front-end
type Options struct {
	Mode   string
	Scale  float64
	Logger logging.Logger
}

type press struct {
	x, y     int
	target   Target
	routeID  int64
	dragging bool
}

// Model is the bubbletea model of one editor window
type Model struct {
	ctx     context.Context
	session *editor.Session
	mode    string
	keys    keyMap
	help    help.Model
	logger  logging.Logger

	width, height int
	view          Viewport
	scene         render.Scene
	loaded        bool
	form          *form
	press         *press
	notice        string
	noticeSeq     int
	pending       int

	stateSub *pubsub.Subscription
	noteSub  *pubsub.Subscription
}

type eventMsg pubsub.Event

type doneMsg struct {
	op  string
	err error
}

type clearNoticeMsg int

// New subscribes to the session and builds the model. ctx bounds every
// network call started from the UI.
func New(ctx context.Context, s *editor.Session, opts Options) (Model, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeTopology
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = config.DefaultScale
	}

	stateSub, err := s.Subscribe(ctx, pubsub.TopicState)
	if err != nil {
		return Model{}, fmt.Errorf("failed to subscribe to editor state: %w", err)
	}
	noteSub, err := s.Subscribe(ctx, pubsub.TopicNotification)
	if err != nil {
		stateSub.Unsubscribe()
		return Model{}, fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	return Model{
		ctx:      ctx,
		session:  s,
		mode:     mode,
		keys:     keys.forMode(mode),
		help:     help.New(),
		logger:   logging.OrDefault(opts.Logger).With(logging.Component("tui")),
		view:     Viewport{Scale: scale},
		stateSub: stateSub,
		noteSub:  noteSub,
	}, nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.run("load", m.session.Load),
		waitFor(m.stateSub),
		waitFor(m.noteSub),
	)
}

func waitFor(sub *pubsub.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Channel()
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// run wraps a blocking session call in a command
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) start(op string, fn func(context.Context) error) tea.Cmd {
	m.pending++
	return m.run(op, fn)
}

func (m *Model) refresh() {
	m.scene = m.session.Scene()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		ev := pubsub.Event(msg)
		m.refresh()
		if ev.Topic == pubsub.TopicNotification {
			m.notice = ev.Message
			m.noticeSeq++
			seq := m.noticeSeq
			return m, tea.Batch(waitFor(m.noteSub), tea.Tick(noticeTTL, func(time.Time) tea.Msg {
				return clearNoticeMsg(seq)
			}))
		}
		if ev.Kind == pubsub.EventReloaded || ev.Kind == pubsub.EventLoadFailed {
			m.loaded = true
		}
		return m, waitFor(m.stateSub)

	case clearNoticeMsg:
		if int(msg) == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case doneMsg:
		m.pending = max(m.pending-1, 0)
		if msg.op == "load" {
			m.loaded = true
		}
		if msg.err != nil {
			m.logger.Debug("Command failed", logging.Operation(msg.op), logging.Error(msg.err))
		}
		m.refresh()
		return m, nil

	case tea.MouseMsg:
		cmd := m.handleMouse(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.form != nil {
			cmd := m.updateForm(msg)
			return m, cmd
		}
		cmd := m.handleKey(msg)
		return m, cmd
	}

	if m.form != nil {
		return m, m.form.update(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Reload):
		s := m.session
		return m.start("reload", func(ctx context.Context) error {
			return s.Reload(ctx, editor.TriggerManual)
		})
	}

	if m.scene.Blocking != "" {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Clear):
		if _, dragging := m.session.Dragging(); dragging {
			m.session.CancelDrag()
			m.press = nil
			m.refresh()
			return nil
		}
		return m.dispatch(selection.Action{Kind: selection.ClickBackground})

	case key.Matches(msg, m.keys.NextRoute):
		return m.nextRoute()

	case key.Matches(msg, m.keys.NewRoute):
		m.form = newRouteForm()
		return textinput.Blink

	case key.Matches(msg, m.keys.Edit):
		return m.openEdit()

	case key.Matches(msg, m.keys.Unassign):
		sel := m.session.Selection()
		if sel.Kind != selection.LinkSelected {
			return nil
		}
		s, id := m.session, sel.ID
		return m.start(editor.OpUnassignLink, func(ctx context.Context) error {
			return s.UnassignSelected(ctx, id)
		})

	case key.Matches(msg, m.keys.Delete):
		sel := m.session.Selection()
		if sel.Kind != selection.LinkSelected {
			return nil
		}
		s, id := m.session, sel.ID
		return m.start(editor.OpDeleteLink, func(ctx context.Context) error {
			return s.DeleteLink(ctx, id)
		})

	case key.Matches(msg, m.keys.Up):
		m.view.Offset.Y -= panStep * m.view.Scale * 2
	case key.Matches(msg, m.keys.Down):
		m.view.Offset.Y += panStep * m.view.Scale * 2
	case key.Matches(msg, m.keys.Left):
		m.view.Offset.X -= panStep * m.view.Scale
	case key.Matches(msg, m.keys.Right):
		m.view.Offset.X += panStep * m.view.Scale
	}
	return nil
}

// dispatch runs a selection action and applies its effects in the
// background
func (m *Model) dispatch(a selection.Action) tea.Cmd {
	_, effects := m.session.Dispatch(a)
	m.refresh()
	if len(effects) == 0 {
		return nil
	}
	s := m.session
	return m.start(editor.OpAssignLink, func(ctx context.Context) error {
		return s.Apply(ctx, effects)
	})
}

// nextRoute selects the route after the current one, wrapping around
func (m *Model) nextRoute() tea.Cmd {
	routes := m.scene.Routes
	if len(routes) == 0 {
		return nil
	}
	sel := m.session.Selection()
	next := 0
	if sel.Kind == selection.RouteSelected {
		for i, r := range routes {
			if r.Route.ID == sel.ID {
				next = (i + 1) % len(routes)
				break
			}
		}
	}
	return m.dispatch(selection.Action{Kind: selection.ClickRoute, ID: routes[next].Route.ID})
}

func (m *Model) openEdit() tea.Cmd {
	sel := m.session.Selection()
	switch sel.Kind {
	case selection.RouteSelected:
		r, ok := m.session.Routes().Route(sel.ID)
		if !ok {
			return nil
		}
		m.form = editRouteForm(r)
	case selection.LinkSelected:
		l, ok := m.session.Graph().Link(sel.ID)
		if !ok {
			return nil
		}
		m.form = editLinkForm(l)
	default:
		return nil
	}
	return textinput.Blink
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "esc":
		m.form = nil
		return nil
	case "tab", "down":
		m.form.move(1)
		return nil
	case "shift+tab", "up":
		m.form.move(-1)
		return nil
	case "enter":
		return m.submit()
	}
	return m.form.update(msg)
}

// submit sends the form. Input errors keep the form open; server errors
// arrive as notifications.
func (m *Model) submit() tea.Cmd {
	f, s := m.form, m.session
	switch f.kind {
	case formNewRoute:
		name, routeType, surface := f.routeFields()
		m.form = nil
		return m.start(editor.OpCreateRoute, func(ctx context.Context) error {
			_, err := s.CreateRoute(ctx, name, routeType, surface)
			return err
		})

	case formEditRoute:
		edit, err := f.routeEdit()
		if err != nil {
			f.err = err.Error()
			return nil
		}
		id := f.id
		m.form = nil
		return m.start(editor.OpUpdateRoute, func(ctx context.Context) error {
			_, err := s.UpdateRoute(ctx, id, edit)
			return err
		})

	case formEditLink:
		upd, err := f.linkUpdate()
		if err != nil {
			f.err = err.Error()
			return nil
		}
		id := f.id
		m.form = nil
		return m.start(editor.OpUpdateLink, func(ctx context.Context) error {
			_, err := s.UpdateLink(ctx, id, upd)
			return err
		})
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.scene.Blocking != "" || m.form != nil {
		return nil
	}
	cx, cy := m.toCanvas(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		p := &press{x: msg.X, y: msg.Y}
		if id, ok := m.routeAt(msg.X, msg.Y); ok {
			p.routeID = id
		} else if m.inCanvas(msg.X, msg.Y) {
			p.target = m.canvas().HitAt(cx, cy)
			if p.target.Kind == TargetMarker {
				p.dragging = m.session.BeginDrag(p.target.Ref, m.view.ToWorld(cx, cy))
			}
		}
		m.press = p

	case tea.MouseActionMotion:
		if m.press != nil && m.press.dragging {
			m.session.DragTo(m.view.ToWorld(cx, cy))
			m.refresh()
		}

	case tea.MouseActionRelease:
		p := m.press
		m.press = nil
		if p == nil {
			return nil
		}
		if p.dragging {
			if m.session.DragMoved() {
				s, pointer := m.session, m.view.ToWorld(cx, cy)
				return m.start("move", func(ctx context.Context) error {
					s.EndDrag(ctx, pointer)
					return nil
				})
			}
			m.session.CancelDrag()
		}
		return m.click(p)
	}
	return nil
}

// click turns a press without motion into a selection action
func (m *Model) click(p *press) tea.Cmd {
	if p.routeID != 0 {
		return m.dispatch(selection.Action{Kind: selection.ClickRoute, ID: p.routeID})
	}
	switch p.target.Kind {
	case TargetLine:
		return m.dispatch(selection.Action{Kind: selection.ClickLink, ID: p.target.ID})
	case TargetMarker:
		kind := selection.ClickDevice
		if p.target.Ref.Kind == topology.KindNode {
			kind = selection.ClickNode
		}
		return m.dispatch(selection.Action{Kind: kind, ID: p.target.Ref.ID})
	}
	if m.inCanvas(p.x, p.y) {
		return m.dispatch(selection.Action{Kind: selection.ClickBackground})
	}
	return nil
}

func (m Model) canvasSize() (int, int) {
	return max(m.width-sidebarWidth-1, 10), max(m.height-headerHeight-footerHeight, 5)
}

func (m Model) toCanvas(x, y int) (int, int) {
	return x, y - headerHeight
}

func (m Model) inCanvas(x, y int) bool {
	w, h := m.canvasSize()
	cx, cy := m.toCanvas(x, y)
	return cx >= 0 && cy >= 0 && cx < w && cy < h
}

func (m Model) canvas() *Canvas {
	w, h := m.canvasSize()
	c := NewCanvas(w, h, m.view)
	c.Draw(m.scene)
	return c
}

// visibleRoutes is how many route rows fit above the inspector
func (m Model) visibleRoutes() int {
	_, h := m.canvasSize()
	return min(len(m.scene.Routes), h/2)
}

// routeAt maps a screen cell to a route row of the sidebar
func (m Model) routeAt(x, y int) (int64, bool) {
	if m.mode != ModeRoutes {
		return 0, false
	}
	w, _ := m.canvasSize()
	if x <= w {
		return 0, false
	}
	i := y - headerHeight - 1
	if i < 0 || i >= m.visibleRoutes() {
		return 0, false
	}
	return m.scene.Routes[i].Route.ID, true
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(m.title()))
	s.WriteString("\n")
	s.WriteString(statusStyle.Render(m.status()))
	s.WriteString("\n")

	if m.scene.Blocking != "" {
		s.WriteString(blockingStyle.Render(
			errorStyle.Render(m.scene.Blocking) + "\n\n" + helpStyle.Render("r retry • q quit"),
		))
		return s.String()
	}
	if !m.loaded {
		s.WriteString("Loading...")
		return s.String()
	}

	_, h := m.canvasSize()
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.canvas().Render(), " ", m.sidebar(h)))
	s.WriteString("\n")
	if m.notice != "" {
		s.WriteString(errorStyle.Render("✗ " + m.notice))
	}
	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func (m Model) title() string {
	if m.mode == ModeRoutes {
		return "Cluso Topology · Routes"
	}
	return "Cluso Topology · Links"
}

func (m Model) status() string {
	parts := []string{
		"selection " + m.session.Selection().String(),
		fmt.Sprintf("%d links", len(m.scene.Lines)),
		fmt.Sprintf("%d routes", len(m.scene.Routes)),
	}
	if n := len(m.scene.Skipped); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unresolved", n))
	}
	if ref, dragging := m.session.Dragging(); dragging {
		parts = append(parts, "dragging "+ref.String())
	}
	if m.pending > 0 {
		parts = append(parts, "syncing…")
	}
	return strings.Join(parts, " • ")
}

func (m Model) sidebar(height int) string {
	var lines []string
	if m.mode == ModeRoutes {
		lines = append(lines, headerStyle.Render(fmt.Sprintf("Routes (%d)", len(m.scene.Routes))))
		for _, r := range m.scene.Routes[:m.visibleRoutes()] {
			row := truncate(fmt.Sprintf("%s (%d)", r.Route.Name, r.LinkCount), sidebarWidth-2)
			if r.Active {
				row = activeRowStyle.Render(row)
			}
			swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(r.Color)).Render("■")
			lines = append(lines, swatch+" "+row)
		}
		lines = append(lines, "")
	}
	if m.form != nil {
		lines = append(lines, m.form.view())
	} else {
		lines = append(lines, m.inspector())
	}
	return lipgloss.NewStyle().Width(sidebarWidth).MaxHeight(height).Render(strings.Join(lines, "\n"))
}

func (m Model) inspector() string {
	in := m.scene.Inspector
	var s strings.Builder
	switch in.Kind {
	case render.InspectorRoute:
		r := in.Route.Route
		s.WriteString(headerStyle.Render(r.Name) + "\n")
		fmt.Fprintf(&s, "Type     %s\n", r.RouteType)
		surface := string(r.SurfaceType)
		if !r.SurfaceType.IsStandard() {
			surface += " (legacy)"
		}
		fmt.Fprintf(&s, "Surface  %s\n", surface)
		fmt.Fprintf(&s, "Length   %.1f m\n", r.Length)
		fmt.Fprintf(&s, "Links    %d\n", in.Route.LinkCount)
		if r.MainMaterialName != "" {
			fmt.Fprintf(&s, "Material %s / %s\n", r.MainMaterialCategory, r.MainMaterialName)
		}
		s.WriteString(dimStyle.Render("click links to assign • e edit"))

	case render.InspectorLink:
		li := in.Link
		l := li.Link
		s.WriteString(headerStyle.Render(fmt.Sprintf("Link %d", l.ID)) + "\n")
		fmt.Fprintf(&s, "Type     %s\n", l.LinkType)
		fmt.Fprintf(&s, "From     %s\n", li.From)
		fmt.Fprintf(&s, "To       %s\n", li.To)
		fmt.Fprintf(&s, "Length   %s\n", orDash(formatFloat(l.Length)))
		route := li.RouteName
		if route == "" {
			route = "unassigned"
		}
		fmt.Fprintf(&s, "Route    %s\n", route)
		fiber := fmt.Sprintf("Fiber    %s cores, %s splices, %s connectors",
			orDash(formatInt(l.FiberCores)), orDash(formatInt(l.FiberSpliceCount)), orDash(formatInt(l.FiberConnectorCount)))
		if li.FiberFieldsEnabled {
			s.WriteString(fiber + "\n")
		} else {
			s.WriteString(dimStyle.Render(fiber) + "\n")
		}
		s.WriteString(dimStyle.Render("e edit • u unassign • x delete"))

	case render.InspectorEntity:
		e := in.Entity
		s.WriteString(headerStyle.Render(e.Label()) + "\n")
		fmt.Fprintf(&s, "Code     %s\n", e.Code)
		fmt.Fprintf(&s, "Position %.0f, %.0f\n", e.Position.X, e.Position.Y)
		s.WriteString(dimStyle.Render("drag to move"))

	default:
		if m.mode == ModeRoutes {
			s.WriteString(dimStyle.Render("Select a route, then click links to assign them"))
		} else {
			s.WriteString(dimStyle.Render("Click a link or a marker"))
		}
	}
	return s.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
