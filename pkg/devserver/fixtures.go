package devserver

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

//go:embed fixtures/site.yaml
var defaultFixtures []byte

// Fixtures is the YAML seed file of the fixture server
type Fixtures struct {
	CalculationID int64             `yaml:"calculation_id"`
	Nodes         []FixtureEntity   `yaml:"nodes"`
	Devices       []FixtureEntity   `yaml:"devices"`
	Links         []FixtureLink     `yaml:"links"`
	Routes        []FixtureRoute    `yaml:"routes"`
	Materials     []FixtureMaterial `yaml:"materials"`
}

// FixtureEntity seeds a node or a device. X and Y may be omitted.
type FixtureEntity struct {
	ID   int64    `yaml:"id"`
	Type string   `yaml:"type"`
	Code string   `yaml:"code"`
	Name string   `yaml:"name"`
	X    *float64 `yaml:"x"`
	Y    *float64 `yaml:"y"`
}

// FixtureLink seeds a link
type FixtureLink struct {
	ID                  int64    `yaml:"id"`
	FromNode            *int64   `yaml:"from_node"`
	FromDevice          *int64   `yaml:"from_device"`
	ToNode              *int64   `yaml:"to_node"`
	ToDevice            *int64   `yaml:"to_device"`
	Type                string   `yaml:"type"`
	Length              *float64 `yaml:"length"`
	Route               *int64   `yaml:"route"`
	FiberCores          *int     `yaml:"fiber_cores"`
	FiberSpliceCount    *int     `yaml:"fiber_splice_count"`
	FiberConnectorCount *int     `yaml:"fiber_connector_count"`
}

// FixtureRoute seeds a route. Surface may hold a legacy value.
type FixtureRoute struct {
	ID           int64  `yaml:"id"`
	Name         string `yaml:"name"`
	RouteType    string `yaml:"route_type"`
	SurfaceType  string `yaml:"surface_type"`
	Orientation  string `yaml:"orientation"`
	FixingMethod string `yaml:"fixing_method"`
	MainMaterial *int64 `yaml:"main_material"`
}

// FixtureMaterial seeds the material catalogue
type FixtureMaterial struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// ParseFixtures decodes a fixture document
func ParseFixtures(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if f.CalculationID <= 0 {
		return nil, fmt.Errorf("%w: calculation_id must be at least 1", topology.ErrValidation)
	}
	return &f, nil
}

// LoadFixtures reads a fixture file. An empty path returns the built-in
// site.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return ParseFixtures(defaultFixtures)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

func (f *Fixtures) topology() topology.Topology {
	t := topology.Topology{
		Nodes:   make([]topology.Node, 0, len(f.Nodes)),
		Devices: make([]topology.Device, 0, len(f.Devices)),
		Links:   make([]topology.Link, 0, len(f.Links)),
	}
	for _, n := range f.Nodes {
		t.Nodes = append(t.Nodes, topology.Node{ID: n.ID, Code: n.Code, Name: n.Name, X: n.X, Y: n.Y})
	}
	for _, d := range f.Devices {
		t.Devices = append(t.Devices, topology.Device{ID: d.ID, Type: d.Type, Code: d.Code, Name: d.Name, X: d.X, Y: d.Y})
	}
	for _, l := range f.Links {
		linkType, _ := topology.ParseLinkType(l.Type)
		t.Links = append(t.Links, topology.Link{
			ID:                  l.ID,
			FromNodeID:          l.FromNode,
			FromDeviceID:        l.FromDevice,
			ToNodeID:            l.ToNode,
			ToDeviceID:          l.ToDevice,
			LinkType:            linkType,
			Length:              l.Length,
			RouteID:             l.Route,
			FiberCores:          l.FiberCores,
			FiberSpliceCount:    l.FiberSpliceCount,
			FiberConnectorCount: l.FiberConnectorCount,
		})
	}
	return t
}

func (f *Fixtures) routes() []topology.Route {
	out := make([]topology.Route, 0, len(f.Routes))
	for _, r := range f.Routes {
		out = append(out, topology.Route{
			ID:             r.ID,
			Name:           r.Name,
			RouteType:      topology.RouteType(r.RouteType),
			SurfaceType:    topology.SurfaceType(r.SurfaceType),
			Orientation:    r.Orientation,
			FixingMethod:   r.FixingMethod,
			MainMaterialID: r.MainMaterial,
		})
	}
	return out
}

func (f *Fixtures) materials() []topology.Material {
	out := make([]topology.Material, 0, len(f.Materials))
	for _, m := range f.Materials {
		out = append(out, topology.Material{ID: m.ID, Name: m.Name, Category: m.Category})
	}
	return out
}
