package topology

import "slices"

// RouteType is the kind of physical cable pathway
type RouteType string

const (
	RouteCorrugatedPipe  RouteType = "CORRUGATED_PIPE"
	RouteCableChannel    RouteType = "CABLE_CHANNEL"
	RouteTrayOrStructure RouteType = "TRAY_OR_STRUCTURE"
	RouteWireRope        RouteType = "WIRE_ROPE"
	RouteBareCable       RouteType = "BARE_CABLE"
)

// RouteTypes lists route types in picker order
var RouteTypes = []RouteType{
	RouteCorrugatedPipe,
	RouteCableChannel,
	RouteTrayOrStructure,
	RouteWireRope,
	RouteBareCable,
}

// SurfaceType is the mounting surface of a route. The server may return
// legacy values outside SurfaceTypes; they must round-trip unchanged, so this
// is an open string type.
type SurfaceType string

const (
	SurfaceWall         SurfaceType = "WALL"
	SurfaceCeiling      SurfaceType = "CEILING"
	SurfaceStructure    SurfaceType = "STRUCTURE"
	SurfaceBetonOrBrick SurfaceType = "BETON_OR_BRICK"
	SurfaceMetal        SurfaceType = "METAL"
	SurfaceWood         SurfaceType = "WOOD"
	SurfaceGypsum       SurfaceType = "GYPSUM"
)

// SurfaceTypes lists the standard surfaces in picker order
var SurfaceTypes = []SurfaceType{
	SurfaceWall,
	SurfaceCeiling,
	SurfaceStructure,
	SurfaceBetonOrBrick,
	SurfaceMetal,
	SurfaceWood,
	SurfaceGypsum,
}

// IsStandard reports whether s belongs to the standard surface set
func (s SurfaceType) IsStandard() bool {
	return slices.Contains(SurfaceTypes, s)
}

// Route is a physical cable pathway grouping zero or more links.
// Length is derived by the server as the longest assigned link.
type Route struct {
	ID                   int64       `json:"id"`
	Name                 string      `json:"name"`
	RouteType            RouteType   `json:"routeType"`
	SurfaceType          SurfaceType `json:"surfaceType"`
	Length               float64     `json:"length"`
	Orientation          string      `json:"orientation,omitempty"`
	FixingMethod         string      `json:"fixingMethod,omitempty"`
	MainMaterialID       *int64      `json:"mainMaterialId,omitempty"`
	MainMaterialName     string      `json:"mainMaterialName,omitempty"`
	MainMaterialCategory string      `json:"mainMaterialCategory,omitempty"`
}

// RouteLink is a link as listed by the routes aggregate, carrying its
// current route assignment.
type RouteLink struct {
	ID           int64    `json:"id"`
	FromNodeID   *int64   `json:"fromNodeId"`
	ToNodeID     *int64   `json:"toNodeId"`
	FromDeviceID *int64   `json:"fromDeviceId"`
	ToDeviceID   *int64   `json:"toDeviceId"`
	RouteID      *int64   `json:"routeId"`
	Length       *float64 `json:"length"`
	LinkType     LinkType `json:"linkType,omitempty"`
}

// AsLink converts the routes-view link into a topology link
func (rl RouteLink) AsLink() Link {
	return Link{
		ID:           rl.ID,
		FromNodeID:   cloneID(rl.FromNodeID),
		ToNodeID:     cloneID(rl.ToNodeID),
		FromDeviceID: cloneID(rl.FromDeviceID),
		ToDeviceID:   cloneID(rl.ToDeviceID),
		LinkType:     rl.LinkType,
		Length:       cloneFloat(rl.Length),
		RouteID:      cloneID(rl.RouteID),
	}
}

// Routes is the route/material aggregate of one calculation
type Routes struct {
	Routes    []Route     `json:"routes"`
	Links     []RouteLink `json:"links"`
	Materials []Material  `json:"materials"`
}

// RouteCreate is the body of a route creation request
type RouteCreate struct {
	Name        string      `json:"name" validate:"required,max=255"`
	RouteType   RouteType   `json:"routeType" validate:"required,oneof=CORRUGATED_PIPE CABLE_CHANNEL TRAY_OR_STRUCTURE WIRE_ROPE BARE_CABLE"`
	SurfaceType SurfaceType `json:"surfaceType" validate:"required,oneof=WALL CEILING STRUCTURE BETON_OR_BRICK METAL WOOD GYPSUM"`
}

// RouteEdit is what the operator may change on a route.
// MainMaterialID nil clears the material.
type RouteEdit struct {
	Name           string
	RouteType      RouteType
	SurfaceType    SurfaceType
	MainMaterialID *int64
}

// RouteUpdate is the wire body of a route update. LengthMeters echoes the
// stored derived length unchanged; MainMaterialID 0 means "no material".
type RouteUpdate struct {
	Name           string      `json:"name" validate:"required,max=255"`
	RouteType      RouteType   `json:"routeType" validate:"required,oneof=CORRUGATED_PIPE CABLE_CHANNEL TRAY_OR_STRUCTURE WIRE_ROPE BARE_CABLE"`
	SurfaceType    SurfaceType `json:"surfaceType" validate:"required,max=64"`
	MainMaterialID int64       `json:"mainMaterialId" validate:"min=0"`
	LengthMeters   float64     `json:"lengthMeters" validate:"min=0"`
}

// LinkAssignment is the body of assign/unassign requests
type LinkAssignment struct {
	LinkID int64 `json:"linkId" validate:"required,min=1"`
}

// PositionUpdate is the body of a move request; coordinates are integers
type PositionUpdate struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}
