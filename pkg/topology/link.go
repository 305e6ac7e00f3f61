package topology

import "strings"

// LinkType is the physical layer of a link
type LinkType string

const (
	LinkUTP   LinkType = "UTP"
	LinkFiber LinkType = "FIBER"
	LinkPower LinkType = "POWER"
	LinkWiFi  LinkType = "WIFI"
)

// LinkTypes lists the link types in picker order
var LinkTypes = []LinkType{LinkUTP, LinkFiber, LinkPower, LinkWiFi}

// ParseLinkType matches a code case-insensitively, returning false for
// unknown codes.
func ParseLinkType(code string) (LinkType, bool) {
	for _, t := range LinkTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(code)) {
			return t, true
		}
	}
	return "", false
}

// Endpoint references exactly one node or one device
type Endpoint struct {
	NodeID   *int64
	DeviceID *int64
}

// NodeEndpoint returns an endpoint pointing at a node
func NodeEndpoint(id int64) Endpoint { return Endpoint{NodeID: ID(id)} }

// DeviceEndpoint returns an endpoint pointing at a device
func DeviceEndpoint(id int64) Endpoint { return Endpoint{DeviceID: ID(id)} }

// Ref converts the endpoint into an entity reference. It fails when both or
// neither side is set.
func (e Endpoint) Ref() (EntityRef, error) {
	switch {
	case e.NodeID != nil && e.DeviceID != nil:
		return EntityRef{}, ErrInvalidEndpoint
	case e.NodeID != nil:
		return EntityRef{Kind: KindNode, ID: *e.NodeID}, nil
	case e.DeviceID != nil:
		return EntityRef{Kind: KindDevice, ID: *e.DeviceID}, nil
	default:
		return EntityRef{}, ErrInvalidEndpoint
	}
}

// Link connects two endpoints and carries physical-layer attributes.
// Fiber counters are only meaningful for FIBER links and are kept as-is when
// the type changes.
type Link struct {
	ID                  int64    `json:"id"`
	FromNodeID          *int64   `json:"fromNodeId"`
	ToNodeID            *int64   `json:"toNodeId"`
	FromDeviceID        *int64   `json:"fromDeviceId"`
	ToDeviceID          *int64   `json:"toDeviceId"`
	LinkType            LinkType `json:"linkType,omitempty"`
	Length              *float64 `json:"length"`
	RouteID             *int64   `json:"routeId,omitempty"`
	FiberCores          *int     `json:"fiberCores,omitempty"`
	FiberSpliceCount    *int     `json:"fiberSpliceCount,omitempty"`
	FiberConnectorCount *int     `json:"fiberConnectorCount,omitempty"`
}

// From returns the source endpoint
func (l Link) From() Endpoint {
	return Endpoint{NodeID: l.FromNodeID, DeviceID: l.FromDeviceID}
}

// To returns the target endpoint
func (l Link) To() Endpoint {
	return Endpoint{NodeID: l.ToNodeID, DeviceID: l.ToDeviceID}
}

// IsFiber reports whether fiber counters apply to the link
func (l Link) IsFiber() bool {
	return l.LinkType == LinkFiber
}

// Assigned reports whether the link belongs to a route
func (l Link) Assigned() bool {
	return l.RouteID != nil
}

// Clone returns a deep copy of l
func (l Link) Clone() Link {
	l.FromNodeID = cloneID(l.FromNodeID)
	l.ToNodeID = cloneID(l.ToNodeID)
	l.FromDeviceID = cloneID(l.FromDeviceID)
	l.ToDeviceID = cloneID(l.ToDeviceID)
	l.Length = cloneFloat(l.Length)
	l.RouteID = cloneID(l.RouteID)
	l.FiberCores = cloneInt(l.FiberCores)
	l.FiberSpliceCount = cloneInt(l.FiberSpliceCount)
	l.FiberConnectorCount = cloneInt(l.FiberConnectorCount)
	return l
}

// LinkUpdate is the editable subset of a link. Nil fields keep the server
// value.
type LinkUpdate struct {
	LinkType            LinkType `json:"linkType,omitempty" validate:"omitempty,oneof=UTP FIBER POWER WIFI"`
	Length              *float64 `json:"length" validate:"omitempty,gte=0"`
	FiberCores          *int     `json:"fiberCores" validate:"omitempty,min=1"`
	FiberSpliceCount    *int     `json:"fiberSpliceCount" validate:"omitempty,min=0"`
	FiberConnectorCount *int     `json:"fiberConnectorCount" validate:"omitempty,min=0"`
}

// LinkCreate is the body of a link creation request
type LinkCreate struct {
	FromNodeID   *int64   `json:"fromNodeId"`
	ToNodeID     *int64   `json:"toNodeId"`
	FromDeviceID *int64   `json:"fromDeviceId"`
	ToDeviceID   *int64   `json:"toDeviceId"`
	LinkType     LinkType `json:"linkType" validate:"required,oneof=UTP FIBER POWER WIFI"`
}

// NewLinkCreate builds a creation request between two endpoints
func NewLinkCreate(from, to Endpoint, linkType LinkType) LinkCreate {
	return LinkCreate{
		FromNodeID:   from.NodeID,
		FromDeviceID: from.DeviceID,
		ToNodeID:     to.NodeID,
		ToDeviceID:   to.DeviceID,
		LinkType:     linkType,
	}
}

// Endpoints returns the two sides of the request
func (c LinkCreate) Endpoints() (Endpoint, Endpoint) {
	return Endpoint{NodeID: c.FromNodeID, DeviceID: c.FromDeviceID},
		Endpoint{NodeID: c.ToNodeID, DeviceID: c.ToDeviceID}
}
