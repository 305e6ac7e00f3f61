package syncclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// LoadTopology fetches nodes, devices and links
func (c *Client) LoadTopology(ctx context.Context) (topology.Topology, error) {
	var t topology.Topology
	err := c.Call(ctx, http.MethodGet, "/topology", nil, &t)
	return t, err
}

// LoadRoutes fetches routes, their links and the material catalogue
func (c *Client) LoadRoutes(ctx context.Context) (topology.Routes, error) {
	var r topology.Routes
	err := c.Call(ctx, http.MethodGet, "/routes", nil, &r)
	return r, err
}

// CreateRoute creates an empty route
func (c *Client) CreateRoute(ctx context.Context, req topology.RouteCreate) (topology.Route, error) {
	var r topology.Route
	err := c.Call(ctx, http.MethodPost, "/routes", req, &r)
	return r, err
}

// UpdateRoute replaces the editable fields of a route
func (c *Client) UpdateRoute(ctx context.Context, routeID int64, req topology.RouteUpdate) (topology.Route, error) {
	var r topology.Route
	err := c.Call(ctx, http.MethodPatch, fmt.Sprintf("/routes/%d", routeID), req, &r)
	return r, err
}

// DeleteRoute removes a route; its links become unassigned
func (c *Client) DeleteRoute(ctx context.Context, routeID int64) error {
	return c.Call(ctx, http.MethodDelete, fmt.Sprintf("/routes/%d", routeID), nil, nil)
}

// AssignLink moves a link onto a route
func (c *Client) AssignLink(ctx context.Context, routeID, linkID int64) error {
	return c.Call(ctx, http.MethodPost, fmt.Sprintf("/routes/%d/assign-link", routeID),
		topology.LinkAssignment{LinkID: linkID}, nil)
}

// UnassignLink removes a link from a route
func (c *Client) UnassignLink(ctx context.Context, routeID, linkID int64) error {
	return c.Call(ctx, http.MethodPost, fmt.Sprintf("/routes/%d/unassign-link", routeID),
		topology.LinkAssignment{LinkID: linkID}, nil)
}

// CreateLink connects two endpoints
func (c *Client) CreateLink(ctx context.Context, req topology.LinkCreate) (topology.Link, error) {
	var l topology.Link
	err := c.Call(ctx, http.MethodPost, "/topology/links", req, &l)
	return l, err
}

// UpdateLink patches link attributes; nil fields keep the server value
func (c *Client) UpdateLink(ctx context.Context, linkID int64, req topology.LinkUpdate) (topology.Link, error) {
	var l topology.Link
	err := c.Call(ctx, http.MethodPatch, fmt.Sprintf("/topology/links/%d", linkID), req, &l)
	return l, err
}

// DeleteLink removes a link
func (c *Client) DeleteLink(ctx context.Context, linkID int64) error {
	return c.Call(ctx, http.MethodDelete, fmt.Sprintf("/topology/links/%d", linkID), nil, nil)
}

// MovePosition stores the integer position of a node or device
func (c *Client) MovePosition(ctx context.Context, ref topology.EntityRef, pos topology.PositionUpdate) error {
	segment := ref.Kind.PathSegment()
	if segment == "" {
		return fmt.Errorf("move %s: %w", ref, topology.ErrInvalidEndpoint)
	}
	return c.Call(ctx, http.MethodPost, fmt.Sprintf("/topology/%s/%d/position", segment, ref.ID), pos, nil)
}
