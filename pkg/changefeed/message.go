// Package changefeed announces server-side changes over a nanomsg PUB/SUB
// socket. Editors subscribe and answer every change with a full reload.
package changefeed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Prefix marks change messages on the wire. SUB sockets filter on it.
const Prefix = "CHANGE:"

// Change kinds
const (
	KindRouteCreated  = "route.created"
	KindRouteUpdated  = "route.updated"
	KindRouteDeleted  = "route.deleted"
	KindLinkAssigned  = "link.assigned"
	KindLinkCreated   = "link.created"
	KindLinkUpdated   = "link.updated"
	KindLinkDeleted   = "link.deleted"
	KindEntityMoved   = "entity.moved"
	KindDatasetReload = "dataset.reloaded"
)

// ErrBadMessage is returned for frames without the change prefix
var ErrBadMessage = errors.New("changefeed: malformed message")

// Change is one announcement
type Change struct {
	Calculation int64     `json:"calculation"`
	Kind        string    `json:"kind"`
	ID          int64     `json:"id,omitempty"`
	At          time.Time `json:"at"`
}

// Encode frames a change for the wire
func Encode(c Change) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode change: %w", err)
	}
	return append([]byte(Prefix), data...), nil
}

// Decode parses a framed change
func Decode(msg []byte) (Change, error) {
	if !bytes.HasPrefix(msg, []byte(Prefix)) {
		return Change{}, ErrBadMessage
	}
	var c Change
	if err := json.Unmarshal(msg[len(Prefix):], &c); err != nil {
		return Change{}, fmt.Errorf("%w: %w", ErrBadMessage, err)
	}
	return c, nil
}
