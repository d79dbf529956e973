package journey

import (
	"encoding/json"
	"errors"

	"github.com/nvandessel/journeygraph/internal/store"
)

var (
	// ErrInvalidPayload is returned when a write body lacks array-valued
	// nodes and edges.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPreconditionFailed is returned by WriteIfMatch when the stored
	// document changed since the caller read it.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// DecodePayload extracts nodes and edges from a write request body. Both
// members must be JSON arrays; their elements are not inspected. Other
// members are ignored.
func DecodePayload(body []byte) (nodes, edges []json.RawMessage, err error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return nil, nil, ErrInvalidPayload
	}

	rawNodes, rawEdges := payload["nodes"], payload["edges"]
	if !store.IsJSONArray(rawNodes) || !store.IsJSONArray(rawEdges) {
		return nil, nil, ErrInvalidPayload
	}

	if err := json.Unmarshal(rawNodes, &nodes); err != nil {
		return nil, nil, ErrInvalidPayload
	}
	if err := json.Unmarshal(rawEdges, &edges); err != nil {
		return nil, nil, ErrInvalidPayload
	}
	return nodes, edges, nil
}
