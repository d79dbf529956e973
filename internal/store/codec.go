package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// rawDocument mirrors Graph but keeps nodes and edges undecoded so their
// shape can be checked before trusting them.
type rawDocument struct {
	Nodes     json.RawMessage `json:"nodes"`
	Edges     json.RawMessage `json:"edges"`
	UpdatedAt json.RawMessage `json:"updatedAt,omitempty"`
}

// DecodeGraph parses a stored document. Anything that is not an object with
// array-valued nodes and edges is reported as ErrCorrupt.
func DecodeGraph(data []byte) (Graph, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Graph{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !IsJSONArray(raw.Nodes) || !IsJSONArray(raw.Edges) {
		return Graph{}, fmt.Errorf("%w: nodes and edges must be arrays", ErrCorrupt)
	}

	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return g.Normalize(), nil
}

// EncodeGraph renders the document the way it is written to disk.
func EncodeGraph(g Graph) ([]byte, error) {
	data, err := json.MarshalIndent(g.Normalize(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal journey graph: %w", err)
	}
	return data, nil
}

// IsJSONArray reports whether raw holds a JSON array literal.
func IsJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
