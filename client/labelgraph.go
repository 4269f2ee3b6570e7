package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// GraphVertex is one weighted vertex of a label graph.
type GraphVertex struct {
	Id     uint64
	Weight float64
}

// GraphEdge is one weighted undirected edge between two vertices.
type GraphEdge struct {
	Id1    uint64
	Id2    uint64
	Weight float64
}

// LabelGraph is the JSON exchange format for graph state and updates.
type LabelGraph struct {
	Vertices []GraphVertex `json:"Vertices"`
	Edges    []GraphEdge   `json:"Edges"`
}

// graphBatchSize keeps weight posts under the service's per-request
// element limit.
const graphBatchSize = 500

// CreateLabelGraph adds a named label graph instance under a node.
func CreateLabelGraph(ctx context.Context, s *Session, uuid, name string) error {
	body, _ := json.Marshal(map[string]string{
		"dataname": name,
		"typename": "labelgraph",
	})
	path := fmt.Sprintf("/api/repo/%s/instance", uuid)
	return s.doDiscard(ctx, "POST", path, "application/json", bytes.NewReader(body))
}

// UpdateVertices increments vertex weights in a label graph, creating
// vertices the graph has not seen.  Large lists are split into several
// posts.
func UpdateVertices(ctx context.Context, s *Session, uuid, name string, vertices []GraphVertex) error {
	for start := 0; start < len(vertices); start += graphBatchSize {
		stop := start + graphBatchSize
		if stop > len(vertices) {
			stop = len(vertices)
		}
		update := LabelGraph{Vertices: vertices[start:stop], Edges: []GraphEdge{}}
		if err := postWeight(ctx, s, uuid, name, update); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEdges increments edge weights in a label graph, creating edges
// and their endpoint vertices as needed.  Large lists are split into
// several posts.
func UpdateEdges(ctx context.Context, s *Session, uuid, name string, edges []GraphEdge) error {
	for start := 0; start < len(edges); start += graphBatchSize {
		stop := start + graphBatchSize
		if stop > len(edges) {
			stop = len(edges)
		}
		update := LabelGraph{Vertices: []GraphVertex{}, Edges: edges[start:stop]}
		if err := postWeight(ctx, s, uuid, name, update); err != nil {
			return err
		}
	}
	return nil
}

func postWeight(ctx context.Context, s *Session, uuid, name string, update LabelGraph) error {
	jsonBytes, err := json.Marshal(update)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/node/%s/%s/weight", uuid, name)
	return s.doDiscard(ctx, "POST", path, "application/json", bytes.NewReader(jsonBytes))
}

// GetGraph retrieves a label graph's full state, with vertices and edges
// in sorted order and every edge normalized to Id1 <= Id2.
func GetGraph(ctx context.Context, s *Session, uuid, name string) (LabelGraph, error) {
	path := fmt.Sprintf("/api/node/%s/%s/subgraph", uuid, name)
	jsonBytes, err := s.doBytes(ctx, "GET", path, "", nil)
	if err != nil {
		return LabelGraph{}, err
	}
	var g LabelGraph
	if err := json.Unmarshal(jsonBytes, &g); err != nil {
		return LabelGraph{}, fmt.Errorf("could not parse graph response: %v", err)
	}
	return g, nil
}
