/*
	Label graph instances: weighted vertices and undirected weighted
	edges between them.  Weight updates are increments, so repeated
	posts accumulate rather than overwrite.
*/

package storage

import "sort"

// GraphVertex is one weighted vertex of a label graph.
type GraphVertex struct {
	Id     uint64
	Weight float64
}

// GraphEdge is one weighted undirected edge.  Edges are stored with
// Id1 <= Id2 regardless of the order they were posted in.
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

// graphState holds a graph in mergeable form.
type graphState struct {
	Vertices map[uint64]float64
	Edges    map[[2]uint64]float64
}

func newGraphState() *graphState {
	return &graphState{
		Vertices: make(map[uint64]float64),
		Edges:    make(map[[2]uint64]float64),
	}
}

// apply increments the state's weights from an update, creating any
// vertex or edge it has not seen.  An edge also creates its endpoints.
func (g *graphState) apply(update LabelGraph) {
	for _, v := range update.Vertices {
		g.Vertices[v.Id] += v.Weight
	}
	for _, e := range update.Edges {
		id1, id2 := e.Id1, e.Id2
		if id1 > id2 {
			id1, id2 = id2, id1
		}
		if _, found := g.Vertices[id1]; !found {
			g.Vertices[id1] = 0
		}
		if _, found := g.Vertices[id2]; !found {
			g.Vertices[id2] = 0
		}
		g.Edges[[2]uint64{id1, id2}] += e.Weight
	}
}

// graph flattens the state into sorted, deterministic exchange form.
func (g *graphState) graph() LabelGraph {
	out := LabelGraph{
		Vertices: make([]GraphVertex, 0, len(g.Vertices)),
		Edges:    make([]GraphEdge, 0, len(g.Edges)),
	}
	for id, weight := range g.Vertices {
		out.Vertices = append(out.Vertices, GraphVertex{Id: id, Weight: weight})
	}
	for pair, weight := range g.Edges {
		out.Edges = append(out.Edges, GraphEdge{Id1: pair[0], Id2: pair[1], Weight: weight})
	}
	sort.Slice(out.Vertices, func(i, j int) bool { return out.Vertices[i].Id < out.Vertices[j].Id })
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].Id1 != out.Edges[j].Id1 {
			return out.Edges[i].Id1 < out.Edges[j].Id1
		}
		return out.Edges[i].Id2 < out.Edges[j].Id2
	})
	return out
}

// stateFromGraph rebuilds mergeable state from exchange form.
func stateFromGraph(g LabelGraph) *graphState {
	state := newGraphState()
	state.apply(g)
	return state
}
