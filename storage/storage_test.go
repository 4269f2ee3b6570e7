package storage

import (
	"bytes"
	"errors"
	"testing"

	"github.com/voxelio/voxeld/voxel"
)

func testMetadata(t *testing.T, shape voxel.PointNd, dtype voxel.DataType) voxel.Metadata {
	labels := "cxyzt"[:len(shape)]
	m, err := voxel.DefaultMetadata(shape, dtype, labels, 1.0, "nanometers")
	if err != nil {
		t.Fatalf("Couldn't build metadata: %v\n", err)
	}
	return m
}

// runStoreSuite exercises the full Store capability surface against one
// implementation.
func runStoreSuite(t *testing.T, store Store) {
	// Empty store.
	listing, err := store.Datasets()
	if err != nil || len(listing) != 0 {
		t.Fatalf("Expected empty listing, got %v (%v)\n", listing, err)
	}

	// Dataset creation and duplicates.
	root, err := store.CreateDataset("bodies")
	if err != nil || root == "" {
		t.Fatalf("Couldn't create dataset: %v\n", err)
	}
	if _, err := store.CreateDataset("bodies"); err == nil {
		t.Fatalf("Expected duplicate dataset error\n")
	} else {
		var exists ExistsError
		if !errors.As(err, &exists) {
			t.Fatalf("Expected ExistsError, got %T: %v\n", err, err)
		}
	}

	// Branching.
	child, err := store.CreateChildNode(root)
	if err != nil {
		t.Fatalf("Couldn't branch: %v\n", err)
	}
	if _, err := store.CreateChildNode("no-such-node"); err == nil {
		t.Fatalf("Expected error branching unknown node\n")
	}
	info, err := store.DatasetsInfo()
	if err != nil {
		t.Fatalf("Couldn't get info: %v\n", err)
	}
	dsInfo, found := info["bodies"]
	if !found || dsInfo.Root != root || len(dsInfo.Nodes) != 2 {
		t.Fatalf("Bad dataset info: %+v\n", dsInfo)
	}
	if nodes := dsInfo.Nodes[root].Children; len(nodes) != 1 || nodes[0] != child {
		t.Fatalf("Root node missing child %s: %+v\n", child, dsInfo.Nodes[root])
	}

	// Volume lifecycle.
	m := testMetadata(t, voxel.PointNd{1, 30, 20, 10}, voxel.T_uint8)
	if err := store.CreateVolume(root, "grayscale", m); err != nil {
		t.Fatalf("Couldn't create volume: %v\n", err)
	}
	if err := store.CreateVolume(root, "grayscale", m); err == nil {
		t.Fatalf("Expected duplicate volume error\n")
	}
	if _, err := store.OpenVolume(root, "no-such-volume"); err == nil {
		t.Fatalf("Expected error opening unknown volume\n")
	} else {
		var notFound voxel.NotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("Expected NotFoundError, got %T: %v\n", err, err)
		}
	}
	vol, err := store.OpenVolume(root, "grayscale")
	if err != nil {
		t.Fatalf("Couldn't open volume: %v\n", err)
	}
	if !vol.Metadata().Equals(m) {
		t.Fatalf("Volume metadata differs after store round trip\n")
	}
	wireShape := vol.WireShape()
	if !wireShape.Equals(voxel.PointNd{10, 20, 30, 1}) {
		t.Fatalf("Bad wire shape %s\n", wireShape)
	}

	// Fresh volumes read back as zeros.
	wireBox, _ := voxel.BoxFromOffsetShape(voxel.PointNd{2, 3, 4, 0}, voxel.PointNd{2, 2, 2, 1})
	var got bytes.Buffer
	if err := vol.ReadRegion(wireBox, &got, 0); err != nil {
		t.Fatalf("Couldn't read fresh region: %v\n", err)
	}
	if got.Len() != 8 {
		t.Fatalf("Expected 8 bytes, got %d\n", got.Len())
	}
	for _, b := range got.Bytes() {
		if b != 0 {
			t.Fatalf("Fresh volume has non-zero data\n")
		}
	}

	// Region write/read round trip with a deliberately tiny chunk size.
	payload := make([]byte, 8)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	if err := vol.WriteRegion(wireBox, bytes.NewReader(payload), 3); err != nil {
		t.Fatalf("Couldn't write region: %v\n", err)
	}
	got.Reset()
	if err := vol.ReadRegion(wireBox, &got, 3); err != nil {
		t.Fatalf("Couldn't read region back: %v\n", err)
	}
	if !bytes.Equal(got.Bytes(), payload) {
		t.Fatalf("Region round trip altered payload: %v != %v\n", got.Bytes(), payload)
	}

	// Surrounding voxels stay zero.
	outerBox, _ := voxel.BoxFromOffsetShape(voxel.PointNd{1, 2, 3, 0}, voxel.PointNd{4, 4, 4, 1})
	got.Reset()
	if err := vol.ReadRegion(outerBox, &got, 0); err != nil {
		t.Fatalf("Couldn't read outer region: %v\n", err)
	}
	var sum int
	for _, b := range got.Bytes() {
		sum += int(b)
	}
	if want := 8 * 9 / 2; sum != want {
		t.Fatalf("Outer region sum %d, expected %d (write bled outside its region?)\n", sum, want)
	}

	// Truncated write payloads surface as errors.
	if err := vol.WriteRegion(wireBox, bytes.NewReader(payload[:5]), 3); err == nil {
		t.Fatalf("Expected error writing truncated payload\n")
	} else {
		var truncated voxel.TruncatedPayloadError
		if !errors.As(err, &truncated) {
			t.Fatalf("Expected TruncatedPayloadError, got %T: %v\n", err, err)
		}
	}

	// Out-of-bounds and empty regions are rejected.
	badBox, _ := voxel.BoxFromOffsetShape(voxel.PointNd{8, 0, 0, 0}, voxel.PointNd{4, 2, 2, 1})
	if err := vol.ReadRegion(badBox, &got, 0); err == nil {
		t.Fatalf("Expected bounds error\n")
	}
	emptyBox := voxel.BoundingBox{Start: voxel.PointNd{0, 0, 0, 0}, Stop: voxel.PointNd{0, 2, 2, 1}}
	if err := vol.ReadRegion(emptyBox, &got, 0); err == nil {
		t.Fatalf("Expected error for empty region\n")
	}

	// Keyvalue instances.
	if err := store.CreateKeyValue(child, "annotations"); err != nil {
		t.Fatalf("Couldn't create keyvalue: %v\n", err)
	}
	if err := store.CreateKeyValue(child, "annotations"); err == nil {
		t.Fatalf("Expected duplicate keyvalue error\n")
	}
	if err := store.PutValue(child, "annotations", "soma", []byte("hello")); err != nil {
		t.Fatalf("Couldn't put value: %v\n", err)
	}
	if err := store.PutValue(child, "no-such-kv", "soma", []byte("x")); err == nil {
		t.Fatalf("Expected error putting to unknown keyvalue\n")
	}
	value, err := store.GetValue(child, "annotations", "soma")
	if err != nil || string(value) != "hello" {
		t.Fatalf("Bad value %q (%v)\n", value, err)
	}
	if _, err := store.GetValue(child, "annotations", "missing"); err == nil {
		t.Fatalf("Expected error for missing key\n")
	}
	if err := store.PutValue(child, "annotations", "axon", []byte("world")); err != nil {
		t.Fatalf("Couldn't put second value: %v\n", err)
	}
	keys, err := store.Keys(child, "annotations")
	if err != nil || len(keys) != 2 || keys[0] != "axon" || keys[1] != "soma" {
		t.Fatalf("Bad sorted keys %v (%v)\n", keys, err)
	}

	// Label graph lifecycle.
	if err := store.CreateLabelGraph(child, "bodygraph"); err != nil {
		t.Fatalf("Couldn't create labelgraph: %v\n", err)
	}
	if err := store.CreateLabelGraph(child, "bodygraph"); err == nil {
		t.Fatalf("Expected duplicate labelgraph error\n")
	}
	if err := store.CreateLabelGraph("no-such-node", "bodygraph"); err == nil {
		t.Fatalf("Expected error creating labelgraph on unknown node\n")
	}
	g, err := store.GetGraph(child, "bodygraph")
	if err != nil || len(g.Vertices) != 0 || len(g.Edges) != 0 {
		t.Fatalf("Expected empty graph, got %+v (%v)\n", g, err)
	}
	if _, err := store.GetGraph(child, "no-such-graph"); err == nil {
		t.Fatalf("Expected error for unknown labelgraph\n")
	}

	// Weights accumulate across updates; edges are normalized to
	// Id1 <= Id2 and create their endpoints.
	err = store.UpdateGraph(child, "bodygraph", LabelGraph{
		Vertices: []GraphVertex{{Id: 1, Weight: 2.5}, {Id: 2, Weight: 1}},
		Edges:    []GraphEdge{{Id1: 3, Id2: 1, Weight: 4}},
	})
	if err != nil {
		t.Fatalf("Couldn't update graph: %v\n", err)
	}
	err = store.UpdateGraph(child, "bodygraph", LabelGraph{
		Vertices: []GraphVertex{{Id: 1, Weight: 1.5}},
		Edges:    []GraphEdge{{Id1: 1, Id2: 3, Weight: 1}},
	})
	if err != nil {
		t.Fatalf("Couldn't update graph again: %v\n", err)
	}
	g, err = store.GetGraph(child, "bodygraph")
	if err != nil {
		t.Fatalf("Couldn't get graph: %v\n", err)
	}
	wantVertices := []GraphVertex{{Id: 1, Weight: 4}, {Id: 2, Weight: 1}, {Id: 3, Weight: 0}}
	if len(g.Vertices) != len(wantVertices) {
		t.Fatalf("Bad vertex count %d: %+v\n", len(g.Vertices), g.Vertices)
	}
	for i, want := range wantVertices {
		if g.Vertices[i] != want {
			t.Errorf("Vertex %d: got %+v, want %+v\n", i, g.Vertices[i], want)
		}
	}
	if len(g.Edges) != 1 || g.Edges[0] != (GraphEdge{Id1: 1, Id2: 3, Weight: 5}) {
		t.Fatalf("Bad edges %+v\n", g.Edges)
	}

	info, err = store.DatasetsInfo()
	if err != nil {
		t.Fatalf("Couldn't get info: %v\n", err)
	}
	if graphs := info["bodies"].Nodes[child].LabelGraphs; len(graphs) != 1 || graphs[0] != "bodygraph" {
		t.Fatalf("Bad labelgraph listing %v\n", graphs)
	}
}

func TestMemStore(t *testing.T) {
	store := NewMemStore()
	defer store.Close()
	runStoreSuite(t, store)
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadgerStore(BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Couldn't open badger store: %v\n", err)
	}
	defer store.Close()
	runStoreSuite(t, store)
}

// Writes that straddle page boundaries must read back intact, and the
// data must survive a store reopen.
func TestBadgerStorePagingAndPersistence(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenBadgerStore(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatalf("Couldn't open badger store: %v\n", err)
	}

	root, err := store.CreateDataset("em")
	if err != nil {
		t.Fatalf("Couldn't create dataset: %v\n", err)
	}
	// 1 x 300 x 300 uint8 = 90000 bytes, crossing the 64 KiB page size.
	m := testMetadata(t, voxel.PointNd{1, 300, 300}, voxel.T_uint8)
	if err := store.CreateVolume(root, "grayscale", m); err != nil {
		t.Fatalf("Couldn't create volume: %v\n", err)
	}
	vol, err := store.OpenVolume(root, "grayscale")
	if err != nil {
		t.Fatalf("Couldn't open volume: %v\n", err)
	}

	// Write the whole volume; the single span covers both pages.
	wireBox, _ := voxel.BoxFromOffsetShape(voxel.PointNd{0, 0, 0}, voxel.PointNd{300, 300, 1})
	payload := make([]byte, 300*300)
	for i := range payload {
		payload[i] = byte(i % 249)
	}
	if err := vol.WriteRegion(wireBox, bytes.NewReader(payload), 0); err != nil {
		t.Fatalf("Couldn't write volume: %v\n", err)
	}

	// A small region straddling the page boundary (byte 65536 is inside
	// wire row 218).
	straddleBox, _ := voxel.BoxFromOffsetShape(voxel.PointNd{217, 0, 0}, voxel.PointNd{3, 300, 1})
	checkRegionBytes := func(vol Volume, context string) {
		var got bytes.Buffer
		if err := vol.ReadRegion(straddleBox, &got, 0); err != nil {
			t.Fatalf("Couldn't read straddling region %s: %v\n", context, err)
		}
		want := payload[217*300 : 220*300]
		if !bytes.Equal(got.Bytes(), want) {
			t.Fatalf("Straddling region differs %s\n", context)
		}
	}
	checkRegionBytes(vol, "before reopen")

	if err := store.CreateLabelGraph(root, "bodygraph"); err != nil {
		t.Fatalf("Couldn't create labelgraph: %v\n", err)
	}
	err = store.UpdateGraph(root, "bodygraph", LabelGraph{
		Vertices: []GraphVertex{{Id: 7, Weight: 2}},
		Edges:    []GraphEdge{{Id1: 7, Id2: 9, Weight: 3}},
	})
	if err != nil {
		t.Fatalf("Couldn't update graph: %v\n", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Couldn't close store: %v\n", err)
	}
	store, err = OpenBadgerStore(BadgerConfig{Path: dir})
	if err != nil {
		t.Fatalf("Couldn't reopen badger store: %v\n", err)
	}
	defer store.Close()

	vol, err = store.OpenVolume(root, "grayscale")
	if err != nil {
		t.Fatalf("Couldn't reopen volume: %v\n", err)
	}
	checkRegionBytes(vol, "after reopen")

	g, err := store.GetGraph(root, "bodygraph")
	if err != nil {
		t.Fatalf("Couldn't get graph after reopen: %v\n", err)
	}
	if len(g.Vertices) != 2 || len(g.Edges) != 1 || g.Edges[0] != (GraphEdge{Id1: 7, Id2: 9, Weight: 3}) {
		t.Fatalf("Graph differs after reopen: %+v\n", g)
	}
}
