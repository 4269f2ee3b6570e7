/*
	In-memory Store implementation.  Used by engine and client tests so
	protocol logic can be exercised without a persistent backend.
*/

package storage

import (
	"io"
	"sort"
	"sync"

	"github.com/twinj/uuid"

	"github.com/voxelio/voxeld/voxel"
)

// MemStore keeps the whole hierarchy and all volume payloads in memory.
type MemStore struct {
	mu       sync.RWMutex
	datasets map[string]*memDataset // by dataset name
	nodes    map[string]*memNode    // by node UUID
}

type memDataset struct {
	root  string
	nodes []string // append-only, insertion order
}

type memNode struct {
	dataset  string
	parents  []string
	children []string
	volumes  map[string]*memVolume
	kvs      map[string]map[string][]byte
	graphs   map[string]*graphState
}

type memVolume struct {
	mu        sync.RWMutex
	meta      voxel.Metadata
	wireShape voxel.PointNd
	data      []byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		datasets: make(map[string]*memDataset),
		nodes:    make(map[string]*memNode),
	}
}

func newNodeUUID() string {
	return uuid.NewV4().String()
}

// --- Store interface ---

func (s *MemStore) Datasets() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing := make(map[string]string, len(s.datasets))
	for name, d := range s.datasets {
		listing[name] = d.root
	}
	return listing, nil
}

func (s *MemStore) DatasetsInfo() (map[string]DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := make(map[string]DatasetInfo, len(s.datasets))
	for name, d := range s.datasets {
		dsInfo := DatasetInfo{Root: d.root, Nodes: make(map[string]NodeInfo, len(d.nodes))}
		for _, nodeID := range d.nodes {
			dsInfo.Nodes[nodeID] = s.nodeInfo(s.nodes[nodeID])
		}
		info[name] = dsInfo
	}
	return info, nil
}

func (s *MemStore) nodeInfo(n *memNode) NodeInfo {
	info := NodeInfo{
		Parents:     append([]string(nil), n.parents...),
		Children:    append([]string(nil), n.children...),
		Volumes:     make([]string, 0, len(n.volumes)),
		KeyValues:   make([]string, 0, len(n.kvs)),
		LabelGraphs: make([]string, 0, len(n.graphs)),
	}
	for name := range n.volumes {
		info.Volumes = append(info.Volumes, name)
	}
	for name := range n.kvs {
		info.KeyValues = append(info.KeyValues, name)
	}
	for name := range n.graphs {
		info.LabelGraphs = append(info.LabelGraphs, name)
	}
	sort.Strings(info.Volumes)
	sort.Strings(info.KeyValues)
	sort.Strings(info.LabelGraphs)
	return info
}

func (s *MemStore) CreateDataset(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.datasets[name]; exists {
		return "", ExistsError{"dataset", name}
	}
	root := newNodeUUID()
	s.datasets[name] = &memDataset{root: root, nodes: []string{root}}
	s.nodes[root] = &memNode{
		dataset: name,
		volumes: make(map[string]*memVolume),
		kvs:     make(map[string]map[string][]byte),
		graphs:  make(map[string]*graphState),
	}
	return root, nil
}

func (s *MemStore) CreateChildNode(parent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentNode, found := s.nodes[parent]
	if !found {
		return "", voxel.NotFoundError{Kind: "node", Name: parent}
	}
	child := newNodeUUID()
	s.nodes[child] = &memNode{
		dataset: parentNode.dataset,
		parents: []string{parent},
		volumes: make(map[string]*memVolume),
		kvs:     make(map[string]map[string][]byte),
		graphs:  make(map[string]*graphState),
	}
	parentNode.children = append(parentNode.children, child)
	d := s.datasets[parentNode.dataset]
	d.nodes = append(d.nodes, child)
	return child, nil
}

func (s *MemStore) CreateVolume(nodeID, name string, m voxel.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, found := s.nodes[nodeID]
	if !found {
		return voxel.NotFoundError{Kind: "node", Name: nodeID}
	}
	if _, exists := n.volumes[name]; exists {
		return ExistsError{"volume", nodeID + "/" + name}
	}
	wireShape := m.WireMapping().WireShape(m.Shape())
	n.volumes[name] = &memVolume{
		meta:      m,
		wireShape: wireShape,
		data:      make([]byte, wireShape.Prod()*int64(m.DataType().Bytes())),
	}
	return nil
}

func (s *MemStore) OpenVolume(nodeID, name string) (Volume, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, found := s.nodes[nodeID]
	if !found {
		return nil, voxel.NotFoundError{Kind: "node", Name: nodeID}
	}
	v, found := n.volumes[name]
	if !found {
		return nil, voxel.NotFoundError{Kind: "volume", Name: nodeID + "/" + name}
	}
	return v, nil
}

func (s *MemStore) CreateKeyValue(nodeID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, found := s.nodes[nodeID]
	if !found {
		return voxel.NotFoundError{Kind: "node", Name: nodeID}
	}
	if _, exists := n.kvs[name]; exists {
		return ExistsError{"keyvalue", nodeID + "/" + name}
	}
	n.kvs[name] = make(map[string][]byte)
	return nil
}

func (s *MemStore) PutValue(nodeID, name, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kv, err := s.keyvalue(nodeID, name)
	if err != nil {
		return err
	}
	kv[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemStore) GetValue(nodeID, name, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kv, err := s.keyvalue(nodeID, name)
	if err != nil {
		return nil, err
	}
	value, found := kv[key]
	if !found {
		return nil, voxel.NotFoundError{Kind: "key", Name: key}
	}
	return append([]byte(nil), value...), nil
}

func (s *MemStore) Keys(nodeID, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kv, err := s.keyvalue(nodeID, name)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(kv))
	for key := range kv {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemStore) CreateLabelGraph(nodeID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, found := s.nodes[nodeID]
	if !found {
		return voxel.NotFoundError{Kind: "node", Name: nodeID}
	}
	if _, exists := n.graphs[name]; exists {
		return ExistsError{"labelgraph", nodeID + "/" + name}
	}
	n.graphs[name] = newGraphState()
	return nil
}

func (s *MemStore) UpdateGraph(nodeID, name string, update LabelGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.labelgraph(nodeID, name)
	if err != nil {
		return err
	}
	g.apply(update)
	return nil
}

func (s *MemStore) GetGraph(nodeID, name string) (LabelGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, err := s.labelgraph(nodeID, name)
	if err != nil {
		return LabelGraph{}, err
	}
	return g.graph(), nil
}

func (s *MemStore) labelgraph(nodeID, name string) (*graphState, error) {
	n, found := s.nodes[nodeID]
	if !found {
		return nil, voxel.NotFoundError{Kind: "node", Name: nodeID}
	}
	g, found := n.graphs[name]
	if !found {
		return nil, voxel.NotFoundError{Kind: "labelgraph", Name: nodeID + "/" + name}
	}
	return g, nil
}

func (s *MemStore) keyvalue(nodeID, name string) (map[string][]byte, error) {
	n, found := s.nodes[nodeID]
	if !found {
		return nil, voxel.NotFoundError{Kind: "node", Name: nodeID}
	}
	kv, found := n.kvs[name]
	if !found {
		return nil, voxel.NotFoundError{Kind: "keyvalue", Name: nodeID + "/" + name}
	}
	return kv, nil
}

func (s *MemStore) Close() error {
	return nil
}

// --- Volume interface ---

func (v *memVolume) Metadata() voxel.Metadata {
	return v.meta
}

func (v *memVolume) WireShape() voxel.PointNd {
	return v.wireShape.Duplicate()
}

func (v *memVolume) ReadRegion(wireBox voxel.BoundingBox, w io.Writer, chunkSize int) error {
	if err := checkRegion(wireBox, v.wireShape); err != nil {
		return err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return voxel.RegionSpans(wireBox, v.wireShape, v.meta.DataType().Bytes(), func(span voxel.Span) error {
		return copyChunks(w, &sliceReader{v.data[span.Offset : span.Offset+span.Length]}, span.Length, chunkSize)
	})
}

func (v *memVolume) WriteRegion(wireBox voxel.BoundingBox, r io.Reader, chunkSize int) error {
	if err := checkRegion(wireBox, v.wireShape); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return voxel.RegionSpans(wireBox, v.wireShape, v.meta.DataType().Bytes(), func(span voxel.Span) error {
		return copyChunks(&sliceWriter{v.data[span.Offset : span.Offset+span.Length]}, r, span.Length, chunkSize)
	})
}

// sliceReader/sliceWriter adapt a byte slice to io interfaces without
// aliasing surprises from bytes.Buffer growth.
type sliceReader struct {
	buf []byte
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

type sliceWriter struct {
	buf []byte
}

func (w *sliceWriter) Write(p []byte) (int, error) {
	n := copy(w.buf, p)
	w.buf = w.buf[n:]
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
