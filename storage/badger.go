/*
	Badger-backed Store implementation.  The hierarchy is kept as small
	JSON records and each volume payload is split into fixed-size pages,
	so region reads and writes touch only the pages a request intersects.
	Pages are snappy-compressed on disk and fronted by a freecache read
	cache.  Pages never written read back as zeros.
*/

package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/coocood/freecache"
	"github.com/dgraph-io/badger/v3"
	"github.com/golang/snappy"

	"github.com/voxelio/voxeld/voxel"
)

const (
	// PageSize is the fixed byte extent of one stored payload page.
	PageSize = 64 * 1024

	// DefaultCacheBytes is the default size of the page read cache.
	// freecache caps entries at 1/1024 of the cache size, so this must
	// stay well above 1024 * PageSize for pages to be cacheable.
	DefaultCacheBytes = 128 * 1024 * 1024
)

// Key prefixes.  All keys are "<prefix><path>" with path elements joined
// by '/'; page keys append a fixed-width big-endian page number so pages
// iterate in order.
const (
	datasetPrefix = "d/"
	nodePrefix    = "n/"
	volMetaPrefix = "vm/"
	volDataPrefix = "vd/"
	kvPrefix      = "kv/"
	graphPrefix   = "lg/"
)

// BadgerConfig holds the store's tunables from the TOML config.
type BadgerConfig struct {
	Path       string
	CacheBytes int `toml:"cache_bytes"`
}

// BadgerStore is a persistent Store over a Badger key-value database.
type BadgerStore struct {
	db    *badger.DB
	cache *freecache.Cache

	// guards read-modify-write cycles on hierarchy records
	mu sync.Mutex
}

// OpenBadgerStore opens (creating if necessary) a store at the given path.
func OpenBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open badger store at %q: %v", config.Path, err)
	}
	cacheBytes := config.CacheBytes
	if cacheBytes <= 0 {
		cacheBytes = DefaultCacheBytes
	}
	return &BadgerStore{
		db:    db,
		cache: freecache.NewCache(cacheBytes),
	}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// --- hierarchy records ---

type datasetRecord struct {
	Root  string
	Nodes []string // append-only, insertion order
}

type nodeRecord struct {
	Dataset     string
	Parents     []string
	Children    []string
	Volumes     []string
	KeyValues   []string
	LabelGraphs []string
}

type volumeRecord struct {
	Metadata voxel.Metadata
}

func (s *BadgerStore) getJSON(txn *badger.Txn, key string, out interface{}) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(val, out)
}

func (s *BadgerStore) setJSON(txn *badger.Txn, key string, in interface{}) error {
	val, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), val)
}

// --- Store interface ---

func (s *BadgerStore) Datasets() (map[string]string, error) {
	listing := make(map[string]string)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(datasetPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := string(it.Item().Key()[len(prefix):])
			var d datasetRecord
			if err := s.getJSON(txn, datasetPrefix+name, &d); err != nil {
				return err
			}
			listing[name] = d.Root
		}
		return nil
	})
	return listing, err
}

func (s *BadgerStore) DatasetsInfo() (map[string]DatasetInfo, error) {
	info := make(map[string]DatasetInfo)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(datasetPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			name := string(it.Item().Key()[len(prefix):])
			var d datasetRecord
			if err := s.getJSON(txn, datasetPrefix+name, &d); err != nil {
				return err
			}
			dsInfo := DatasetInfo{Root: d.Root, Nodes: make(map[string]NodeInfo, len(d.Nodes))}
			for _, nodeID := range d.Nodes {
				var n nodeRecord
				if err := s.getJSON(txn, nodePrefix+nodeID, &n); err != nil {
					return err
				}
				dsInfo.Nodes[nodeID] = NodeInfo{
					Parents:     n.Parents,
					Children:    n.Children,
					Volumes:     n.Volumes,
					KeyValues:   n.KeyValues,
					LabelGraphs: n.LabelGraphs,
				}
			}
			info[name] = dsInfo
		}
		return nil
	})
	return info, err
}

func (s *BadgerStore) CreateDataset(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := newNodeUUID()
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(datasetPrefix + name)); err != badger.ErrKeyNotFound {
			if err != nil {
				return err
			}
			return ExistsError{"dataset", name}
		}
		if err := s.setJSON(txn, datasetPrefix+name, datasetRecord{Root: root, Nodes: []string{root}}); err != nil {
			return err
		}
		return s.setJSON(txn, nodePrefix+root, nodeRecord{Dataset: name})
	})
	if err != nil {
		return "", err
	}
	return root, nil
}

func (s *BadgerStore) CreateChildNode(parent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	child := newNodeUUID()
	err := s.db.Update(func(txn *badger.Txn) error {
		var parentNode nodeRecord
		if err := s.getJSON(txn, nodePrefix+parent, &parentNode); err != nil {
			if err == badger.ErrKeyNotFound {
				return voxel.NotFoundError{Kind: "node", Name: parent}
			}
			return err
		}
		var d datasetRecord
		if err := s.getJSON(txn, datasetPrefix+parentNode.Dataset, &d); err != nil {
			return err
		}
		parentNode.Children = append(parentNode.Children, child)
		d.Nodes = append(d.Nodes, child)
		if err := s.setJSON(txn, nodePrefix+parent, parentNode); err != nil {
			return err
		}
		if err := s.setJSON(txn, datasetPrefix+parentNode.Dataset, d); err != nil {
			return err
		}
		return s.setJSON(txn, nodePrefix+child, nodeRecord{
			Dataset: parentNode.Dataset,
			Parents: []string{parent},
		})
	})
	if err != nil {
		return "", err
	}
	return child, nil
}

func (s *BadgerStore) CreateVolume(nodeID, name string, m voxel.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		var n nodeRecord
		if err := s.getJSON(txn, nodePrefix+nodeID, &n); err != nil {
			if err == badger.ErrKeyNotFound {
				return voxel.NotFoundError{Kind: "node", Name: nodeID}
			}
			return err
		}
		metaKey := volMetaPrefix + nodeID + "/" + name
		if _, err := txn.Get([]byte(metaKey)); err != badger.ErrKeyNotFound {
			if err != nil {
				return err
			}
			return ExistsError{"volume", nodeID + "/" + name}
		}
		n.Volumes = append(n.Volumes, name)
		if err := s.setJSON(txn, nodePrefix+nodeID, n); err != nil {
			return err
		}
		return s.setJSON(txn, metaKey, volumeRecord{Metadata: m})
	})
}

func (s *BadgerStore) OpenVolume(nodeID, name string) (Volume, error) {
	var rec volumeRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.getJSON(txn, volMetaPrefix+nodeID+"/"+name, &rec)
	})
	if err == badger.ErrKeyNotFound {
		// Distinguish a missing node from a missing volume.
		nodeErr := s.db.View(func(txn *badger.Txn) error {
			var n nodeRecord
			return s.getJSON(txn, nodePrefix+nodeID, &n)
		})
		if nodeErr == badger.ErrKeyNotFound {
			return nil, voxel.NotFoundError{Kind: "node", Name: nodeID}
		}
		return nil, voxel.NotFoundError{Kind: "volume", Name: nodeID + "/" + name}
	}
	if err != nil {
		return nil, err
	}
	m := rec.Metadata
	return &badgerVolume{
		store:     s,
		dataKey:   volDataPrefix + nodeID + "/" + name + "/",
		meta:      m,
		wireShape: m.WireMapping().WireShape(m.Shape()),
	}, nil
}

func (s *BadgerStore) CreateKeyValue(nodeID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		var n nodeRecord
		if err := s.getJSON(txn, nodePrefix+nodeID, &n); err != nil {
			if err == badger.ErrKeyNotFound {
				return voxel.NotFoundError{Kind: "node", Name: nodeID}
			}
			return err
		}
		for _, existing := range n.KeyValues {
			if existing == name {
				return ExistsError{"keyvalue", nodeID + "/" + name}
			}
		}
		n.KeyValues = append(n.KeyValues, name)
		return s.setJSON(txn, nodePrefix+nodeID, n)
	})
}

func (s *BadgerStore) checkKeyValue(txn *badger.Txn, nodeID, name string) error {
	var n nodeRecord
	if err := s.getJSON(txn, nodePrefix+nodeID, &n); err != nil {
		if err == badger.ErrKeyNotFound {
			return voxel.NotFoundError{Kind: "node", Name: nodeID}
		}
		return err
	}
	for _, existing := range n.KeyValues {
		if existing == name {
			return nil
		}
	}
	return voxel.NotFoundError{Kind: "keyvalue", Name: nodeID + "/" + name}
}

func (s *BadgerStore) PutValue(nodeID, name, key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.checkKeyValue(txn, nodeID, name); err != nil {
			return err
		}
		return txn.Set([]byte(kvPrefix+nodeID+"/"+name+"/"+key), value)
	})
}

func (s *BadgerStore) GetValue(nodeID, name, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		if err := s.checkKeyValue(txn, nodeID, name); err != nil {
			return err
		}
		item, err := txn.Get([]byte(kvPrefix + nodeID + "/" + name + "/" + key))
		if err == badger.ErrKeyNotFound {
			return voxel.NotFoundError{Kind: "key", Name: key}
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (s *BadgerStore) Keys(nodeID, name string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		if err := s.checkKeyValue(txn, nodeID, name); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(kvPrefix + nodeID + "/" + name + "/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if keys == nil {
		keys = []string{}
	}
	return keys, err
}

func (s *BadgerStore) CreateLabelGraph(nodeID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		var n nodeRecord
		if err := s.getJSON(txn, nodePrefix+nodeID, &n); err != nil {
			if err == badger.ErrKeyNotFound {
				return voxel.NotFoundError{Kind: "node", Name: nodeID}
			}
			return err
		}
		for _, existing := range n.LabelGraphs {
			if existing == name {
				return ExistsError{"labelgraph", nodeID + "/" + name}
			}
		}
		n.LabelGraphs = append(n.LabelGraphs, name)
		if err := s.setJSON(txn, nodePrefix+nodeID, n); err != nil {
			return err
		}
		return s.setJSON(txn, graphPrefix+nodeID+"/"+name, LabelGraph{})
	})
}

func (s *BadgerStore) UpdateGraph(nodeID, name string, update LabelGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		g, err := s.getGraph(txn, nodeID, name)
		if err != nil {
			return err
		}
		state := stateFromGraph(g)
		state.apply(update)
		return s.setJSON(txn, graphPrefix+nodeID+"/"+name, state.graph())
	})
}

func (s *BadgerStore) GetGraph(nodeID, name string) (LabelGraph, error) {
	var g LabelGraph
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		g, err = s.getGraph(txn, nodeID, name)
		return err
	})
	if err != nil {
		return LabelGraph{}, err
	}
	// Normalize so empty graphs come back with non-nil slices.
	return stateFromGraph(g).graph(), nil
}

func (s *BadgerStore) getGraph(txn *badger.Txn, nodeID, name string) (LabelGraph, error) {
	var g LabelGraph
	err := s.getJSON(txn, graphPrefix+nodeID+"/"+name, &g)
	if err == badger.ErrKeyNotFound {
		var n nodeRecord
		if nodeErr := s.getJSON(txn, nodePrefix+nodeID, &n); nodeErr == badger.ErrKeyNotFound {
			return g, voxel.NotFoundError{Kind: "node", Name: nodeID}
		}
		return g, voxel.NotFoundError{Kind: "labelgraph", Name: nodeID + "/" + name}
	}
	return g, err
}

// --- Volume interface ---

type badgerVolume struct {
	store     *BadgerStore
	dataKey   string // key prefix for payload pages
	meta      voxel.Metadata
	wireShape voxel.PointNd
}

func (v *badgerVolume) Metadata() voxel.Metadata {
	return v.meta
}

func (v *badgerVolume) WireShape() voxel.PointNd {
	return v.wireShape.Duplicate()
}

func (v *badgerVolume) pageKey(page int64) []byte {
	key := make([]byte, len(v.dataKey)+8)
	copy(key, v.dataKey)
	binary.BigEndian.PutUint64(key[len(v.dataKey):], uint64(page))
	return key
}

// readPage returns the decompressed page or nil for a never-written page.
func (v *badgerVolume) readPage(page int64) ([]byte, error) {
	key := v.pageKey(page)
	if cached, err := v.store.cache.Get(key); err == nil {
		return cached, nil
	}
	var plain []byte
	err := v.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		compressed, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		plain, err = snappy.Decode(nil, compressed)
		return err
	})
	if err != nil {
		return nil, err
	}
	if plain != nil {
		v.store.cache.Set(key, plain, 0)
	}
	return plain, nil
}

// writePage compresses and stores a full page, dropping any cached copy.
func (v *badgerVolume) writePage(page int64, plain []byte) error {
	key := v.pageKey(page)
	v.store.cache.Del(key)
	return v.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, snappy.Encode(nil, plain))
	})
}

var zeroPage [PageSize]byte

func (v *badgerVolume) ReadRegion(wireBox voxel.BoundingBox, w io.Writer, chunkSize int) error {
	if err := checkRegion(wireBox, v.wireShape); err != nil {
		return err
	}
	return voxel.RegionSpans(wireBox, v.wireShape, v.meta.DataType().Bytes(), func(span voxel.Span) error {
		remaining := span.Length
		offset := span.Offset
		for remaining > 0 {
			page := offset / PageSize
			pageOff := offset % PageSize
			n := int64(PageSize) - pageOff
			if n > remaining {
				n = remaining
			}
			plain, err := v.readPage(page)
			if err != nil {
				return err
			}
			var chunk []byte
			if plain == nil {
				chunk = zeroPage[pageOff : pageOff+n]
			} else {
				chunk = plain[pageOff : pageOff+n]
			}
			if err := copyChunks(w, &sliceReader{chunk}, n, chunkSize); err != nil {
				return err
			}
			offset += n
			remaining -= n
		}
		return nil
	})
}

func (v *badgerVolume) WriteRegion(wireBox voxel.BoundingBox, r io.Reader, chunkSize int) error {
	if err := checkRegion(wireBox, v.wireShape); err != nil {
		return err
	}
	totalBytes := v.wireShape.Prod() * int64(v.meta.DataType().Bytes())
	return voxel.RegionSpans(wireBox, v.wireShape, v.meta.DataType().Bytes(), func(span voxel.Span) error {
		remaining := span.Length
		offset := span.Offset
		for remaining > 0 {
			page := offset / PageSize
			pageOff := offset % PageSize
			n := int64(PageSize) - pageOff
			if n > remaining {
				n = remaining
			}
			// Trailing page of the volume may be short.
			pageLen := int64(PageSize)
			if (page+1)*PageSize > totalBytes {
				pageLen = totalBytes - page*PageSize
			}
			plain, err := v.readPage(page)
			if err != nil {
				return err
			}
			if plain == nil {
				plain = make([]byte, pageLen)
			}
			if err := copyChunks(&sliceWriter{plain[pageOff : pageOff+n]}, r, n, chunkSize); err != nil {
				return err
			}
			if err := v.writePage(page, plain); err != nil {
				return err
			}
			offset += n
			remaining -= n
		}
		return nil
	})
}
