/*
	Package storage defines the capability surface the mock server engine
	needs from a backing store: open volumes, read and write bounded
	regions, and list the dataset/node/volume hierarchy.  Keeping protocol
	logic behind this interface lets the engine be tested against an
	in-memory store and deployed against a persistent one.
*/
package storage

import (
	"fmt"
	"io"

	"github.com/voxelio/voxeld/voxel"
)

// NodeInfo describes one versioned node within a dataset's DAG.
type NodeInfo struct {
	Parents     []string `json:"Parents"`
	Children    []string `json:"Children"`
	Volumes     []string `json:"Volumes"`
	KeyValues   []string `json:"KeyValues"`
	LabelGraphs []string `json:"LabelGraphs"`
}

// DatasetInfo describes a dataset: its root node and node hierarchy.
type DatasetInfo struct {
	Root  string              `json:"Root"`
	Nodes map[string]NodeInfo `json:"Nodes"`
}

// Volume is an open handle on one array-valued volume.  Regions are
// addressed in wire axis order, matching the stored payload layout.
type Volume interface {
	// Metadata returns the volume's immutable description.
	Metadata() voxel.Metadata

	// WireShape returns the volume extents in wire axis order.
	WireShape() voxel.PointNd

	// ReadRegion streams the region's wire-order bytes to w in chunks of
	// at most chunkSize bytes.
	ReadRegion(wireBox voxel.BoundingBox, w io.Writer, chunkSize int) error

	// WriteRegion overwrites the region from r, reading exactly the
	// number of bytes the region implies in chunks of at most chunkSize.
	// A failed write leaves the region in an undefined partial state.
	WriteRegion(wireBox voxel.BoundingBox, r io.Reader, chunkSize int) error
}

// Store is the full backing-store capability used by the server engine.
// Datasets own an append-only set of nodes keyed by UUID; nodes own named
// volumes, keyvalue instances, and label graphs.
type Store interface {
	// Datasets maps dataset name to root node UUID.
	Datasets() (map[string]string, error)

	// DatasetsInfo returns full per-dataset metadata including the node
	// hierarchy.
	DatasetsInfo() (map[string]DatasetInfo, error)

	// CreateDataset makes a new dataset with a fresh root node and
	// returns the root node UUID.
	CreateDataset(name string) (root string, err error)

	// CreateChildNode appends a new node under the given parent and
	// returns its UUID.
	CreateChildNode(parent string) (uuid string, err error)

	// CreateVolume adds a named volume under a node.  The volume extent
	// is fixed at creation; its payload starts zeroed.
	CreateVolume(uuid, name string, m voxel.Metadata) error

	// OpenVolume returns a handle for region I/O on an existing volume.
	OpenVolume(uuid, name string) (Volume, error)

	// CreateKeyValue adds a named keyvalue instance under a node.
	CreateKeyValue(uuid, name string) error

	// PutValue stores a value under a key of a keyvalue instance.
	PutValue(uuid, name, key string, value []byte) error

	// GetValue retrieves the value under a key of a keyvalue instance.
	GetValue(uuid, name, key string) ([]byte, error)

	// Keys lists all keys of a keyvalue instance in sorted order.
	Keys(uuid, name string) ([]string, error)

	// CreateLabelGraph adds a named, initially empty label graph
	// instance under a node.
	CreateLabelGraph(uuid, name string) error

	// UpdateGraph increments vertex and edge weights of a label graph
	// from the update, creating elements it has not seen.
	UpdateGraph(uuid, name string, update LabelGraph) error

	// GetGraph returns a label graph's full state with vertices and
	// edges in sorted order.
	GetGraph(uuid, name string) (LabelGraph, error)

	// Close releases all resources held by the store.
	Close() error
}

// ExistsError indicates an attempt to create something that already exists.
type ExistsError struct {
	Kind string
	Name string
}

func (e ExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Name)
}

// checkRegion validates a wire-order region against a volume's extents.
func checkRegion(wireBox voxel.BoundingBox, wireShape voxel.PointNd) error {
	if err := wireBox.CheckWithin(wireShape); err != nil {
		return err
	}
	for dim, start := range wireBox.Start {
		if start >= wireBox.Stop[dim] {
			return voxel.BoundsError{Msg: fmt.Sprintf("region %s has no extent along dimension %d",
				wireBox, dim)}
		}
	}
	return nil
}

// copyChunks moves exactly length bytes from r to w in chunks of at most
// chunkSize, reporting a truncated stream as TruncatedPayloadError.
func copyChunks(w io.Writer, r io.Reader, length int64, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	var moved int64
	buf := make([]byte, chunkSize)
	for moved < length {
		next := length - moved
		if next > int64(chunkSize) {
			next = int64(chunkSize)
		}
		n, err := io.ReadFull(r, buf[:next])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return voxel.TruncatedPayloadError{Want: length, Got: moved + int64(n)}
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
		moved += int64(n)
	}
	return nil
}
