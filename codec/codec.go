/*
	Package codec translates between in-memory N-d arrays and the raw
	binary bodies of cutout requests.  Transfers are chunked so memory
	use during streaming is bounded by the configured chunk size, not the
	payload size.
*/
package codec

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/voxelio/voxeld/voxel"
)

const (
	// DefaultChunkSize bounds how many payload bytes are moved per read
	// or write during streaming.
	DefaultChunkSize = 4 * 1024 * 1024

	// VolumeMimetype identifies raw binary volume payloads.
	VolumeMimetype = "application/octet-stream"
)

// Codec encodes and decodes raw cutout payloads for a fixed element type.
type Codec struct {
	dtype     voxel.DataType
	chunkSize int
}

// NewCodec returns a codec for the given element type.  A non-positive
// chunkSize selects DefaultChunkSize.
func NewCodec(dtype voxel.DataType, chunkSize int) *Codec {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Codec{dtype, chunkSize}
}

// ChunkSize returns the streaming chunk bound in bytes.
func (c *Codec) ChunkSize() int {
	return c.chunkSize
}

// Request describes a cutout HTTP exchange: the method, the REST path,
// and for writes the payload framing.
type Request struct {
	Method        string
	Path          string
	ContentType   string
	ContentLength int64
}

// rawPath formats the REST path for a cutout.  Coordinates are in the
// canonical non-channel axis order; the channel axis is implicit (every
// transfer carries all channels) and is dropped from the path.
func rawPath(uuid, name string, box voxel.BoundingBox) string {
	offset := box.Start[1:]
	shape := box.Stop[1:].Sub(box.Start[1:])
	dims := make([]string, len(offset))
	for i := range dims {
		dims[i] = strconv.Itoa(i)
	}
	return fmt.Sprintf("/api/node/%s/%s/raw/%s/%s/%s",
		uuid, name, strings.Join(dims, "_"), shape.Join("_"), offset.Join("_"))
}

// GetRequest builds the descriptor for reading the given canonical
// channel-first box from a volume.
func (c *Codec) GetRequest(uuid, name string, box voxel.BoundingBox) Request {
	return Request{
		Method: "GET",
		Path:   rawPath(uuid, name, box),
	}
}

// PostRequest builds the descriptor for overwriting the given canonical
// channel-first box of a volume.
func (c *Codec) PostRequest(uuid, name string, box voxel.BoundingBox) Request {
	return Request{
		Method:        "POST",
		Path:          rawPath(uuid, name, box),
		ContentType:   VolumeMimetype,
		ContentLength: box.NumVoxels() * int64(c.dtype.Bytes()),
	}
}

// Decode reads a raw payload of the given shape from the stream into a
// freshly allocated array, moving at most ChunkSize bytes per read.  The
// stream must hold exactly prod(shape) elements: fewer bytes fail with
// TruncatedPayloadError, surplus bytes with OversizedPayloadError.
func (c *Codec) Decode(stream io.Reader, shape voxel.PointNd) (*voxel.NDArray, error) {
	arr := voxel.NewNDArray(c.dtype, shape)
	buf := arr.Bytes()
	want := int64(len(buf))

	var got int64
	for got < want {
		next := want - got
		if next > int64(c.chunkSize) {
			next = int64(c.chunkSize)
		}
		n, err := io.ReadFull(stream, buf[got:got+next])
		got += int64(n)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, voxel.TruncatedPayloadError{Want: want, Got: got}
		}
		if err != nil {
			return nil, err
		}
	}

	// The stream must be exactly consumed; probe for stray bytes.
	var probe [1]byte
	if n, _ := stream.Read(probe[:]); n > 0 {
		return nil, voxel.OversizedPayloadError{Want: want}
	}
	return arr, nil
}

// Encode returns a reader over the array's payload that yields at most
// ChunkSize bytes per read, so the full serialization never needs to be
// copied into a single send buffer.
func (c *Codec) Encode(arr *voxel.NDArray) *ChunkReader {
	return &ChunkReader{buf: arr.Bytes(), chunkSize: c.chunkSize}
}

// ChunkReader streams a flat buffer in bounded chunks.
type ChunkReader struct {
	buf       []byte
	off       int
	chunkSize int
}

// Len returns the total payload size in bytes.
func (r *ChunkReader) Len() int64 {
	return int64(len(r.buf))
}

// Read implements io.Reader, returning at most the codec's chunk size.
func (r *ChunkReader) Read(p []byte) (int, error) {
	if r.off >= len(r.buf) {
		return 0, io.EOF
	}
	n := len(r.buf) - r.off
	if n > r.chunkSize {
		n = r.chunkSize
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.buf[r.off:r.off+n])
	r.off += n
	return n, nil
}
