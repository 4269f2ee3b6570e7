package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/voxelio/voxeld/voxel"
)

func sequentialArray(dtype voxel.DataType, shape voxel.PointNd) *voxel.NDArray {
	arr := voxel.NewNDArray(dtype, shape)
	buf := arr.Bytes()
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	return arr
}

func TestRequestPaths(t *testing.T) {
	c := NewCodec(voxel.T_uint8, 0)
	box, _ := voxel.BoxFromOffsetShape(voxel.PointNd{0, 10, 20, 30}, voxel.PointNd{4, 50, 60, 70})

	get := c.GetRequest("abc123", "grayscale", box)
	wantPath := "/api/node/abc123/grayscale/raw/0_1_2/50_60_70/10_20_30"
	if get.Method != "GET" || get.Path != wantPath {
		t.Errorf("Bad GET request %+v, expected path %q\n", get, wantPath)
	}

	post := c.PostRequest("abc123", "grayscale", box)
	if post.Method != "POST" || post.Path != wantPath {
		t.Errorf("Bad POST request %+v\n", post)
	}
	if post.ContentLength != 4*50*60*70 {
		t.Errorf("Bad content length %d\n", post.ContentLength)
	}
	if post.ContentType != VolumeMimetype {
		t.Errorf("Bad content type %q\n", post.ContentType)
	}
}

func TestRoundTripAcrossChunkSizes(t *testing.T) {
	shape := voxel.PointNd{2, 3, 4, 5}
	arr := sequentialArray(voxel.T_uint16, shape)
	payloadLen := int(arr.NumElements()) * 2

	// Payload below, at, and well above the chunk size.
	for _, chunkSize := range []int{payloadLen + 1, payloadLen, 7} {
		c := NewCodec(voxel.T_uint16, chunkSize)
		reader := c.Encode(arr)
		if reader.Len() != int64(payloadLen) {
			t.Fatalf("Encode reported length %d, expected %d\n", reader.Len(), payloadLen)
		}

		// No Read may return more than the chunk size.
		var streamed bytes.Buffer
		buf := make([]byte, payloadLen)
		for {
			n, err := reader.Read(buf)
			if n > chunkSize {
				t.Fatalf("Read returned %d bytes with chunk size %d\n", n, chunkSize)
			}
			streamed.Write(buf[:n])
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Encode stream failed: %v\n", err)
			}
		}
		if streamed.Len() != payloadLen {
			t.Fatalf("Streamed %d bytes, expected %d\n", streamed.Len(), payloadLen)
		}

		back, err := c.Decode(&streamed, shape)
		if err != nil {
			t.Fatalf("Couldn't decode with chunk size %d: %v\n", chunkSize, err)
		}
		if !back.Equals(arr) {
			t.Fatalf("Round trip with chunk size %d altered the payload\n", chunkSize)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	shape := voxel.PointNd{1, 10, 10}
	c := NewCodec(voxel.T_uint8, 16)
	short := make([]byte, 99)
	_, err := c.Decode(bytes.NewReader(short), shape)
	var truncated voxel.TruncatedPayloadError
	if !errors.As(err, &truncated) {
		t.Fatalf("Expected TruncatedPayloadError, got %v\n", err)
	}
	if truncated.Want != 100 || truncated.Got != 99 {
		t.Errorf("Bad truncation counts: %+v\n", truncated)
	}
}

func TestDecodeOversized(t *testing.T) {
	shape := voxel.PointNd{1, 10, 10}
	c := NewCodec(voxel.T_uint8, 16)
	long := make([]byte, 101)
	_, err := c.Decode(bytes.NewReader(long), shape)
	var oversized voxel.OversizedPayloadError
	if !errors.As(err, &oversized) {
		t.Fatalf("Expected OversizedPayloadError, got %v\n", err)
	}
}

func TestDecodeEmptyStream(t *testing.T) {
	c := NewCodec(voxel.T_uint8, 16)
	_, err := c.Decode(bytes.NewReader(nil), voxel.PointNd{1, 2, 2})
	var truncated voxel.TruncatedPayloadError
	if !errors.As(err, &truncated) {
		t.Fatalf("Expected TruncatedPayloadError on empty stream, got %v\n", err)
	}
}
