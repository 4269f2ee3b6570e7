package voxel

import "testing"

func TestBoundingBoxValidation(t *testing.T) {
	if _, err := NewBoundingBox(PointNd{0, 0}, PointNd{10, 10, 10}); err == nil {
		t.Errorf("Expected error on rank mismatch\n")
	}
	if _, err := NewBoundingBox(PointNd{5, 5}, PointNd{4, 10}); err == nil {
		t.Errorf("Expected error on start > stop\n")
	}
	if _, err := BoxFromOffsetShape(PointNd{-1, 0}, PointNd{5, 5}); err == nil {
		t.Errorf("Expected error on negative offset\n")
	}
	if _, err := BoxFromOffsetShape(PointNd{0, 0}, PointNd{5, -5}); err == nil {
		t.Errorf("Expected error on negative extent\n")
	}

	// Huge offset+shape pairs wrap in int32 arithmetic; the sum must be
	// rejected, not folded into a negative stop that passes CheckWithin.
	if _, err := BoxFromOffsetShape(PointNd{0, 2000000000, 0, 0}, PointNd{1, 2000000000, 1, 1}); err == nil {
		t.Errorf("Expected error on offset+shape overflow\n")
	}
	inverted := BoundingBox{Start: PointNd{0, 10}, Stop: PointNd{1, 5}}
	if err := inverted.CheckWithin(PointNd{1, 100}); err == nil {
		t.Errorf("Expected error on inverted region %s\n", inverted)
	}

	box, err := BoxFromOffsetShape(PointNd{10, 20}, PointNd{5, 6})
	if err != nil {
		t.Fatalf("Couldn't create box: %v\n", err)
	}
	if !box.Size().Equals(PointNd{5, 6}) || box.NumVoxels() != 30 {
		t.Errorf("Bad box size: %s with %d voxels\n", box.Size(), box.NumVoxels())
	}
}

func TestCheckWithin(t *testing.T) {
	shape := PointNd{1, 100, 100, 100}

	box, _ := BoxFromOffsetShape(PointNd{0, 50, 50, 50}, PointNd{1, 50, 50, 50})
	if err := box.CheckWithin(shape); err != nil {
		t.Errorf("Box %s should fit in %s: %v\n", box, shape, err)
	}

	// A region that pokes past the volume stop must be rejected.
	box, _ = BoxFromOffsetShape(PointNd{0, 50, 50, 50}, PointNd{1, 60, 60, 60})
	if err := box.CheckWithin(shape); err == nil {
		t.Errorf("Box %s should not fit in %s\n", box, shape)
	}

	box, _ = BoxFromOffsetShape(PointNd{0, 0, 0}, PointNd{1, 10, 10})
	if err := box.CheckWithin(shape); err == nil {
		t.Errorf("Expected rank mismatch error\n")
	}
}

// naiveRegionBytes extracts a region's row-major serialization one
// element at a time, as ground truth for RegionSpans.
func naiveRegionBytes(buf []byte, box BoundingBox, shape PointNd, elemBytes int32) []byte {
	strides := Strides(shape, elemBytes)
	var out []byte
	coord := box.Start.Duplicate()
	for {
		var offset int64
		for dim := range coord {
			offset += int64(coord[dim]) * strides[dim]
		}
		out = append(out, buf[offset:offset+int64(elemBytes)]...)

		dim := len(coord) - 1
		for ; dim >= 0; dim-- {
			coord[dim]++
			if coord[dim] < box.Stop[dim] {
				break
			}
			coord[dim] = box.Start[dim]
		}
		if dim < 0 {
			return out
		}
	}
}

func TestRegionSpans(t *testing.T) {
	shape := PointNd{2, 5, 7, 3}
	elemBytes := int32(2)
	buf := make([]byte, shape.Prod()*int64(elemBytes))
	for i := range buf {
		buf[i] = byte(i % 251)
	}

	testCases := []struct {
		offset, size PointNd
		numSpans     int
	}{
		{PointNd{0, 0, 0, 0}, PointNd{2, 5, 7, 3}, 1}, // whole volume folds to one span
		{PointNd{0, 1, 0, 0}, PointNd{2, 3, 7, 3}, 2}, // trailing axes full, outer partial
		{PointNd{1, 2, 3, 0}, PointNd{1, 2, 2, 3}, 2}, // last axis full only
		{PointNd{0, 0, 0, 1}, PointNd{2, 5, 7, 1}, 2 * 5 * 7},
		{PointNd{1, 1, 1, 1}, PointNd{1, 2, 3, 1}, 6},
	}
	for _, tc := range testCases {
		box, err := BoxFromOffsetShape(tc.offset, tc.size)
		if err != nil {
			t.Fatalf("Couldn't create box for offset %s, size %s: %v\n", tc.offset, tc.size, err)
		}
		var got []byte
		var numSpans int
		var lastEnd int64 = -1
		err = RegionSpans(box, shape, elemBytes, func(span Span) error {
			if span.Offset <= lastEnd {
				t.Errorf("Spans of %s out of order or overlapping at offset %d\n", box, span.Offset)
			}
			lastEnd = span.Offset + span.Length - 1
			numSpans++
			got = append(got, buf[span.Offset:span.Offset+span.Length]...)
			return nil
		})
		if err != nil {
			t.Fatalf("RegionSpans failed for %s: %v\n", box, err)
		}
		if numSpans != tc.numSpans {
			t.Errorf("Expected %d spans for %s, got %d\n", tc.numSpans, box, numSpans)
		}
		want := naiveRegionBytes(buf, box, shape, elemBytes)
		if len(got) != len(want) {
			t.Fatalf("Region %s serialized to %d bytes, expected %d\n", box, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("Region %s serialization differs at byte %d\n", box, i)
			}
		}
	}
}

func TestRegionSpansOutOfBounds(t *testing.T) {
	shape := PointNd{4, 4}
	box, _ := BoxFromOffsetShape(PointNd{2, 2}, PointNd{4, 4})
	err := RegionSpans(box, shape, 1, func(span Span) error { return nil })
	if err == nil {
		t.Errorf("Expected bounds error for box %s in shape %s\n", box, shape)
	}
}
