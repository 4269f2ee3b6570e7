/*
	This file handles axis-aligned bounding boxes within a volume and the
	decomposition of a box into contiguous byte runs of a row-major buffer.
*/

package voxel

import (
	"fmt"
	"math"
)

// BoundingBox is a half-open axis-aligned region [Start, Stop) with one
// coordinate pair per axis.
type BoundingBox struct {
	Start PointNd
	Stop  PointNd
}

// NewBoundingBox returns a box after checking rank agreement and that
// start <= stop along every axis.
func NewBoundingBox(start, stop PointNd) (BoundingBox, error) {
	if len(start) != len(stop) {
		return BoundingBox{}, BoundsError{fmt.Sprintf("start %s and stop %s have different dimensionality",
			start, stop)}
	}
	for dim, value := range start {
		if value > stop[dim] {
			return BoundingBox{}, BoundsError{fmt.Sprintf("start %s exceeds stop %s along dimension %d",
				start, stop, dim)}
		}
	}
	return BoundingBox{start.Duplicate(), stop.Duplicate()}, nil
}

// BoxFromOffsetShape returns the box [offset, offset+shape).
func BoxFromOffsetShape(offset, shape PointNd) (BoundingBox, error) {
	if len(offset) != len(shape) {
		return BoundingBox{}, BoundsError{fmt.Sprintf("offset %s and shape %s have different dimensionality",
			offset, shape)}
	}
	stop := make(PointNd, len(offset))
	for dim, extent := range shape {
		if extent < 0 {
			return BoundingBox{}, BoundsError{fmt.Sprintf("negative extent in shape %s", shape)}
		}
		if offset[dim] < 0 {
			return BoundingBox{}, BoundsError{fmt.Sprintf("negative coordinate in offset %s", offset)}
		}
		// Sum in int64 so huge offset+shape pairs cannot wrap to a
		// small or negative stop coordinate.
		sum := int64(offset[dim]) + int64(extent)
		if sum > math.MaxInt32 {
			return BoundingBox{}, BoundsError{fmt.Sprintf("offset %s plus shape %s overflows along dimension %d",
				offset, shape, dim)}
		}
		stop[dim] = int32(sum)
	}
	return BoundingBox{offset.Duplicate(), stop}, nil
}

// NumDims returns the dimensionality of the box.
func (box BoundingBox) NumDims() uint8 {
	return uint8(len(box.Start))
}

// Size returns the per-axis extents of the box.
func (box BoundingBox) Size() PointNd {
	return box.Stop.Sub(box.Start)
}

// NumVoxels returns the number of voxels within the box.
func (box BoundingBox) NumVoxels() int64 {
	return box.Size().Prod()
}

// Equals returns true if the two boxes span the same region.
func (box BoundingBox) Equals(box2 BoundingBox) bool {
	return box.Start.Equals(box2.Start) && box.Stop.Equals(box2.Stop)
}

func (box BoundingBox) String() string {
	return fmt.Sprintf("[%s, %s)", box.Start, box.Stop)
}

// CheckWithin verifies the box lies inside a volume of the given shape,
// returning a BoundsError otherwise.
func (box BoundingBox) CheckWithin(shape PointNd) error {
	if len(box.Start) != len(shape) {
		return BoundsError{fmt.Sprintf("region %s has %d dimensions but volume shape %s has %d",
			box, len(box.Start), shape, len(shape))}
	}
	for dim, value := range box.Start {
		if value < 0 {
			return BoundsError{fmt.Sprintf("region %s starts below zero along dimension %d", box, dim)}
		}
		if box.Stop[dim] < value {
			return BoundsError{fmt.Sprintf("region %s is inverted along dimension %d", box, dim)}
		}
		if box.Stop[dim] > shape[dim] {
			return BoundsError{fmt.Sprintf("region %s exceeds volume shape %s along dimension %d",
				box, shape, dim)}
		}
	}
	return nil
}

// Span is a contiguous byte run within a row-major flat buffer.
type Span struct {
	Offset int64
	Length int64
}

// RegionSpans calls f for every contiguous byte run of the given box
// within a row-major buffer of the given shape, in increasing offset
// order.  Runs are merged across trailing axes that the box covers in
// full, so a box spanning the whole volume yields a single span.  The
// concatenation of all spans equals the region's row-major serialization.
func RegionSpans(box BoundingBox, shape PointNd, bytesPerElement int32, f func(Span) error) error {
	if err := box.CheckWithin(shape); err != nil {
		return err
	}
	size := box.Size()
	if size.Prod() == 0 {
		return nil
	}

	// Row-major element strides, last axis varies fastest.
	ndims := len(shape)
	strides := make([]int64, ndims)
	stride := int64(1)
	for dim := ndims - 1; dim >= 0; dim-- {
		strides[dim] = stride
		stride *= int64(shape[dim])
	}

	// Trailing axes fully covered by the box fold into one contiguous run.
	contig := ndims // first axis of the folded suffix
	runLen := int64(1)
	for contig > 0 && box.Start[contig-1] == 0 && box.Stop[contig-1] == shape[contig-1] {
		contig--
		runLen *= int64(size[contig])
	}
	if contig > 0 {
		// The first partially covered axis (from the right) extends the run.
		contig--
		runLen *= int64(size[contig])
	}

	// Walk an odometer over the outer axes [0, contig).
	coord := box.Start.Duplicate()
	for {
		offset := int64(0)
		for dim := 0; dim < contig; dim++ {
			offset += int64(coord[dim]) * strides[dim]
		}
		offset += int64(box.Start[contig]) * strides[contig]
		if err := f(Span{offset * int64(bytesPerElement), runLen * int64(bytesPerElement)}); err != nil {
			return err
		}

		dim := contig - 1
		for ; dim >= 0; dim-- {
			coord[dim]++
			if coord[dim] < box.Stop[dim] {
				break
			}
			coord[dim] = box.Start[dim]
		}
		if dim < 0 {
			return nil
		}
	}
}
