package client

import (
	"context"
	"fmt"

	"github.com/voxelio/voxeld/voxel"
)

// SliceTerm selects along one axis of a channel-first volume.  Build
// terms with Span, Idx, All, and Rest.
type SliceTerm struct {
	kind  termKind
	start int32
	stop  int32
	step  int32
	index int32
}

type termKind int

const (
	termSpan termKind = iota
	termIndex
	termAll
	termRest
)

// Span selects the half-open range [start, stop) along one axis.
// Negative endpoints count back from the axis size.
func Span(start, stop int32) SliceTerm {
	return SliceTerm{kind: termSpan, start: start, stop: stop, step: 1}
}

// SpanStep is Span with an explicit step.  Only step 1 is supported;
// other steps are rejected when the spec is resolved.
func SpanStep(start, stop, step int32) SliceTerm {
	return SliceTerm{kind: termSpan, start: start, stop: stop, step: step}
}

// Idx selects a single position along one axis, reducing the rank of
// the result.  Negative indices count back from the axis size.
func Idx(i int32) SliceTerm {
	return SliceTerm{kind: termIndex, index: i}
}

// All selects an axis's full extent.
func All() SliceTerm {
	return SliceTerm{kind: termAll}
}

// Rest stands for as many All terms as needed to cover the remaining
// axes.  At most one Rest may appear in a spec.
func Rest() SliceTerm {
	return SliceTerm{kind: termRest}
}

// resolveAxisEnd converts a possibly-negative endpoint against an axis size.
func resolveAxisEnd(v, size int32) int32 {
	if v < 0 {
		return v + size
	}
	return v
}

// ResolveSlice expands a slice spec against a channel-first volume shape
// into a request offset and shape, plus a flag per axis marking which
// axes a single-index term reduces away.
func ResolveSlice(spec []SliceTerm, volShape voxel.PointNd) (offset, shape voxel.PointNd, reduced []bool, err error) {
	rank := len(volShape)

	// Expand the one allowed Rest into explicit All terms.
	expanded := make([]SliceTerm, 0, rank)
	restAt := -1
	for i, term := range spec {
		if term.kind == termRest {
			if restAt >= 0 {
				return nil, nil, nil, voxel.UnsupportedSliceError{Msg: "a slice spec may contain at most one Rest term"}
			}
			restAt = i
			continue
		}
		expanded = append(expanded, term)
	}
	if len(expanded) > rank {
		return nil, nil, nil, voxel.BoundsError{
			Msg: fmt.Sprintf("slice spec has %d terms but volume is %d-d", len(expanded), rank),
		}
	}
	fill := make([]SliceTerm, rank-len(expanded))
	for i := range fill {
		fill[i] = All()
	}
	if restAt < 0 {
		restAt = len(expanded)
	}
	terms := make([]SliceTerm, 0, rank)
	terms = append(terms, expanded[:restAt]...)
	terms = append(terms, fill...)
	terms = append(terms, expanded[restAt:]...)

	offset = make(voxel.PointNd, rank)
	shape = make(voxel.PointNd, rank)
	reduced = make([]bool, rank)
	for i, term := range terms {
		size := volShape[i]
		switch term.kind {
		case termAll:
			offset[i], shape[i] = 0, size
		case termIndex:
			idx := resolveAxisEnd(term.index, size)
			if idx < 0 || idx >= size {
				return nil, nil, nil, voxel.BoundsError{
					Msg: fmt.Sprintf("index %d out of range for axis %d of size %d", term.index, i, size),
				}
			}
			offset[i], shape[i] = idx, 1
			reduced[i] = true
		case termSpan:
			if term.step != 1 {
				return nil, nil, nil, voxel.UnsupportedSliceError{
					Msg: fmt.Sprintf("step %d on axis %d: only unit steps are supported", term.step, i),
				}
			}
			start := resolveAxisEnd(term.start, size)
			stop := resolveAxisEnd(term.stop, size)
			if start < 0 || stop > size || start >= stop {
				return nil, nil, nil, voxel.BoundsError{
					Msg: fmt.Sprintf("span [%d,%d) out of range for axis %d of size %d", term.start, term.stop, i, size),
				}
			}
			offset[i], shape[i] = start, stop-start
		}
	}
	return offset, shape, reduced, nil
}

// reducedShape drops the axes a resolved spec marked as reduced.
func reducedShape(shape voxel.PointNd, reduced []bool) voxel.PointNd {
	out := make(voxel.PointNd, 0, len(shape))
	for i, n := range shape {
		if !reduced[i] {
			out = append(out, n)
		}
	}
	return out
}

// Slice fetches the region a slice spec selects.  Axes selected by Idx
// are dropped from the returned array's shape.
func (va *VolumeAccessor) Slice(ctx context.Context, spec ...SliceTerm) (*voxel.NDArray, error) {
	offset, shape, reduced, err := ResolveSlice(spec, va.meta.Shape())
	if err != nil {
		return nil, err
	}
	arr, err := va.GetSubvolume(ctx, offset, shape)
	if err != nil {
		return nil, err
	}
	return arr.Reshape(reducedShape(shape, reduced))
}

// PutSlice overwrites the region a slice spec selects with data, whose
// shape must match the spec with reduced axes dropped.  The channel
// axis may not be reduced on writes.
func (va *VolumeAccessor) PutSlice(ctx context.Context, spec []SliceTerm, data *voxel.NDArray) error {
	offset, shape, reduced, err := ResolveSlice(spec, va.meta.Shape())
	if err != nil {
		return err
	}
	if reduced[0] {
		return voxel.UnsupportedSliceError{Msg: "the channel axis may not be a single index on writes"}
	}
	want := reducedShape(shape, reduced)
	if !data.Shape().Equals(want) {
		return voxel.ShapeMismatchError{Want: want, Got: data.Shape()}
	}
	expandedData, err := data.Reshape(shape)
	if err != nil {
		return err
	}
	_, err = va.PostSubvolume(ctx, offset, shape, expandedData)
	return err
}
