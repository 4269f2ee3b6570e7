/*
	This file handles the mapping between the canonical client-facing axis
	order (channel first, e.g. "cxyz") and the wire/storage axis order.
	The wire payload is row-major in reversed axis order ("zyxc"), which
	is byte-identical to a fortran-order channel-first buffer.
*/

package voxel

import "strings"

// ChannelLabel tags the mandatory channel axis.
const ChannelLabel = 'c'

// spatialLabels is the fixed set of non-channel axis tags.
const spatialLabels = "xyzt"

// ValidAxisLabels checks that a label string is channel-first with unique
// labels drawn from the fixed tag set.
func ValidAxisLabels(labels string) error {
	if len(labels) == 0 || labels[0] != ChannelLabel {
		return SchemaError{"axis labels must begin with the channel axis 'c'"}
	}
	seen := map[rune]bool{ChannelLabel: true}
	for _, label := range labels[1:] {
		if !strings.ContainsRune(spatialLabels, label) {
			return SchemaError{"axis label " + string(label) + " not in " + spatialLabels}
		}
		if seen[label] {
			return SchemaError{"duplicate axis label " + string(label)}
		}
		seen[label] = true
	}
	return nil
}

// AxisMapping is a bijection between a canonical axis order and a wire
// axis order over the same label set.  Applying it and its inverse is the
// identity.
type AxisMapping struct {
	canonical string
	wire      string

	// toCanonical[wireDim] = canonicalDim, toWire is its inverse.
	toCanonical []int
	toWire      []int
}

// NewAxisMapping builds a mapping from a canonical to a wire label order.
// The two label strings must be permutations of each other.
func NewAxisMapping(canonical, wire string) (AxisMapping, error) {
	if len(canonical) != len(wire) {
		return AxisMapping{}, AxisMismatchError{canonical, wire}
	}
	canonicalDim := make(map[rune]int, len(canonical))
	for dim, label := range canonical {
		if _, dup := canonicalDim[label]; dup {
			return AxisMapping{}, AxisMismatchError{canonical, wire}
		}
		canonicalDim[label] = dim
	}
	m := AxisMapping{
		canonical:   canonical,
		wire:        wire,
		toCanonical: make([]int, len(wire)),
		toWire:      make([]int, len(wire)),
	}
	seen := make(map[rune]bool, len(wire))
	for wireDim, label := range wire {
		dim, found := canonicalDim[label]
		if !found || seen[label] {
			return AxisMapping{}, AxisMismatchError{canonical, wire}
		}
		seen[label] = true
		m.toCanonical[wireDim] = dim
		m.toWire[dim] = wireDim
	}
	return m, nil
}

// WireMapping returns the standard mapping for the given canonical labels:
// the wire order is the reversed axis order.
func WireMapping(canonicalLabels string) AxisMapping {
	runes := []rune(canonicalLabels)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	m, err := NewAxisMapping(canonicalLabels, string(runes))
	if err != nil {
		panic(err) // a reversal is always a valid permutation
	}
	return m
}

// NumDims returns the dimensionality covered by the mapping.
func (m AxisMapping) NumDims() uint8 {
	return uint8(len(m.toWire))
}

// CanonicalLabels returns the canonical-order label string.
func (m AxisMapping) CanonicalLabels() string {
	return m.canonical
}

// WireLabels returns the wire-order label string.
func (m AxisMapping) WireLabels() string {
	return m.wire
}

// WireShape permutes a canonical-order shape into wire order.
func (m AxisMapping) WireShape(shape PointNd) PointNd {
	wire := make(PointNd, len(shape))
	for wireDim, dim := range m.toCanonical {
		wire[wireDim] = shape[dim]
	}
	return wire
}

// CanonicalShape permutes a wire-order shape into canonical order.
func (m AxisMapping) CanonicalShape(wireShape PointNd) PointNd {
	shape := make(PointNd, len(wireShape))
	for wireDim, dim := range m.toCanonical {
		shape[dim] = wireShape[wireDim]
	}
	return shape
}

// ToWire permutes a canonical-order bounding box into wire order.
func (m AxisMapping) ToWire(box BoundingBox) BoundingBox {
	return BoundingBox{
		Start: m.WireShape(box.Start),
		Stop:  m.WireShape(box.Stop),
	}
}

// ToCanonical permutes a wire-order bounding box back into canonical
// order.  It is the exact inverse of ToWire.
func (m AxisMapping) ToCanonical(box BoundingBox) BoundingBox {
	return BoundingBox{
		Start: m.CanonicalShape(box.Start),
		Stop:  m.CanonicalShape(box.Stop),
	}
}

// Strides returns row-major byte strides for the given shape, with the
// last axis varying fastest.
func Strides(shape PointNd, bytesPerElement int32) []int64 {
	strides := make([]int64, len(shape))
	stride := int64(bytesPerElement)
	for dim := len(shape) - 1; dim >= 0; dim-- {
		strides[dim] = stride
		stride *= int64(shape[dim])
	}
	return strides
}

// PermuteToWire copies a canonical-order array into a new wire-order array.
func (m AxisMapping) PermuteToWire(arr *NDArray) *NDArray {
	return permute(arr, m.toCanonical)
}

// PermuteToCanonical copies a wire-order array into a new canonical-order
// array.  It is the exact inverse of PermuteToWire.
func (m AxisMapping) PermuteToCanonical(arr *NDArray) *NDArray {
	return permute(arr, m.toWire)
}

// permute reorders array axes so that dst axis j corresponds to src axis
// perm[j].  The copy walks the destination in row-major order, moving one
// source element per destination element along the innermost axis.
func permute(src *NDArray, perm []int) *NDArray {
	elemBytes := src.dtype.Bytes()
	srcStrides := Strides(src.shape, elemBytes)
	dstShape := make(PointNd, len(perm))
	for j, i := range perm {
		dstShape[j] = src.shape[i]
	}
	dst := NewNDArray(src.dtype, dstShape)

	ndims := len(perm)
	if ndims == 0 || dst.NumElements() == 0 {
		return dst
	}

	innerStride := srcStrides[perm[ndims-1]]
	innerCount := int64(dstShape[ndims-1])
	innerBytes := innerCount * int64(elemBytes)

	coord := make(PointNd, ndims) // destination coordinate, inner axis pinned to 0
	var written int64
	for {
		var srcOffset int64
		for j := 0; j < ndims-1; j++ {
			srcOffset += int64(coord[j]) * srcStrides[perm[j]]
		}
		if innerStride == int64(elemBytes) {
			// Innermost axes agree, so the whole run is contiguous in both.
			copy(dst.data[written:], src.data[srcOffset:srcOffset+innerBytes])
		} else {
			for i := int64(0); i < innerCount; i++ {
				copy(dst.data[written+i*int64(elemBytes):], src.data[srcOffset:srcOffset+int64(elemBytes)])
				srcOffset += innerStride
			}
		}
		written += innerBytes

		dim := ndims - 2
		for ; dim >= 0; dim-- {
			coord[dim]++
			if coord[dim] < dstShape[dim] {
				break
			}
			coord[dim] = 0
		}
		if dim < 0 {
			return dst
		}
	}
}
