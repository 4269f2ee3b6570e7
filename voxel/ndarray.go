/*
	This file provides a minimal N-dimensional array: a row-major flat
	byte buffer plus its shape and element type.  The cutout engine moves
	data between these arrays and HTTP bodies.
*/

package voxel

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// NDArray is an N-dimensional array of fixed-width scalar elements stored
// row-major (last axis varies fastest) in a flat byte buffer.  Element
// bytes are little-endian.
type NDArray struct {
	dtype DataType
	shape PointNd
	data  []byte
}

// NewNDArray allocates a zeroed array of exactly prod(shape) elements.
func NewNDArray(dtype DataType, shape PointNd) *NDArray {
	numBytes := shape.Prod() * int64(dtype.Bytes())
	return &NDArray{
		dtype: dtype,
		shape: shape.Duplicate(),
		data:  make([]byte, numBytes),
	}
}

// NDArrayFromBytes wraps an existing buffer, which must hold exactly
// prod(shape) elements.
func NDArrayFromBytes(dtype DataType, shape PointNd, data []byte) (*NDArray, error) {
	numBytes := shape.Prod() * int64(dtype.Bytes())
	if int64(len(data)) != numBytes {
		return nil, ShapeMismatchError{Want: shape, Got: PointNd{int32(len(data) / int(dtype.Bytes()))}}
	}
	return &NDArray{dtype, shape.Duplicate(), data}, nil
}

// DataType returns the element type.
func (a *NDArray) DataType() DataType {
	return a.dtype
}

// Shape returns the per-axis extents.
func (a *NDArray) Shape() PointNd {
	return a.shape
}

// Bytes returns the underlying row-major buffer.
func (a *NDArray) Bytes() []byte {
	return a.data
}

// NumElements returns the total element count.
func (a *NDArray) NumElements() int64 {
	return a.shape.Prod()
}

// Equals returns true if two arrays agree in type, shape, and content.
func (a *NDArray) Equals(b *NDArray) bool {
	return a.dtype == b.dtype && a.shape.Equals(b.shape) && bytes.Equal(a.data, b.data)
}

// Reshape returns a view of the same buffer under a new shape with the
// same number of elements.
func (a *NDArray) Reshape(shape PointNd) (*NDArray, error) {
	if shape.Prod() != a.shape.Prod() {
		return nil, ShapeMismatchError{Want: a.shape, Got: shape}
	}
	return &NDArray{a.dtype, shape.Duplicate(), a.data}, nil
}

// ElementOffset returns the byte offset of the element at the given coordinate.
func (a *NDArray) ElementOffset(coord PointNd) int64 {
	strides := Strides(a.shape, a.dtype.Bytes())
	var offset int64
	for dim, value := range coord {
		offset += int64(value) * strides[dim]
	}
	return offset
}

// Element returns the raw bytes of the element at the given coordinate.
func (a *NDArray) Element(coord PointNd) []byte {
	offset := a.ElementOffset(coord)
	return a.data[offset : offset+int64(a.dtype.Bytes())]
}

// SetElement overwrites the element at the given coordinate.
func (a *NDArray) SetElement(coord PointNd, value []byte) {
	copy(a.Element(coord), value)
}

// Uint64At returns the element at the given coordinate widened to uint64.
// Only integer element types are supported.
func (a *NDArray) Uint64At(coord PointNd) uint64 {
	elem := a.Element(coord)
	switch a.dtype.Bytes() {
	case 1:
		return uint64(elem[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(elem))
	case 4:
		return uint64(binary.LittleEndian.Uint32(elem))
	default:
		return binary.LittleEndian.Uint64(elem)
	}
}

// FillUint8 sets every byte of a uint8 array to the given value.
func (a *NDArray) FillUint8(value uint8) {
	if a.dtype != T_uint8 {
		panic(fmt.Sprintf("FillUint8 on %s array", a.dtype))
	}
	for i := range a.data {
		a.data[i] = value
	}
}

// Region copies out the given sub-box as a new array of the box's shape.
func (a *NDArray) Region(box BoundingBox) (*NDArray, error) {
	if err := box.CheckWithin(a.shape); err != nil {
		return nil, err
	}
	dst := NewNDArray(a.dtype, box.Size())
	var written int64
	err := RegionSpans(box, a.shape, a.dtype.Bytes(), func(span Span) error {
		copy(dst.data[written:], a.data[span.Offset:span.Offset+span.Length])
		written += span.Length
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// SetRegion overwrites the given sub-box from an array of the box's shape.
func (a *NDArray) SetRegion(box BoundingBox, src *NDArray) error {
	if err := box.CheckWithin(a.shape); err != nil {
		return err
	}
	if !box.Size().Equals(src.shape) {
		return ShapeMismatchError{Want: box.Size(), Got: src.shape}
	}
	if src.dtype != a.dtype {
		return DtypeMismatchError{Want: a.dtype, Got: src.dtype}
	}
	var read int64
	return RegionSpans(box, a.shape, a.dtype.Bytes(), func(span Span) error {
		copy(a.data[span.Offset:span.Offset+span.Length], src.data[read:])
		read += span.Length
		return nil
	})
}
