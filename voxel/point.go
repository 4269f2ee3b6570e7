/*
	This file handles N-dimensional coordinates and extents.
*/

package voxel

import (
	"fmt"
	"strconv"
	"strings"
)

// PointNd is an N-dimensional coordinate or extent with each dimension
// represented by a 32-bit integer.
type PointNd []int32

// NumDims returns the dimensionality of this point.
func (p PointNd) NumDims() uint8 {
	return uint8(len(p))
}

// Value returns the point's coordinate along the given dimension.
func (p PointNd) Value(dim uint8) int32 {
	return p[dim]
}

// Duplicate returns a copy of the point.
func (p PointNd) Duplicate() PointNd {
	nd := make(PointNd, len(p))
	copy(nd, p)
	return nd
}

// Add returns the component-wise sum of two points.
func (p PointNd) Add(x PointNd) PointNd {
	nd := make(PointNd, len(p))
	for dim, value := range p {
		nd[dim] = value + x[dim]
	}
	return nd
}

// Sub returns the component-wise difference of two points.
func (p PointNd) Sub(x PointNd) PointNd {
	nd := make(PointNd, len(p))
	for dim, value := range p {
		nd[dim] = value - x[dim]
	}
	return nd
}

// Equals returns true if the two points have identical coordinates.
func (p PointNd) Equals(x PointNd) bool {
	if len(p) != len(x) {
		return false
	}
	for dim, value := range p {
		if value != x[dim] {
			return false
		}
	}
	return true
}

// Prod returns the product of the point's components.
func (p PointNd) Prod() int64 {
	prod := int64(1)
	for _, value := range p {
		prod *= int64(value)
	}
	return prod
}

// String returns a nicely formatted coordinate like "(1,2,3)".
func (p PointNd) String() string {
	text := "("
	for dim, value := range p {
		if dim > 0 {
			text += ","
		}
		text += strconv.Itoa(int(value))
	}
	return text + ")"
}

// Join returns the point's components as integers separated by the given
// separator, e.g., "100_200_300", the form used within REST paths.
func (p PointNd) Join(separator string) string {
	elems := make([]string, len(p))
	for dim, value := range p {
		elems[dim] = strconv.Itoa(int(value))
	}
	return strings.Join(elems, separator)
}

// StringToPointNd parses a string of format "%d<sep>%d<sep>..." into a PointNd.
func StringToPointNd(str, separator string) (PointNd, error) {
	elems := strings.Split(str, separator)
	nd := make(PointNd, len(elems))
	for i, elem := range elems {
		val, err := strconv.ParseInt(elem, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("can't parse coordinate %q: %v", str, err)
		}
		nd[i] = int32(val)
	}
	return nd, nil
}

// NdFloat32 is an N-dimensional slice of float32, used for resolutions.
type NdFloat32 []float32

// Equals returns true if the two slices are identical.
func (n NdFloat32) Equals(x NdFloat32) bool {
	if len(n) != len(x) {
		return false
	}
	for i, value := range n {
		if value != x[i] {
			return false
		}
	}
	return true
}

// StringToNdFloat32 parses a string of format "%f<sep>%f<sep>..." into a NdFloat32.
func StringToNdFloat32(str, separator string) (NdFloat32, error) {
	elems := strings.Split(str, separator)
	nd := make(NdFloat32, len(elems))
	for i, elem := range elems {
		f, err := strconv.ParseFloat(elem, 32)
		if err != nil {
			return nil, err
		}
		nd[i] = float32(f)
	}
	return nd, nil
}
