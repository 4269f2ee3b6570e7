/*
	Typed errors surfaced by the cutout engine.  Handlers and clients
	discriminate on these with errors.As, and the mock server maps each
	kind to a deterministic HTTP status.
*/

package voxel

import "fmt"

// SchemaError indicates malformed or incomplete volume metadata.
type SchemaError struct {
	Msg string
}

func (e SchemaError) Error() string {
	return "metadata schema error: " + e.Msg
}

// AxisMismatchError indicates two axis orderings do not share the same
// label set and therefore cannot be mapped onto each other.
type AxisMismatchError struct {
	Canonical string
	Wire      string
}

func (e AxisMismatchError) Error() string {
	return fmt.Sprintf("axis label sets disagree: canonical %q vs wire %q", e.Canonical, e.Wire)
}

// BoundsError indicates a requested region exceeds the volume extent or
// has the wrong number of dimensions.
type BoundsError struct {
	Msg string
}

func (e BoundsError) Error() string {
	return "bounds error: " + e.Msg
}

// ShapeMismatchError indicates a write payload's shape disagrees with the
// declared region shape.
type ShapeMismatchError struct {
	Want PointNd
	Got  PointNd
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("data shape %s does not match requested shape %s", e.Got, e.Want)
}

// DtypeMismatchError indicates a write payload's element type disagrees
// with the volume's declared element type.
type DtypeMismatchError struct {
	Want DataType
	Got  DataType
}

func (e DtypeMismatchError) Error() string {
	return fmt.Sprintf("data type %s does not match volume data type %s", e.Got, e.Want)
}

// TruncatedPayloadError indicates a binary stream ended before the number
// of bytes implied by the requested shape arrived.
type TruncatedPayloadError struct {
	Want int64
	Got  int64
}

func (e TruncatedPayloadError) Error() string {
	return fmt.Sprintf("truncated payload: got %d of %d expected bytes", e.Got, e.Want)
}

// OversizedPayloadError indicates more bytes arrived than the requested
// shape implies.
type OversizedPayloadError struct {
	Want int64
}

func (e OversizedPayloadError) Error() string {
	return fmt.Sprintf("payload longer than the %d expected bytes", e.Want)
}

// UnsupportedSliceError indicates slicing used a feature outside basic
// unit-step slicing.
type UnsupportedSliceError struct {
	Msg string
}

func (e UnsupportedSliceError) Error() string {
	return "unsupported slicing: " + e.Msg
}

// NotFoundError indicates an unknown dataset, node, volume, or key.
type NotFoundError struct {
	Kind string // "dataset", "node", "volume", "keyvalue", "key"
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}
