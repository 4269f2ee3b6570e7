/*
	This file handles the JSON description of an N-d volume: its axes with
	sizes and resolutions, plus the per-channel value layout.  The JSON
	layout matches the nd-data metadata served for image block volumes:

	{
	    "Axes": [
	        {"Label": "X", "Resolution": 3.1, "Units": "nanometers", "Size": 100, "Offset": 0},
	        ...
	    ],
	    "Values": [
	        {"DataType": "uint8", "Label": "intensity"},
	        ...
	    ]
	}

	The client-facing shape prepends a channel axis: shape[0] = len(Values).
*/

package voxel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metadataSchemaText is the JSON schema all volume metadata must satisfy
// before it is interpreted.
const metadataSchemaText = `{
    "$schema": "https://json-schema.org/draft/2020-12/schema",
    "title": "Schema for N-dimensional volume metadata",
    "type": "object",
    "required": ["Axes", "Values"],
    "properties": {
        "Axes": {
            "type": "array",
            "minItems": 1,
            "items": {
                "type": "object",
                "required": ["Label", "Size", "Resolution"],
                "properties": {
                    "Label": {"type": "string", "minLength": 1},
                    "Resolution": {"type": "number", "exclusiveMinimum": 0},
                    "Units": {"type": "string"},
                    "Size": {"type": "integer", "minimum": 1},
                    "Offset": {"type": "integer"}
                }
            }
        },
        "Values": {
            "type": "array",
            "minItems": 1,
            "items": {
                "type": "object",
                "required": ["DataType"],
                "properties": {
                    "DataType": {"type": "string"},
                    "Label": {"type": "string"}
                }
            }
        }
    }
}`

var metadataSchema = jsonschema.MustCompileString("nddata.schema.json", metadataSchemaText)

// Axis describes one non-channel dimension of a volume.
type Axis struct {
	Label      string
	Resolution float32
	Units      string
	Size       int32
	Offset     int32
}

// Metadata is the immutable description of a volume: its non-channel axes
// and the interleaved values (channels) of each element.  Construct via
// ParseMetadata or DefaultMetadata; any change produces a new instance.
type Metadata struct {
	Axes   []Axis
	Values DataValues
}

// ParseMetadata validates JSON against the metadata schema and decodes it.
// All failure modes surface as SchemaError.
func ParseMetadata(jsonBytes []byte) (Metadata, error) {
	var generic interface{}
	if err := json.Unmarshal(jsonBytes, &generic); err != nil {
		return Metadata{}, SchemaError{fmt.Sprintf("can't parse metadata JSON: %v", err)}
	}
	if err := metadataSchema.Validate(generic); err != nil {
		return Metadata{}, SchemaError{err.Error()}
	}
	var m Metadata
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		var schemaErr SchemaError
		if !errors.As(err, &schemaErr) {
			schemaErr = SchemaError{err.Error()}
		}
		return Metadata{}, schemaErr
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Validate checks the shape/label/resolution invariants beyond what the
// JSON schema can express.
func (m Metadata) Validate() error {
	if _, err := m.Values.ValueDataType(); err != nil {
		return err
	}
	if len(m.Axes) == 0 {
		return SchemaError{"metadata must describe at least one axis"}
	}
	if err := ValidAxisLabels(m.AxisLabels()); err != nil {
		return err
	}
	for _, axis := range m.Axes {
		if axis.Size < 1 {
			return SchemaError{fmt.Sprintf("axis %s has non-positive size %d", axis.Label, axis.Size)}
		}
		if axis.Resolution <= 0 {
			return SchemaError{fmt.Sprintf("axis %s has non-positive resolution %f", axis.Label, axis.Resolution)}
		}
	}
	return nil
}

// DefaultMetadata constructs metadata with uniform resolution along every
// non-channel axis.  The shape is channel-first and must agree with the
// given axis labels, e.g., shape (4,100,200,300) with labels "cxyz".
func DefaultMetadata(shape PointNd, dtype DataType, axisLabels string, resolution float32, units string) (Metadata, error) {
	if err := ValidAxisLabels(axisLabels); err != nil {
		return Metadata{}, err
	}
	if len(shape) != len(axisLabels) {
		return Metadata{}, SchemaError{fmt.Sprintf("shape %s has %d dimensions but axis labels %q have %d",
			shape, len(shape), axisLabels, len(axisLabels))}
	}
	if len(shape) < 2 {
		return Metadata{}, SchemaError{"volume needs a channel axis plus at least one spatial axis"}
	}
	if resolution <= 0 {
		return Metadata{}, SchemaError{fmt.Sprintf("non-positive resolution %f", resolution)}
	}
	for dim, extent := range shape {
		if extent < 1 {
			return Metadata{}, SchemaError{fmt.Sprintf("non-positive extent along dimension %d of shape %s", dim, shape)}
		}
	}
	m := Metadata{
		Axes:   make([]Axis, len(shape)-1),
		Values: make(DataValues, shape[0]),
	}
	for i := range m.Axes {
		m.Axes[i] = Axis{
			Label:      strings.ToUpper(string(axisLabels[i+1])),
			Resolution: resolution,
			Units:      units,
			Size:       shape[i+1],
		}
	}
	for i := range m.Values {
		m.Values[i] = DataValue{T: dtype}
	}
	return m, nil
}

// Shape returns the canonical channel-first shape.
func (m Metadata) Shape() PointNd {
	shape := make(PointNd, len(m.Axes)+1)
	shape[0] = m.Values.ValuesPerElement()
	for i, axis := range m.Axes {
		shape[i+1] = axis.Size
	}
	return shape
}

// AxisLabels returns the canonical channel-first label string, e.g. "cxyz".
func (m Metadata) AxisLabels() string {
	labels := string(ChannelLabel)
	for _, axis := range m.Axes {
		labels += strings.ToLower(axis.Label)
	}
	return labels
}

// DataType returns the shared element type of all channels.
func (m Metadata) DataType() DataType {
	return m.Values[0].T
}

// BytesPerVoxel returns the byte width of one full multi-channel voxel.
func (m Metadata) BytesPerVoxel() int32 {
	return m.Values.BytesPerElement()
}

// Resolution returns per-axis resolutions for the non-channel axes.
func (m Metadata) Resolution() NdFloat32 {
	res := make(NdFloat32, len(m.Axes))
	for i, axis := range m.Axes {
		res[i] = axis.Resolution
	}
	return res
}

// WireMapping returns this volume's canonical-to-wire axis mapping.
func (m Metadata) WireMapping() AxisMapping {
	return WireMapping(m.AxisLabels())
}

// Equals returns true if two metadata descriptions are identical.
func (m Metadata) Equals(m2 Metadata) bool {
	if len(m.Axes) != len(m2.Axes) || len(m.Values) != len(m2.Values) {
		return false
	}
	for i, axis := range m.Axes {
		if axis != m2.Axes[i] {
			return false
		}
	}
	for i, value := range m.Values {
		if value != m2.Values[i] {
			return false
		}
	}
	return true
}

// typeNamesByChannels maps (element type, channel count) to the datatype
// name used in volume-creation REST paths.
var typeNamesByChannels = map[string]string{
	"uint8/1":  "grayscale8",
	"uint32/1": "labels32",
	"uint64/1": "labels64",
	"uint8/4":  "rgba8",
}

// TypeName returns the datatype name embedded in volume-creation paths for
// this metadata, e.g. "grayscale8" for single-channel uint8.
func (m Metadata) TypeName() (string, error) {
	key := fmt.Sprintf("%s/%d", m.DataType(), m.Values.ValuesPerElement())
	name, found := typeNamesByChannels[key]
	if !found {
		return "", SchemaError{fmt.Sprintf("no datatype name for %d channels of %s voxels",
			m.Values.ValuesPerElement(), m.DataType())}
	}
	return name, nil
}
