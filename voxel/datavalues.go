/*
	This file handles the layout of data for a voxel element.  An element
	can carry multiple values (channels), all of which must share the same
	fixed-width scalar type.
*/

package voxel

import (
	"encoding/json"
	"fmt"
)

// DataType is a unique ID for each fixed-width scalar element type.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

var typeBytes = map[DataType]int32{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

var namedTypes map[string]DataType

func init() {
	namedTypes = make(map[string]DataType, len(typeNames))
	for t, name := range typeNames {
		namedTypes[name] = t
	}
}

// Bytes returns the width of this data type in bytes.
func (t DataType) Bytes() int32 {
	return typeBytes[t]
}

func (t DataType) String() string {
	return typeNames[t]
}

// DataTypeByName returns the DataType for a type string like "uint16".
func DataTypeByName(name string) (DataType, error) {
	t, found := namedTypes[name]
	if !found {
		return 0, SchemaError{fmt.Sprintf("unknown data type %q", name)}
	}
	return t, nil
}

// DataValue describes the data type and label for one value of an element,
// e.g., one channel of a voxel.
type DataValue struct {
	T     DataType
	Label string
}

// ValueBytes returns the number of bytes for this value.
func (dv DataValue) ValueBytes() int32 {
	return typeBytes[dv.T]
}

// MarshalJSON implements the json.Marshaler interface.
func (dv DataValue) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"DataType":%q,"Label":%q}`, typeNames[dv.T], dv.Label)), nil
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (dv *DataValue) UnmarshalJSON(b []byte) error {
	var m struct {
		DataType string
		Label    string
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	t, err := DataTypeByName(m.DataType)
	if err != nil {
		return err
	}
	dv.T = t
	dv.Label = m.Label
	return nil
}

// DataValues describes the interleaved values within an element.  The
// cutout engine requires all values of an element to share one type, so a
// volume's channel count is len(values).
type DataValues []DataValue

// ValuesPerElement returns the number of channels.
func (values DataValues) ValuesPerElement() int32 {
	return int32(len(values))
}

// BytesPerElement returns the byte width of a full element.
func (values DataValues) BytesPerElement() int32 {
	var nbytes int32
	for _, dataValue := range values {
		nbytes += typeBytes[dataValue.T]
	}
	return nbytes
}

// ValueDataType checks that all values share one data type and returns it.
func (values DataValues) ValueDataType() (DataType, error) {
	if len(values) == 0 {
		return 0, SchemaError{"element must have at least one value"}
	}
	t := values[0].T
	for _, dataValue := range values[1:] {
		if dataValue.T != t {
			return 0, SchemaError{fmt.Sprintf("can't support heterogeneous channel types: %s vs %s",
				typeNames[t], typeNames[dataValue.T])}
		}
	}
	return t, nil
}
