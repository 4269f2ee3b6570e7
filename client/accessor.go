package client

import (
	"context"
	"fmt"

	"github.com/voxelio/voxeld/codec"
	"github.com/voxelio/voxeld/voxel"
)

// VolumeAccessor reads and writes N-d subvolumes of one remote volume.
// Arrays cross its API in canonical channel-first row-major order; the
// wire order of transfers is an internal concern.
type VolumeAccessor struct {
	session *Session
	uuid    string
	name    string
	meta    voxel.Metadata
	mapping voxel.AxisMapping
	codec   *codec.Codec
}

// NewVolumeAccessor fetches the volume's metadata from the service and
// returns an accessor bound to it.
func NewVolumeAccessor(ctx context.Context, s *Session, uuid, name string) (*VolumeAccessor, error) {
	path := fmt.Sprintf("/api/node/%s/%s/metadata", uuid, name)
	jsonBytes, err := s.doBytes(ctx, "GET", path, "", nil)
	if err != nil {
		return nil, err
	}
	m, err := voxel.ParseMetadata(jsonBytes)
	if err != nil {
		return nil, err
	}
	return NewVolumeAccessorWithMetadata(s, uuid, name, m)
}

// NewVolumeAccessorWithMetadata returns an accessor over already-known
// metadata, skipping the metadata round trip.
func NewVolumeAccessorWithMetadata(s *Session, uuid, name string, m voxel.Metadata) (*VolumeAccessor, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &VolumeAccessor{
		session: s,
		uuid:    uuid,
		name:    name,
		meta:    m,
		mapping: m.WireMapping(),
		codec:   codec.NewCodec(m.DataType(), 0),
	}, nil
}

// Metadata returns the volume's metadata as fetched at accessor creation.
func (va *VolumeAccessor) Metadata() voxel.Metadata {
	return va.meta
}

// Shape returns the volume's full channel-first extent.
func (va *VolumeAccessor) Shape() voxel.PointNd {
	return va.meta.Shape()
}

// checkBounds validates a channel-first request region against the
// volume extent.
func (va *VolumeAccessor) checkBounds(offset, shape voxel.PointNd) (voxel.BoundingBox, error) {
	volShape := va.meta.Shape()
	if len(offset) != len(volShape) || len(shape) != len(volShape) {
		return voxel.BoundingBox{}, voxel.BoundsError{
			Msg: fmt.Sprintf("volume is %d-d but request was offset %s, shape %s", len(volShape), offset, shape),
		}
	}
	box, err := voxel.BoxFromOffsetShape(offset, shape)
	if err != nil {
		return voxel.BoundingBox{}, err
	}
	if err := box.CheckWithin(volShape); err != nil {
		return voxel.BoundingBox{}, err
	}
	return box, nil
}

// fullChannelBox widens a channel-first box to the volume's full channel
// extent.  Transfers always carry all channels.
func (va *VolumeAccessor) fullChannelBox(box voxel.BoundingBox) voxel.BoundingBox {
	full := voxel.BoundingBox{Start: box.Start.Duplicate(), Stop: box.Stop.Duplicate()}
	full.Start[0] = 0
	full.Stop[0] = va.meta.Shape()[0]
	return full
}

// GetSubvolume fetches the region with the given channel-first offset
// and shape.  The returned array has exactly the requested shape.
func (va *VolumeAccessor) GetSubvolume(ctx context.Context, offset, shape voxel.PointNd) (*voxel.NDArray, error) {
	box, err := va.checkBounds(offset, shape)
	if err != nil {
		return nil, err
	}
	fullBox := va.fullChannelBox(box)

	req := va.codec.GetRequest(va.uuid, va.name, fullBox)
	body, err := va.session.do(ctx, req.Method, req.Path, "", -1, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	wireArr, err := va.codec.Decode(body, va.mapping.WireShape(fullBox.Size()))
	if err != nil {
		return nil, err
	}
	arr := va.mapping.PermuteToCanonical(wireArr)
	if fullBox.Equals(box) {
		return arr, nil
	}

	// Crop the channel sub-range the wire format could not express.
	crop := voxel.BoundingBox{Start: box.Start.Duplicate(), Stop: box.Stop.Duplicate()}
	for i := 1; i < len(crop.Start); i++ {
		crop.Stop[i] -= crop.Start[i]
		crop.Start[i] = 0
	}
	return arr.Region(crop)
}

// PostSubvolume overwrites the region with the given channel-first
// offset and shape from data.  The write must span the volume's full
// channel extent.  On success data is returned unchanged.
func (va *VolumeAccessor) PostSubvolume(ctx context.Context, offset, shape voxel.PointNd, data *voxel.NDArray) (*voxel.NDArray, error) {
	box, err := va.checkBounds(offset, shape)
	if err != nil {
		return nil, err
	}
	if !data.Shape().Equals(shape) {
		return nil, voxel.ShapeMismatchError{Want: shape, Got: data.Shape()}
	}
	if data.DataType() != va.meta.DataType() {
		return nil, voxel.DtypeMismatchError{Want: va.meta.DataType(), Got: data.DataType()}
	}
	if !va.fullChannelBox(box).Equals(box) {
		return nil, voxel.BoundsError{
			Msg: fmt.Sprintf("writes must span all %d channels, got channel range [%d,%d)",
				va.meta.Shape()[0], box.Start[0], box.Stop[0]),
		}
	}

	wireArr := va.mapping.PermuteToWire(data)
	payload := va.codec.Encode(wireArr)
	req := va.codec.PostRequest(va.uuid, va.name, box)
	body, err := va.session.do(ctx, req.Method, req.Path, req.ContentType, req.ContentLength, payload)
	if err != nil {
		return nil, err
	}
	body.Close()
	return data, nil
}
