/*
	REST handlers for the mock cutout service.  Each request moves through
	an explicit parsing state (validate path segments and framing, no
	storage mutation) before the serving state streams payload bytes in
	bounded chunks.
*/

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/zenazn/goji/web"

	"github.com/voxelio/voxeld/codec"
	"github.com/voxelio/voxeld/storage"
	"github.com/voxelio/voxeld/voxel"
)

// --- dataset-level endpoints ---

// datasetsList handles GET /api/datasets/list, returning a JSON mapping
// of dataset name to root node UUID.  An empty store yields an empty map.
func (e *Engine) datasetsList(c web.C, w http.ResponseWriter, r *http.Request) {
	listing, err := e.store.Datasets()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, listing)
}

// datasetsInfo handles GET /api/datasets/info, returning full metadata
// including each dataset's node hierarchy.
func (e *Engine) datasetsInfo(c web.C, w http.ResponseWriter, r *http.Request) {
	info, err := e.store.DatasetsInfo()
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, info)
}

// datasetsNew handles POST /api/datasets/new with body {"name": ...},
// creating a dataset with a fresh root node.
func (e *Engine) datasetsNew(c web.C, w http.ResponseWriter, r *http.Request) {
	jsonBytes, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, err)
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(jsonBytes, &body); err != nil || body.Name == "" {
		BadRequest(w, r, "dataset creation requires a JSON body with a non-empty \"name\"")
		return
	}
	root, err := e.store.CreateDataset(body.Name)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"root": root})
}

// nodeBranch handles POST /api/node/<uuid>/branch, appending a child node.
func (e *Engine) nodeBranch(c web.C, w http.ResponseWriter, r *http.Request) {
	child, err := e.store.CreateChildNode(c.URLParams["uuid"])
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"child": child})
}

// --- volume endpoints ---

// volumeNew handles POST /api/dataset/<uuid>/new/<typename>/<dataname>
// with a metadata JSON body.  The path typename must agree with the
// typename the metadata implies.
func (e *Engine) volumeNew(c web.C, w http.ResponseWriter, r *http.Request) {
	uuid := c.URLParams["uuid"]
	jsonBytes, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, err)
		return
	}
	m, err := voxel.ParseMetadata(jsonBytes)
	if err != nil {
		serverError(w, r, err)
		return
	}
	expectedTypename, err := m.TypeName()
	if err != nil {
		serverError(w, r, err)
		return
	}
	if typename := c.URLParams["typename"]; typename != expectedTypename {
		BadRequest(w, r, "cannot create volume: path typename was %q, but metadata implies typename %q",
			typename, expectedTypename)
		return
	}
	if err := e.store.CreateVolume(uuid, c.URLParams["dataname"], m); err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
}

// volumeMetadata handles GET /api/node/<uuid>/<name>/metadata.
func (e *Engine) volumeMetadata(c web.C, w http.ResponseWriter, r *http.Request) {
	vol, err := e.store.OpenVolume(c.URLParams["uuid"], c.URLParams["name"])
	if err != nil {
		serverError(w, r, err)
		return
	}
	jsonBytes, err := json.Marshal(vol.Metadata())
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.voxel-nd-data+json")
	w.Header().Set("Content-Length", strconv.Itoa(len(jsonBytes)))
	w.Write(jsonBytes)
}

// --- raw cutout endpoints ---

// cutoutState tracks a raw request through the engine's state machine.
type cutoutState int

const (
	stateParsing cutoutState = iota
	stateServing
	stateDone
)

// cutoutRequest is one raw cutout exchange.  No storage mutation happens
// until parsing completed successfully.
type cutoutRequest struct {
	state    cutoutState
	vol      storage.Volume
	wireBox  voxel.BoundingBox
	numBytes int64
}

// parseCutout validates the path segments of a raw request against the
// addressed volume and computes the wire-order region.
func (e *Engine) parseCutout(c web.C) (*cutoutRequest, error) {
	req := &cutoutRequest{state: stateParsing}

	vol, err := e.store.OpenVolume(c.URLParams["uuid"], c.URLParams["name"])
	if err != nil {
		return nil, err
	}
	req.vol = vol

	m := vol.Metadata()
	shape := m.Shape()
	spatialDims := len(shape) - 1

	// The dims segment must enumerate all non-channel axes in order.
	wantDims := make([]string, spatialDims)
	for i := range wantDims {
		wantDims[i] = strconv.Itoa(i)
	}
	if dims := c.URLParams["dims"]; dims != strings.Join(wantDims, "_") {
		return nil, voxel.BoundsError{Msg: fmt.Sprintf("queries must include all %d non-channel axes, got dims %q",
			spatialDims, dims)}
	}

	size, err := voxel.StringToPointNd(c.URLParams["shape"], "_")
	if err != nil {
		return nil, voxel.BoundsError{Msg: err.Error()}
	}
	offset, err := voxel.StringToPointNd(c.URLParams["offset"], "_")
	if err != nil {
		return nil, voxel.BoundsError{Msg: err.Error()}
	}
	if len(size) != spatialDims || len(offset) != spatialDims {
		return nil, voxel.BoundsError{Msg: fmt.Sprintf("expected %d-d shape and offset, got %s and %s",
			spatialDims, size, offset)}
	}

	// Every transfer carries all channels; prepend the channel axis.
	fullOffset := append(voxel.PointNd{0}, offset...)
	fullShape := append(voxel.PointNd{shape[0]}, size...)
	box, err := voxel.BoxFromOffsetShape(fullOffset, fullShape)
	if err != nil {
		return nil, err
	}
	if err := box.CheckWithin(shape); err != nil {
		return nil, err
	}

	req.wireBox = m.WireMapping().ToWire(box)
	req.numBytes = box.NumVoxels() * int64(m.DataType().Bytes())
	if req.numBytes == 0 {
		return nil, voxel.BoundsError{Msg: "requested region is empty"}
	}
	req.state = stateServing
	return req, nil
}

// rawGet handles GET /api/node/<uuid>/<name>/raw/<dims>/<shape>/<offset>,
// streaming the region's wire-order bytes.
func (e *Engine) rawGet(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := voxel.NewTimeLog()
	req, err := e.parseCutout(c)
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", codec.VolumeMimetype)
	w.Header().Set("Content-Length", strconv.FormatInt(req.numBytes, 10))
	if err := req.vol.ReadRegion(req.wireBox, w, e.chunkSize); err != nil {
		// Headers are out; all we can do is drop the connection short.
		voxel.Errorf("Error streaming %s of cutout data: %v\n", humanize.Bytes(uint64(req.numBytes)), err)
		return
	}
	req.state = stateDone
	timedLog.Infof("HTTP %s: %s (%s)", r.Method, r.URL, humanize.Bytes(uint64(req.numBytes)))
}

// rawPost handles POST on the same path, overwriting the region from the
// request body.  The declared content length must equal the number of
// bytes the requested shape implies.
func (e *Engine) rawPost(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := voxel.NewTimeLog()
	req, err := e.parseCutout(c)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if r.ContentLength < 0 {
		http.Error(w, "cutout writes require a declared Content-Length", http.StatusLengthRequired)
		return
	}
	if r.ContentLength != req.numBytes {
		http.Error(w, fmt.Sprintf("Content-Length %d does not match the %d bytes implied by the requested shape",
			r.ContentLength, req.numBytes), http.StatusLengthRequired)
		return
	}
	if err := req.vol.WriteRegion(req.wireBox, r.Body, e.chunkSize); err != nil {
		serverError(w, r, err)
		return
	}
	// The body must be exactly consumed.
	var probe [1]byte
	if n, _ := r.Body.Read(probe[:]); n > 0 {
		serverError(w, r, voxel.OversizedPayloadError{Want: req.numBytes})
		return
	}
	req.state = stateDone
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
	timedLog.Infof("HTTP %s: %s (%s)", r.Method, r.URL, humanize.Bytes(uint64(req.numBytes)))
}

// --- keyvalue and labelgraph endpoints ---

// instanceNew handles POST /api/repo/<uuid>/instance, creating a named
// keyvalue or labelgraph instance under the node.
func (e *Engine) instanceNew(c web.C, w http.ResponseWriter, r *http.Request) {
	jsonBytes, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, err)
		return
	}
	var body struct {
		DataName string `json:"dataname"`
		TypeName string `json:"typename"`
	}
	if err := json.Unmarshal(jsonBytes, &body); err != nil || body.DataName == "" {
		BadRequest(w, r, "instance creation requires a JSON body with \"dataname\" and \"typename\"")
		return
	}
	switch body.TypeName {
	case "keyvalue":
		err = e.store.CreateKeyValue(c.URLParams["uuid"], body.DataName)
	case "labelgraph":
		err = e.store.CreateLabelGraph(c.URLParams["uuid"], body.DataName)
	default:
		BadRequest(w, r, "unsupported instance typename %q", body.TypeName)
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
}

// kvKeys handles GET /api/node/<uuid>/<name>/keys.
func (e *Engine) kvKeys(c web.C, w http.ResponseWriter, r *http.Request) {
	keys, err := e.store.Keys(c.URLParams["uuid"], c.URLParams["name"])
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, keys)
}

// kvGet handles GET /api/node/<uuid>/<name>/<key>.
func (e *Engine) kvGet(c web.C, w http.ResponseWriter, r *http.Request) {
	value, err := e.store.GetValue(c.URLParams["uuid"], c.URLParams["name"], c.URLParams["key"])
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(value)))
	w.Write(value)
}

// kvPut handles POST /api/node/<uuid>/<name>/<key>.
func (e *Engine) kvPut(c web.C, w http.ResponseWriter, r *http.Request) {
	value, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, err)
		return
	}
	if err := e.store.PutValue(c.URLParams["uuid"], c.URLParams["name"], c.URLParams["key"], value); err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
}

// graphUpdateLimit bounds the elements accepted per weight post.
const graphUpdateLimit = 1000

// graphWeight handles POST /api/node/<uuid>/<name>/weight.  The posted
// weights are increments; unknown vertices and edges are created.
func (e *Engine) graphWeight(c web.C, w http.ResponseWriter, r *http.Request) {
	jsonBytes, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, r, err)
		return
	}
	var update storage.LabelGraph
	if err := json.Unmarshal(jsonBytes, &update); err != nil {
		BadRequest(w, r, "weight update requires a JSON graph body: %v", err)
		return
	}
	if len(update.Vertices) > graphUpdateLimit || len(update.Edges) > graphUpdateLimit {
		BadRequest(w, r, "no more than %d vertices and %d edges per weight update",
			graphUpdateLimit, graphUpdateLimit)
		return
	}
	if err := e.store.UpdateGraph(c.URLParams["uuid"], c.URLParams["name"], update); err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusNoContent)
}

// graphGet handles GET /api/node/<uuid>/<name>/subgraph, returning the
// full graph with vertices and edges in sorted order.
func (e *Engine) graphGet(c web.C, w http.ResponseWriter, r *http.Request) {
	g, err := e.store.GetGraph(c.URLParams["uuid"], c.URLParams["name"])
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, g)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(jsonBytes)))
	w.Write(jsonBytes)
}
