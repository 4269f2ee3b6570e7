package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/voxelio/voxeld/voxel"
)

// NodeInfo describes one node of a dataset's version tree.
type NodeInfo struct {
	Parents     []string `json:"Parents"`
	Children    []string `json:"Children"`
	Volumes     []string `json:"Volumes"`
	KeyValues   []string `json:"KeyValues"`
	LabelGraphs []string `json:"LabelGraphs"`
}

// DatasetInfo describes one dataset and its node hierarchy.
type DatasetInfo struct {
	Root  string              `json:"Root"`
	Nodes map[string]NodeInfo `json:"Nodes"`
}

// DatasetsList returns the mapping of dataset name to root node UUID.
func DatasetsList(ctx context.Context, s *Session) (map[string]string, error) {
	jsonBytes, err := s.doBytes(ctx, "GET", "/api/datasets/list", "", nil)
	if err != nil {
		return nil, err
	}
	var listing map[string]string
	if err := json.Unmarshal(jsonBytes, &listing); err != nil {
		return nil, fmt.Errorf("could not parse datasets listing: %v", err)
	}
	return listing, nil
}

// DatasetsInfo returns full metadata for every dataset, including each
// dataset's node hierarchy.
func DatasetsInfo(ctx context.Context, s *Session) (map[string]DatasetInfo, error) {
	jsonBytes, err := s.doBytes(ctx, "GET", "/api/datasets/info", "", nil)
	if err != nil {
		return nil, err
	}
	var info map[string]DatasetInfo
	if err := json.Unmarshal(jsonBytes, &info); err != nil {
		return nil, fmt.Errorf("could not parse datasets info: %v", err)
	}
	return info, nil
}

// CreateDataset makes a new dataset on the service and returns its root
// node UUID.
func CreateDataset(ctx context.Context, s *Session, name string) (string, error) {
	body, _ := json.Marshal(map[string]string{"name": name})
	jsonBytes, err := s.doBytes(ctx, "POST", "/api/datasets/new", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	var created struct {
		Root string `json:"root"`
	}
	if err := json.Unmarshal(jsonBytes, &created); err != nil {
		return "", fmt.Errorf("could not parse dataset creation response: %v", err)
	}
	return created.Root, nil
}

// CreateBranch appends a new child node under the given node and returns
// its UUID.
func CreateBranch(ctx context.Context, s *Session, uuid string) (string, error) {
	jsonBytes, err := s.doBytes(ctx, "POST", fmt.Sprintf("/api/node/%s/branch", uuid), "", nil)
	if err != nil {
		return "", err
	}
	var created struct {
		Child string `json:"child"`
	}
	if err := json.Unmarshal(jsonBytes, &created); err != nil {
		return "", fmt.Errorf("could not parse branch response: %v", err)
	}
	return created.Child, nil
}

// CreateVolume adds a new volume under a node.  The metadata is
// validated remotely; schema problems surface as a 400 HTTPError.
func CreateVolume(ctx context.Context, s *Session, uuid, name string, m voxel.Metadata) error {
	typename, err := m.TypeName()
	if err != nil {
		return err
	}
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/dataset/%s/new/%s/%s", uuid, typename, name)
	return s.doDiscard(ctx, "POST", path, "application/json", bytes.NewReader(jsonBytes))
}
