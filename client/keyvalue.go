package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// CreateKeyValue adds a named keyvalue instance under a node.
func CreateKeyValue(ctx context.Context, s *Session, uuid, name string) error {
	body, _ := json.Marshal(map[string]string{
		"dataname": name,
		"typename": "keyvalue",
	})
	path := fmt.Sprintf("/api/repo/%s/instance", uuid)
	return s.doDiscard(ctx, "POST", path, "application/json", bytes.NewReader(body))
}

// PutValue stores a value under a key of a keyvalue instance.
func PutValue(ctx context.Context, s *Session, uuid, name, key string, value []byte) error {
	path := fmt.Sprintf("/api/node/%s/%s/%s", uuid, name, key)
	return s.doDiscard(ctx, "POST", path, "application/octet-stream", bytes.NewReader(value))
}

// GetValue retrieves the value stored under a key of a keyvalue instance.
func GetValue(ctx context.Context, s *Session, uuid, name, key string) ([]byte, error) {
	path := fmt.Sprintf("/api/node/%s/%s/%s", uuid, name, key)
	return s.doBytes(ctx, "GET", path, "", nil)
}

// GetKeys lists the keys of a keyvalue instance.
func GetKeys(ctx context.Context, s *Session, uuid, name string) ([]string, error) {
	path := fmt.Sprintf("/api/node/%s/%s/keys", uuid, name)
	jsonBytes, err := s.doBytes(ctx, "GET", path, "", nil)
	if err != nil {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(jsonBytes, &keys); err != nil {
		return nil, fmt.Errorf("could not parse keys listing: %v", err)
	}
	return keys, nil
}
