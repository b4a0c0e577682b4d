package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrSpecType indicates an unsupported specification file extension.
var ErrSpecType = errors.New("spec: only .json, .jsonc, .yaml and .yml files are supported")

// Load decodes and validates a graph from raw document bytes. The
// format is chosen by ext (including the leading dot).
func Load(data []byte, ext string) (*Graph, error) {
	var (
		g   Graph
		err error
	)
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		err = dec.Decode(&g)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&g)
	default:
		return nil, ErrSpecType
	}
	if err != nil {
		return nil, fmt.Errorf("spec: decode: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadFile reads and validates a graph from a specification file.
func LoadFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spec: read %s: %w", path, err)
	}
	return Load(data, filepath.Ext(path))
}
