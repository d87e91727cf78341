// Package catalog maps model output indices to class labels.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
)

// Catalog is the read-only label <-> index mapping loaded at startup.
type Catalog struct {
	labels  []string
	indices map[string]int
}

// Load reads a JSON object of label -> index from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read class index file: %w", err)).
			Component("catalog").
			Category(errors.CategoryLabelLoad).
			Context("path", path).
			Build()
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("class index file %s: %w", path, err)
	}
	return c, nil
}

// Parse builds a catalog from JSON bytes. Indices must be unique and cover [0, N).
func Parse(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]json.Number
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid(fmt.Errorf("malformed class index JSON: %w", err))
	}
	if len(raw) == 0 {
		return nil, invalid(fmt.Errorf("class index file has no classes"))
	}

	labels := make([]string, len(raw))
	filled := make([]bool, len(raw))
	indices := make(map[string]int, len(raw))
	for label, num := range raw {
		idx, err := num.Int64()
		if err != nil {
			return nil, invalid(fmt.Errorf("class %q has non-integer index %s", label, num))
		}
		if idx < 0 || idx >= int64(len(raw)) {
			return nil, invalid(fmt.Errorf("class %q index %d outside [0, %d)", label, idx, len(raw)))
		}
		if filled[idx] {
			return nil, invalid(fmt.Errorf("index %d assigned to both %q and %q", idx, labels[idx], label))
		}
		labels[idx] = label
		filled[idx] = true
		indices[label] = int(idx)
	}

	return &Catalog{labels: labels, indices: indices}, nil
}

func invalid(err error) error {
	return errors.New(err).
		Component("catalog").
		Category(errors.CategoryValidation).
		Build()
}

// Labels returns the labels in index order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Label returns the label at index i.
func (c *Catalog) Label(i int) (string, bool) {
	if i < 0 || i >= len(c.labels) {
		return "", false
	}
	return c.labels[i], true
}

// Index returns the model output index of label.
func (c *Catalog) Index(label string) (int, bool) {
	i, ok := c.indices[label]
	return i, ok
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	return len(c.labels)
}
