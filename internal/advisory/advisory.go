// Package advisory holds the compiled-in remediation table for predicted classes.
package advisory

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed advisories.yaml
var advisoriesYAML []byte

// Record is the remediation guidance for one class label.
type Record struct {
	PlantType   string   `json:"plant_type" yaml:"plant_type"`
	DiseaseType string   `json:"disease_type" yaml:"disease_type"`
	Precautions []string `json:"precautions" yaml:"precautions"`
	Fertilizers []string `json:"fertilizers" yaml:"fertilizers"`
}

// Unknown is returned for labels that have no entry in the table.
var Unknown = Record{
	PlantType:   "Unknown",
	DiseaseType: "Unknown",
	Precautions: []string{"No data available."},
	Fertilizers: []string{"No data available."},
}

// Table is an immutable label -> Record map with a fallback record.
type Table struct {
	records map[string]Record
}

var defaultTable = mustParse(advisoriesYAML)

// Default returns the compiled-in table.
func Default() *Table {
	return defaultTable
}

// Parse decodes a YAML document of label -> record.
func Parse(data []byte) (*Table, error) {
	var records map[string]Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse advisory table: %w", err)
	}
	for label, r := range records {
		if r.PlantType == "" || r.DiseaseType == "" {
			return nil, fmt.Errorf("advisory %q is missing plant or disease type", label)
		}
	}
	if records == nil {
		records = map[string]Record{}
	}
	return &Table{records: records}, nil
}

func mustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the record for label, or Unknown when there is none.
// It never fails.
func (t *Table) Lookup(label string) Record {
	r, ok := t.records[label]
	if !ok {
		r = Unknown
	}
	return r.clone()
}

// Has reports whether label has its own record.
func (t *Table) Has(label string) bool {
	_, ok := t.records[label]
	return ok
}

// Labels returns every label with a record, sorted.
func (t *Table) Labels() []string {
	out := make([]string, 0, len(t.records))
	for label := range t.records {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// IsUnknown reports whether r is the fallback record.
func (r Record) IsUnknown() bool {
	return r.PlantType == Unknown.PlantType && r.DiseaseType == Unknown.DiseaseType
}

func (r Record) clone() Record {
	r.Precautions = append([]string(nil), r.Precautions...)
	r.Fertilizers = append([]string(nil), r.Fertilizers...)
	return r
}
