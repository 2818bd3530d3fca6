package domain

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Country qualifies district names for geocoding and is the national location label.
const Country = "Pakistan"

//go:embed reference.yaml
var referenceYAML []byte

var defaultReference = mustLoadReference(referenceYAML)

// District is an administrative district and the province it belongs to.
type District struct {
	Name     string `json:"district"`
	Province string `json:"province"`
}

// Reference is the immutable district, province, and feature vocabulary.
type Reference struct {
	provinces []string
	districts []District
	features  []string

	districtIndex map[string]int
	provinceSet   map[string]struct{}
	featureSet    map[string]struct{}
}

type referenceFile struct {
	Provinces []string `yaml:"provinces"`
	Districts []struct {
		Province string   `yaml:"province"`
		Names    []string `yaml:"names"`
	} `yaml:"districts"`
	Features []string `yaml:"features"`
}

// DefaultReference returns the embedded reference data.
func DefaultReference() *Reference {
	return defaultReference
}

// LoadReference parses and validates reference YAML. Every district must map
// to a listed province and appear once.
func LoadReference(data []byte) (*Reference, error) {
	var file referenceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if len(file.Provinces) == 0 {
		return nil, errors.New("reference data has no provinces")
	}

	ref := &Reference{
		provinces:     file.Provinces,
		features:      file.Features,
		districtIndex: make(map[string]int),
		provinceSet:   make(map[string]struct{}, len(file.Provinces)),
		featureSet:    make(map[string]struct{}, len(file.Features)),
	}
	for _, p := range file.Provinces {
		ref.provinceSet[p] = struct{}{}
	}
	for _, f := range file.Features {
		ref.featureSet[f] = struct{}{}
	}

	for _, group := range file.Districts {
		if _, ok := ref.provinceSet[group.Province]; !ok {
			return nil, fmt.Errorf("reference data: unknown province %q", group.Province)
		}
		for _, name := range group.Names {
			if _, dup := ref.districtIndex[name]; dup {
				return nil, fmt.Errorf("reference data: duplicate district %q", name)
			}
			ref.districtIndex[name] = len(ref.districts)
			ref.districts = append(ref.districts, District{Name: name, Province: group.Province})
		}
	}
	if len(ref.districts) == 0 {
		return nil, errors.New("reference data has no districts")
	}
	return ref, nil
}

func mustLoadReference(data []byte) *Reference {
	ref, err := LoadReference(data)
	if err != nil {
		panic(err)
	}
	return ref
}

// Districts returns all districts in reference order.
func (r *Reference) Districts() []District {
	return append([]District(nil), r.districts...)
}

// Provinces returns the province enumeration.
func (r *Reference) Provinces() []string {
	return append([]string(nil), r.provinces...)
}

// Features returns the feature tag vocabulary.
func (r *Reference) Features() []string {
	return append([]string(nil), r.features...)
}

// Province returns the province of a district.
func (r *Reference) Province(district string) (string, bool) {
	i, ok := r.districtIndex[district]
	if !ok {
		return "", false
	}
	return r.districts[i].Province, true
}

// Index returns the position of a district in reference order, or -1.
func (r *Reference) Index(district string) int {
	if i, ok := r.districtIndex[district]; ok {
		return i
	}
	return -1
}

// IsProvince reports whether name is a listed province.
func (r *Reference) IsProvince(name string) bool {
	_, ok := r.provinceSet[name]
	return ok
}

// IsLocation reports whether name is a valid article location label.
func (r *Reference) IsLocation(name string) bool {
	if name == Country || r.IsProvince(name) {
		return true
	}
	_, ok := r.districtIndex[name]
	return ok
}

// IsFeature reports whether tag is in the feature vocabulary.
func (r *Reference) IsFeature(tag string) bool {
	_, ok := r.featureSet[tag]
	return ok
}
