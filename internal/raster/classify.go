package raster

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ClassBin maps the values at or above (or strictly above, when Exclusive)
// Min to a class. Bins are evaluated top-down with the first match winning,
// so a table must be ordered highest threshold first.
type ClassBin struct {
	Class     int     `yaml:"class"`
	Min       float64 `yaml:"min"`
	Exclusive bool    `yaml:"exclusive,omitempty"`
}

// Classifier bins raster values into classes. Values below Threshold are
// ineligible and values matching no bin map to no class; both are dropped
// from vectorized output rather than emitted as a zero class.
type Classifier struct {
	Name      string     `yaml:"name"`
	Threshold float64    `yaml:"threshold"`
	Bins      []ClassBin `yaml:"bins"`
}

// Classify returns the class for v and whether v classified at all.
func (c *Classifier) Classify(v float64) (int, bool) {
	if v < c.Threshold {
		return 0, false
	}
	for _, b := range c.Bins {
		if v > b.Min || (!b.Exclusive && v == b.Min) {
			return b.Class, true
		}
	}
	return 0, false
}

func (c *Classifier) validate() error {
	if len(c.Bins) == 0 {
		return eris.Errorf("raster: classifier %q has no bins", c.Name)
	}
	for i := 1; i < len(c.Bins); i++ {
		if c.Bins[i].Min >= c.Bins[i-1].Min {
			return eris.Errorf("raster: classifier %q bins not ordered highest first", c.Name)
		}
	}
	return nil
}

// TRIClassifier returns the built-in terrain ruggedness table.
func TRIClassifier() *Classifier {
	return &Classifier{
		Name:      "tri",
		Threshold: 80000,
		Bins: []ClassBin{
			{Class: 4, Min: 350000, Exclusive: true},
			{Class: 3, Min: 150000, Exclusive: true},
			{Class: 2, Min: 80000},
		},
	}
}

// WheatClassifier returns the built-in wheat suitability table.
func WheatClassifier() *Classifier {
	return &Classifier{
		Name:      "wheat",
		Threshold: 1000,
		Bins: []ClassBin{
			{Class: 3, Min: 7000},
			{Class: 2, Min: 3500},
			{Class: 1, Min: 1000},
		},
	}
}

// LoadClassifiers reads classifier tables from a YAML file keyed by name,
// overriding the built-in tables.
func LoadClassifiers(path string) (map[string]*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read classifier table %s", path)
	}
	var tables map[string]*Classifier
	if err := yaml.Unmarshal(raw, &tables); err != nil {
		return nil, eris.Wrapf(err, "raster: parse classifier table %s", path)
	}
	for name, c := range tables {
		c.Name = name
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	return tables, nil
}
