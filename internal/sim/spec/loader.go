package spec

import (
	"fmt"
	"os"
	"sort"

	"github.com/ProDevCodePoland/ringrtc/internal/apperr"
	"github.com/ProDevCodePoland/ringrtc/internal/sim/network"
	"gopkg.in/yaml.v3"
)

// DefaultTestSet runs when no test set is named.
const DefaultTestSet = "example"

type Catalogue struct {
	TestSets []TestSet `yaml:"test_sets"`
}

type TestSet struct {
	Name       string    `yaml:"name"`
	Preprocess []string  `yaml:"preprocess,omitempty"`
	Runs       []RunSpec `yaml:"runs"`
}

// RunSpec is one Run call of a test set: a group and its case × profile matrix.
type RunSpec struct {
	Group    GroupConfig      `yaml:"group"`
	Cases    []TestCaseConfig `yaml:"cases"`
	Profiles []ProfileSpec    `yaml:"profiles"`
}

func LoadFromFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.NewConfigurationWrap("read test set catalogue", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, apperr.NewConfigurationWrap("parse test set YAML", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func validate(c *Catalogue) error {
	if len(c.TestSets) == 0 {
		return apperr.NewConfiguration("catalogue has no test sets")
	}
	names := make(map[string]bool, len(c.TestSets))
	for i := range c.TestSets {
		ts := &c.TestSets[i]
		if ts.Name == "" {
			return apperr.NewConfiguration(fmt.Sprintf("test set at index %d has no name", i))
		}
		if !network.ValidName(ts.Name) {
			return apperr.NewConfiguration(fmt.Sprintf("test set name %q must not contain path separators or \"..\"", ts.Name))
		}
		if names[ts.Name] {
			return apperr.NewConfiguration(fmt.Sprintf("duplicate test set %q", ts.Name))
		}
		names[ts.Name] = true

		if len(ts.Runs) == 0 {
			return apperr.NewConfiguration(fmt.Sprintf("test set %q has no runs", ts.Name))
		}
		for _, sound := range ts.Preprocess {
			if sound == "" {
				return apperr.NewConfiguration(fmt.Sprintf("test set %q: empty preprocess sound name", ts.Name))
			}
		}
		groups := make(map[string]bool, len(ts.Runs))
		for j := range ts.Runs {
			r := &ts.Runs[j]
			if groups[r.Group.Name] {
				return apperr.NewConfiguration(fmt.Sprintf("test set %q: duplicate group %q", ts.Name, r.Group.Name))
			}
			groups[r.Group.Name] = true
			if err := ValidateRun(&r.Group, r.Cases, Profiles(r.Profiles)); err != nil {
				return apperr.NewConfigurationWrap(fmt.Sprintf("test set %q", ts.Name), err)
			}
		}
	}
	return nil
}

// Lookup returns the named test set. Unknown names are configuration errors.
func (c *Catalogue) Lookup(name string) (*TestSet, error) {
	for i := range c.TestSets {
		if c.TestSets[i].Name == name {
			return &c.TestSets[i], nil
		}
	}
	return nil, apperr.NewConfiguration(fmt.Sprintf("unknown test set %q", name))
}

func (c *Catalogue) Names() []string {
	out := make([]string, 0, len(c.TestSets))
	for _, ts := range c.TestSets {
		out = append(out, ts.Name)
	}
	sort.Strings(out)
	return out
}
