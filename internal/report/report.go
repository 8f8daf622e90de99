// Package report defines the conformation report produced by the
// dimension/validity check: the geometry observed on every input volume,
// the target grid chosen for the cohort, and which inputs were discarded.
// The report is an output artifact of the pipeline, rendered as YAML.
package report

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// InputGeometry records the header geometry of one input volume as probed
// by the dimension check.
type InputGeometry struct {
	Path        string     `yaml:"path"`
	Zooms       [3]float64 `yaml:"zooms"`
	Shape       [3]int     `yaml:"shape"`
	Orientation string     `yaml:"orientation"`
}

// Conformation is the full conformation report for one template run.
type Conformation struct {
	Contrast    string          `yaml:"contrast"`
	Inputs      []InputGeometry `yaml:"inputs"`
	TargetZooms [3]float64      `yaml:"target_zooms"`
	TargetShape [3]int          `yaml:"target_shape"`
	Discarded   []string        `yaml:"discarded,omitempty"`
}

// ValidCount returns the number of inputs that survived the check.
func (c *Conformation) ValidCount() int {
	return len(c.Inputs) - len(c.Discarded)
}

// Render serializes the report to YAML.
func (c *Conformation) Render() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("render conformation report: %w", err)
	}
	return out, nil
}

// Write renders the report and writes it to path.
func (c *Conformation) Write(path string) error {
	out, err := c.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write conformation report: %w", err)
	}
	return nil
}

// Load reads a conformation report back from a YAML file.
func Load(path string) (*Conformation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conformation report: %w", err)
	}
	var c Conformation
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse conformation report %q: %w", path, err)
	}
	return &c, nil
}
