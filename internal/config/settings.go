package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Analysis is a reusable query description for the command line, so a
// recurring audit can live in a file instead of a shell history entry.
// Flags given alongside --settings win over file values.
type Analysis struct {
	Mode       string   `yaml:"mode"`
	Source     string   `yaml:"source"`
	Target     string   `yaml:"target"`
	DepthLimit int      `yaml:"depth_limit"`
	MinWeight  int      `yaml:"min_weight"`
	Exclude    []string `yaml:"exclude"`
	Booleans   string   `yaml:"booleans"`
	Limit      int      `yaml:"limit"`
	Full       bool     `yaml:"full"`
}

func LoadAnalysis(path string) (Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, err
	}
	var a Analysis
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Analysis{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return a, nil
}
