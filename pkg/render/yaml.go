package render

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML encodes a report, nested tree included.
func YAML(report Report) ([]byte, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	return data, nil
}
