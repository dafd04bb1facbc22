package config

import (
	_ "embed"
)

//go:embed sample.toml
var embeddedScenario []byte

// GetEmbeddedScenario returns the built-in three-port sample topology
func GetEmbeddedScenario() (*Scenario, error) {
	return ParseScenario(embeddedScenario)
}

// LoadScenarioWithFallback loads path, falling back to the embedded sample
// when path is empty. A named file that fails to load is an error.
func LoadScenarioWithFallback(path string) (*Scenario, error) {
	if path != "" {
		return LoadScenario(path)
	}
	return GetEmbeddedScenario()
}
