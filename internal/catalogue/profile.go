package catalogue

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a user-editable restriction on which built-in candidates the
// driver considers, and the knobs that tune how hard the probe tries per
// routine. Grounded on the teacher's own taste for small YAML-configured
// subsystems (the stub registry's enable lists) rather than a bespoke flag
// format.
type Profile struct {
	// Candidates, when non-empty, restricts the catalogue to exactly these
	// names. An empty list means "every registered candidate is active."
	Candidates []string `yaml:"candidates"`
	// NumTests is how many independently generated TestData vectors a
	// candidate must pass before a match is accepted. LoadProfile returns
	// it but does not apply it; the driver takes its count from
	// driver.Options.NumTests.
	NumTests int `yaml:"num_tests"`
	// MaxSteps bounds how many instructions a single probe call may
	// execute before it's treated as non-terminating (ErrMultistate).
	// Like NumTests it is only returned; the driver uses
	// driver.Options.MaxSteps.
	MaxSteps int `yaml:"max_steps"`
}

// DefaultProfile matches the specification's stated defaults.
func DefaultProfile() Profile {
	return Profile{NumTests: 10, MaxSteps: 1_000_000}
}

// LoadProfile reads a YAML profile file, applies its Candidates list to
// Default, and returns the whole profile.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("catalogue: read profile %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("catalogue: parse profile %s: %w", path, err)
	}
	if p.NumTests <= 0 {
		p.NumTests = 10
	}
	if p.MaxSteps <= 0 {
		p.MaxSteps = 1_000_000
	}
	Default.SetProfile(p.Candidates)
	return p, nil
}
