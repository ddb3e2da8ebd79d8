package commands

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a reusable certificate template loaded from YAML:
//
//	name: "C=US, O=Acme, CN=Acme Root"
//	days: 3650
//	ca: true
//	pathLen: 1
//	usages: [key-cert-sign, crl-sign]
//
// Flags given on the command line take precedence over profile values.
type Profile struct {
	Name    string   `yaml:"name"`
	Days    int      `yaml:"days"`
	CA      bool     `yaml:"ca"`
	PathLen *int     `yaml:"pathLen"`
	Usages  []string `yaml:"usages"`
}

func loadProfile(path string) (*Profile, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	return &profile, nil
}

// apply fills unset flag values from the profile.
func (p *Profile) apply(name *string, vf *ValidityFlags, ef *ExtensionFlags) {
	if *name == "" {
		*name = p.Name
	}
	if vf.Days <= 0 && p.Days > 0 {
		vf.Days = p.Days
	}
	if p.CA {
		ef.CA = true
	}
	if ef.CAPathlen < 0 && p.PathLen != nil {
		ef.CAPathlen = *p.PathLen
	}
	if len(ef.Usages) == 0 {
		ef.Usages = p.Usages
	}
}
