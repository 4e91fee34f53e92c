// Package institution is the single table of fixed institutional text shared
// by every report format: masthead lines, city, and signature blocks.
package institution

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Profile is the institution's letterhead and signature configuration.
type Profile struct {
	Government string `yaml:"government"`
	Agency     string `yaml:"agency"`
	Hospital   string `yaml:"hospital"`
	Address    string `yaml:"address"`
	Contact    string `yaml:"contact"`
	City       string `yaml:"city"`

	// LogoLabel is drawn on the generated placeholder when no logo asset exists.
	LogoLabel string `yaml:"logo_label"`

	FirstSignatory  SignatureBlock `yaml:"first_signatory"`
	SecondSignatory SignatureBlock `yaml:"second_signatory"`
}

// SignatureBlock is one party of the closing signature section.
type SignatureBlock struct {
	Heading string `yaml:"heading"`
	Role    string `yaml:"role"`
	Name    string `yaml:"name"`
	NIP     string `yaml:"nip"`
}

// MastheadLines returns the letterhead text in print order.
func (p Profile) MastheadLines() []string {
	return []string{p.Government, p.Agency, p.Hospital, p.Address, p.Contact}
}

// Default returns the embedded profile.
func Default() Profile {
	var p Profile
	if err := yaml.Unmarshal(defaultYAML, &p); err != nil {
		panic(fmt.Sprintf("institution: embedded default profile is invalid: %v", err))
	}
	return p
}

// Load reads a YAML profile from path on top of the embedded default, so a
// file only needs the keys it changes. An empty path returns the default.
func Load(path string) (Profile, error) {
	p := Default()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Profile{}, fmt.Errorf("read institution profile (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse institution profile (%s): %w", path, err)
	}
	if strings.TrimSpace(p.FirstSignatory.Name) == "" {
		return Profile{}, fmt.Errorf("institution profile (%s): first_signatory.name must not be blank", path)
	}
	return p, nil
}
