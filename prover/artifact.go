package prover

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zkgeo/zkgeo/exclusion"
)

// Artifact is the verifier-ready bundle persisted after a proving run. It is
// constructed once and never mutated; the byte strings are rendered as
// 0x-prefixed hex so the file can be pasted straight into contract tests.
type Artifact struct {
	IsExcluded        bool     `json:"isExcluded"`
	Timestamp         uint32   `json:"timestamp"`
	ExcludedCountries []uint16 `json:"excludedCountries"`
	Vkey              string   `json:"vkey"`
	PublicValues      string   `json:"publicValues"`
	Proof             string   `json:"proof"`
}

// NewArtifact packages a proof into its persisted form.
func NewArtifact(p Proof) *Artifact {
	c := p.Commitment()
	countries := c.Countries
	if countries == nil {
		countries = []uint16{}
	}
	return &Artifact{
		IsExcluded:        c.IsExcluded,
		Timestamp:         c.Timestamp,
		ExcludedCountries: countries,
		Vkey:              p.VerifyingKey(),
		PublicValues:      "0x" + hex.EncodeToString(p.PublicValues()),
		Proof:             "0x" + hex.EncodeToString(p.Bytes()),
	}
}

// Commitment re-derives the public values carried by the artifact.
func (a *Artifact) Commitment() exclusion.Commitment {
	return exclusion.Commitment{
		IsExcluded: a.IsExcluded,
		Timestamp:  a.Timestamp,
		Countries:  a.ExcludedCountries,
	}
}

// Write persists the artifact as <dir>/<system>-fixture.json.
func (a *Artifact) Write(dir string, system System) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating fixture directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-fixture.json", system))
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing fixture: %w", err)
	}
	return path, nil
}

// ReadArtifact loads a previously written fixture.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &a, nil
}
