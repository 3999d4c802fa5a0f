// Package project handles the rill.toml manifest: locating it by walking up
// from the working directory and decoding analysis settings from it. Command
// line flags override manifest values; the manifest overrides the defaults.
package project

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ManifestName is the file the walk-up discovery looks for.
const ManifestName = "rill.toml"

// Manifest is the decoded rill.toml.
type Manifest struct {
	Project  ProjectSection  `toml:"project"`
	Analysis AnalysisSection `toml:"analysis"`
	Output   OutputSection   `toml:"output"`
}

type ProjectSection struct {
	Name string `toml:"name"`
}

// AnalysisSection tunes the borrow analysis.
type AnalysisSection struct {
	// Strict enables the audit join and unused-borrow warnings.
	Strict bool `toml:"strict"`
	// IterationCap bounds the per-function dataflow fixpoint.
	IterationCap int `toml:"iteration-cap"`
	// Jobs limits concurrent per-function analyses; 0 means GOMAXPROCS.
	Jobs int `toml:"jobs"`
	// MaxDiagnostics caps the number of diagnostics kept per function.
	MaxDiagnostics int `toml:"max-diagnostics"`
	// NoCache disables the on-disk verdict cache.
	NoCache bool `toml:"no-cache"`
}

// OutputSection tunes rendering.
type OutputSection struct {
	// Format is "pretty" or "json".
	Format string `toml:"format"`
	// Color is "auto", "on" or "off".
	Color string `toml:"color"`
}

// Default returns the manifest used when no rill.toml exists.
func Default() Manifest {
	return Manifest{
		Analysis: AnalysisSection{
			IterationCap:   1000,
			MaxDiagnostics: 100,
		},
		Output: OutputSection{
			Format: "pretty",
			Color:  "auto",
		},
	}
}

// LoadManifest reads and decodes the manifest at path, filling unset fields
// with defaults.
func LoadManifest(path string) (Manifest, error) {
	m := Default()
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return Default(), fmt.Errorf("parse %s: unknown key %q", path, undec[0].String())
	}
	if err := m.validate(); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Discover walks up from startDir, loading the nearest manifest. Without one
// it returns defaults and ok=false.
func Discover(startDir string) (Manifest, string, bool, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return Default(), "", false, err
	}
	m, err := LoadManifest(path)
	if err != nil {
		return Default(), path, true, err
	}
	return m, path, true, nil
}

func (m *Manifest) validate() error {
	if m.Analysis.IterationCap < 0 {
		return fmt.Errorf("analysis.iteration-cap must be non-negative, got %d", m.Analysis.IterationCap)
	}
	if m.Analysis.Jobs < 0 {
		return fmt.Errorf("analysis.jobs must be non-negative, got %d", m.Analysis.Jobs)
	}
	if m.Analysis.MaxDiagnostics < 0 {
		return fmt.Errorf("analysis.max-diagnostics must be non-negative, got %d", m.Analysis.MaxDiagnostics)
	}
	switch m.Output.Format {
	case "", "pretty", "json":
	default:
		return fmt.Errorf("output.format must be pretty or json, got %q", m.Output.Format)
	}
	switch m.Output.Color {
	case "", "auto", "on", "off":
	default:
		return fmt.Errorf("output.color must be auto, on or off, got %q", m.Output.Color)
	}
	return nil
}

// WriteDefault writes a starter manifest to path, refusing to overwrite.
func WriteDefault(path, name string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	content := fmt.Sprintf(`[project]
name = %q

[analysis]
strict = false
iteration-cap = 1000
jobs = 0
max-diagnostics = 100

[output]
format = "pretty"
color = "auto"
`, name)
	return os.WriteFile(path, []byte(content), 0o644)
}
