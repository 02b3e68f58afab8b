package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ManifestName is the project manifest file the CLI walks up to find.
const ManifestName = "pythia.toml"

// ErrProjectSectionMissing indicates that [project] is missing in a manifest.
var ErrProjectSectionMissing = errors.New("missing [project]")

type manifest struct {
	Project struct {
		Name       string   `toml:"name"`
		Roots      []string `toml:"roots"`
		ExtraPaths []string `toml:"extra-paths"`
		StubPaths  []string `toml:"stub-paths"`
	} `toml:"project"`
	Environment struct {
		PythonVersion string `toml:"python-version"`
		Platform      string `toml:"platform"`
	} `toml:"environment"`
	Check struct {
		MaxDiagnostics int `toml:"max-diagnostics"`
		Jobs           int `toml:"jobs"`
	} `toml:"check"`
}

// FindManifest walks up from startDir to locate pythia.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadManifest parses pythia.toml into a Config. Relative roots are
// rebased against the manifest's own directory. Priority order: extra
// paths, project roots, stub paths.
func LoadManifest(path string) (Config, error) {
	var m manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("project") {
		return Config{}, fmt.Errorf("%s: %w", path, ErrProjectSectionMissing)
	}

	baseDir := filepath.Dir(path)
	cfg := Config{
		PythonVersion: "3.12",
		Platform:      "linux",
	}
	for _, p := range m.Project.ExtraPaths {
		cfg.Roots = append(cfg.Roots, SearchRoot{Path: p, Kind: RootExtra})
	}
	roots := m.Project.Roots
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, p := range roots {
		cfg.Roots = append(cfg.Roots, SearchRoot{Path: p, Kind: RootSource})
	}
	for _, p := range m.Project.StubPaths {
		cfg.Roots = append(cfg.Roots, SearchRoot{Path: p, Kind: RootStdlibStubs})
	}
	cfg.AbsRoots(baseDir)

	if v := m.Environment.PythonVersion; v != "" {
		cfg.PythonVersion = v
	}
	if v := m.Environment.Platform; v != "" {
		cfg.Platform = v
	}
	cfg.MaxDiagnostics = m.Check.MaxDiagnostics
	cfg.Jobs = m.Check.Jobs
	return cfg, nil
}

// LoadFromDir discovers and loads the manifest governing startDir.
// Falls back to Default(startDir) when no manifest exists.
func LoadFromDir(startDir string) (Config, string, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		abs, err := filepath.Abs(startDir)
		if err != nil {
			return Config{}, "", err
		}
		return Default(abs), abs, nil
	}
	cfg, err := LoadManifest(manifestPath)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, filepath.Dir(manifestPath), nil
}
