package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDigestSensitiveToRootOrder(t *testing.T) {
	a := Config{
		Roots: []SearchRoot{
			{Path: "/x", Kind: RootSource},
			{Path: "/y", Kind: RootExtra},
		},
		PythonVersion: "3.12",
		Platform:      "linux",
	}
	b := Config{
		Roots: []SearchRoot{
			{Path: "/y", Kind: RootExtra},
			{Path: "/x", Kind: RootSource},
		},
		PythonVersion: "3.12",
		Platform:      "linux",
	}
	if a.Digest() == b.Digest() {
		t.Error("reordered roots must change the config digest")
	}
	if a.Digest() != a.Digest() {
		t.Error("digest must be deterministic")
	}

	c := a
	c.PythonVersion = "3.11"
	if a.Digest() == c.Digest() {
		t.Error("python version must feed the digest")
	}
}

func TestCombineOrderMatters(t *testing.T) {
	x := DigestOf([]byte("x"))
	y := DigestOf([]byte("y"))
	if Combine(x, y) == Combine(y, x) {
		t.Error("combined digest must depend on order")
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"src", "stubs", "extra"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	content := `
[project]
name = "demo"
roots = ["src"]
extra-paths = ["extra"]
stub-paths = ["stubs"]

[environment]
python-version = "3.11"
platform = "darwin"

[check]
max-diagnostics = 50
jobs = 4
`
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Roots) != 3 {
		t.Fatalf("roots = %d, want 3", len(cfg.Roots))
	}
	// порядок приоритета: extra, source, stubs
	if cfg.Roots[0].Kind != RootExtra || cfg.Roots[1].Kind != RootSource || cfg.Roots[2].Kind != RootStdlibStubs {
		t.Errorf("wrong root priority order: %v %v %v", cfg.Roots[0].Kind, cfg.Roots[1].Kind, cfg.Roots[2].Kind)
	}
	if cfg.Roots[1].Path != filepath.Join(dir, "src") {
		t.Errorf("root path not rebased: %q", cfg.Roots[1].Path)
	}
	if cfg.PythonVersion != "3.11" || cfg.Platform != "darwin" {
		t.Errorf("environment not applied: %q %q", cfg.PythonVersion, cfg.Platform)
	}
	if cfg.MaxDiagnostics != 50 || cfg.Jobs != 4 {
		t.Errorf("check section not applied: %d %d", cfg.MaxDiagnostics, cfg.Jobs)
	}

	if problems := cfg.ValidateRoots(); len(problems) != 0 {
		t.Errorf("unexpected root problems: %v", problems)
	}
}

func TestValidateRootsDropsMissing(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Roots: []SearchRoot{
		{Path: dir, Kind: RootSource},
		{Path: filepath.Join(dir, "nope"), Kind: RootExtra},
	}}
	problems := cfg.ValidateRoots()
	if len(problems) != 1 {
		t.Fatalf("problems = %d, want 1", len(problems))
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0].Path != dir {
		t.Error("existing root must survive validation")
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(manifest, []byte("[project]\nname = \"demo\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, ok, err := FindManifest(nested)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("manifest not found from nested dir")
	}
	resolved, _ := filepath.EvalSymlinks(found)
	expected, _ := filepath.EvalSymlinks(manifest)
	if resolved != expected {
		t.Errorf("found %q, want %q", found, manifest)
	}

	cfg, root, err := LoadFromDir(nested)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(root) != filepath.Base(dir) {
		t.Errorf("project root = %q, want %q", root, dir)
	}
	if len(cfg.Roots) != 1 {
		t.Fatalf("default roots = %d, want 1", len(cfg.Roots))
	}
}

func TestLoadFromDirWithoutManifest(t *testing.T) {
	dir := t.TempDir()
	cfg, root, err := LoadFromDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0].Kind != RootSource {
		t.Error("expected single source root fallback")
	}
	if !filepath.IsAbs(root) {
		t.Error("fallback root must be absolute")
	}
}
