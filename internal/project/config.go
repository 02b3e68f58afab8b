package project

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// RootKind orders search roots by provenance. Lower kinds win ties only
// through list position: the resolver walks Config.Roots front to back.
type RootKind uint8

const (
	// RootExtra - пути, добавленные пользователем поверх проекта
	RootExtra RootKind = iota
	// RootSource - first-party исходники проекта
	RootSource
	// RootPackages - установленные сторонние пакеты и их стабы
	RootPackages
	// RootStdlibStubs - вендорённые стабы стандартной библиотеки
	RootStdlibStubs
)

func (k RootKind) String() string {
	switch k {
	case RootExtra:
		return "extra"
	case RootSource:
		return "source"
	case RootPackages:
		return "packages"
	case RootStdlibStubs:
		return "stdlib-stubs"
	default:
		return fmt.Sprintf("RootKind(%d)", uint8(k))
	}
}

// SearchRoot is one directory the resolver probes for modules.
type SearchRoot struct {
	Path string
	Kind RootKind
}

// Config carries everything module resolution and inference depend on
// besides file contents. Any change must produce a new Digest so caches
// keyed on the old configuration die with it.
type Config struct {
	// Roots is the priority-ordered search list; first match wins.
	Roots []SearchRoot

	PythonVersion string // "3.12"
	Platform      string // "linux", "darwin", "win32"

	// MaxDiagnostics caps the per-run bag; 0 picks the built-in
	// default limit.
	MaxDiagnostics int

	// Jobs bounds parallel file analysis; 0 means GOMAXPROCS.
	Jobs int
}

// Default returns the configuration used when no manifest is found:
// the working directory as the only source root.
func Default(dir string) Config {
	return Config{
		Roots:         []SearchRoot{{Path: dir, Kind: RootSource}},
		PythonVersion: "3.12",
		Platform:      "linux",
	}
}

// Digest hashes the resolution-relevant parts of the configuration.
// Root order matters: reordering search paths changes what resolves first.
func (c *Config) Digest() Digest {
	h := sha256.New()
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(c.Roots)))
	_, _ = h.Write(n[:])
	for _, root := range c.Roots {
		_, _ = h.Write([]byte{byte(root.Kind)})
		_, _ = h.Write([]byte(root.Path))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte(c.PythonVersion))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(c.Platform))
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// ValidateRoots drops search roots that do not exist or are not
// directories and returns a message per dropped root. The resolver keeps
// working with whatever remains.
func (c *Config) ValidateRoots() []string {
	var problems []string
	kept := c.Roots[:0]
	for _, root := range c.Roots {
		info, err := os.Stat(root.Path)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("search path %q: %v", root.Path, err))
		case !info.IsDir():
			problems = append(problems, fmt.Sprintf("search path %q: not a directory", root.Path))
		default:
			kept = append(kept, root)
		}
	}
	c.Roots = kept
	return problems
}

// AbsRoots rebases relative root paths against baseDir.
func (c *Config) AbsRoots(baseDir string) {
	for i := range c.Roots {
		if !filepath.IsAbs(c.Roots[i].Path) {
			c.Roots[i].Path = filepath.Join(baseDir, c.Roots[i].Path)
		}
	}
}
