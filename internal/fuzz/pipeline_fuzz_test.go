package fuzztests

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pythia/internal/driver"
	"pythia/internal/project"
)

// checkTimeout guards against error-recovery loops: analysis of one
// input must finish quickly or we treat it as a hang.
const checkTimeout = 10 * time.Second

func FuzzFullPipelineNeverPanics(f *testing.F) {
	addCorpusSeeds(f)

	dir := f.TempDir()
	a := driver.New(project.Config{
		Roots:         []project.SearchRoot{{Path: dir, Kind: project.RootSource}},
		PythonVersion: "3.12",
		Platform:      "linux",
	})
	path := filepath.Join(dir, "fuzz.py")

	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		a.ApplyChanges([]driver.Event{{Kind: driver.ChangedVirtual, Path: path, Content: input}})

		done := make(chan struct{})
		go func() {
			defer close(done)
			res, err := a.CheckFile(context.Background(), path)
			if err != nil {
				t.Errorf("check failed: %v", err)
				return
			}
			// типы по запросу тоже не должны падать
			_, _ = a.TypeAt(context.Background(), path, 0)
			_ = res
		}()

		select {
		case <-done:
		case <-time.After(checkTimeout):
			t.Fatalf("analysis hang on %d-byte input", len(input))
		}
	})
}
