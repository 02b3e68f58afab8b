package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Session owns the profile files opened for one CLI run. Stop is safe to
// call multiple times and when nothing was started.
type Session struct {
	cpuFile   *os.File
	traceFile *os.File
}

// StartCPU enables CPU profiling and writes samples to the provided path.
func (s *Session) StartCPU(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	s.cpuFile = f
	return nil
}

// StartTrace writes runtime trace data to the provided path.
func (s *Session) StartTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return err
	}
	s.traceFile = f
	return nil
}

// Stop ends whatever profiling is active and closes the files.
func (s *Session) Stop() {
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
	if s.traceFile != nil {
		trace.Stop()
		_ = s.traceFile.Close()
		s.traceFile = nil
	}
}

// WriteMem captures a heap profile to the supplied file path.
func WriteMem(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
