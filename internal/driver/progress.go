package driver

import "time"

// Status captures the progress state of one file during a project run.
type Status string

const (
	// StatusQueued indicates the file is waiting for its batch.
	StatusQueued Status = "queued"
	// StatusWorking indicates the file is being analyzed.
	StatusWorking Status = "working"
	// StatusDone indicates the file finished without errors.
	StatusDone Status = "done"
	// StatusError indicates the file finished with errors.
	StatusError Status = "error"
	// StatusCached indicates the result was served from the disk cache.
	StatusCached Status = "cached"
)

// ProgressEvent reports per-file progress of a project check.
type ProgressEvent struct {
	File    string
	Status  Status
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(ProgressEvent)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- ProgressEvent
}

func (s ChannelSink) OnEvent(evt ProgressEvent) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func (a *Analyzer) emit(evt ProgressEvent) {
	if a.progress == nil {
		return
	}
	a.progress.OnEvent(evt)
}
