package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"pythia/internal/driver"
	"pythia/internal/project"
	"pythia/internal/ui"
)

type checkOutcome struct {
	result *driver.ProjectResult
	err    error
}

// runCheckWithUI runs a project check behind the interactive progress
// view. The analyzer streams per-file events into the model; the model
// quits once the event channel closes.
func runCheckWithUI(ctx context.Context, cfg project.Config, opts []driver.Option, title string) (*driver.ProjectResult, *driver.Analyzer, error) {
	events := make(chan driver.ProgressEvent, 256)
	opts = append(opts, driver.WithProgress(driver.ChannelSink{Ch: events}))
	a := driver.New(cfg, opts...)

	files, err := a.ProjectFiles()
	if err != nil {
		return nil, a, err
	}

	outcomeCh := make(chan checkOutcome, 1)
	go func() {
		res, err := a.CheckProject(ctx)
		outcomeCh <- checkOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, a, uiErr
	}
	return outcome.result, a, outcome.err
}
