package cli

import (
	"context"
	"io"
	"time"

	"github.com/aretw0/questgraph"
)

// settleDelay lets editors finish writing before the document is reread.
const settleDelay = 100 * time.Millisecond

// Validate prints the report for the engine's document and reports
// whether it is valid.
func Validate(ctx context.Context, eng *questgraph.Engine, out io.Writer) (bool, error) {
	report, err := eng.Validate(ctx)
	if err != nil {
		return false, err
	}
	PrintReport(out, eng.Name, report)
	return report.Valid(), nil
}

// WatchValidate revalidates the document on every change until ctx is done.
// Load failures are printed and the watch continues.
func WatchValidate(ctx context.Context, eng *questgraph.Engine, out io.Writer) error {
	events, err := eng.Watch(ctx)
	if err != nil {
		return err
	}
	if _, err := Validate(ctx, eng, out); err != nil {
		printSystemMessage(out, "Load failed: %v", err)
	}
	printSystemMessage(out, "Waiting for changes...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			printSystemMessage(out, "Change detected in '%s'.", event)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(settleDelay):
			}
			drain(events)
			if _, err := Validate(ctx, eng, out); err != nil {
				printSystemMessage(out, "Load failed: %v", err)
			}
		}
	}
}

// drain discards events that piled up while waiting, so one save of
// several files triggers one validation.
func drain(events <-chan string) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
