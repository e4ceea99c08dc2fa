package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/questgraph"
	"github.com/aretw0/questgraph/internal/config"
	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// Unlike signal.NotifyContext it remembers which signal arrived.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger on stderr, so stdout
// stays clean for command output. Debug forces the debug level.
func createLogger(cfg config.LogConfig, debug bool) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	return logging.NewWith(os.Stderr, level, cfg.Format), nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// PrintReport writes one line per diagnostic and a summary line.
func PrintReport(w io.Writer, name string, report *questgraph.Report) {
	for _, d := range report.Diagnostics {
		fmt.Fprintln(w, d.String())
	}
	errs, warns := len(report.Errors()), len(report.Warnings())
	if errs == 0 {
		printSystemMessage(w, "'%s' is valid (%d warnings).", name, warns)
		return
	}
	printSystemMessage(w, "'%s' has %d errors and %d warnings.", name, errs, warns)
}

// parseValue reads a scalar the way YAML would: 3 is a number, true a
// bool, null nothing, anything else a string.
func parseValue(s string) (domain.Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Value{}, nil
	}
	var raw any
	if err := yaml.Unmarshal([]byte(s), &raw); err != nil {
		return domain.String(s), nil
	}
	switch raw.(type) {
	case map[string]any, []any:
		return domain.Value{}, fmt.Errorf("value %q is not a scalar", s)
	}
	return domain.ValueOf(raw)
}

func formatOutcome(out domain.Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", out.Status)
	if len(out.Entered) > 0 {
		fmt.Fprintf(&sb, " entered=%s", strings.Join(out.Entered, ","))
	}
	for _, a := range out.Actions {
		fmt.Fprintf(&sb, " action=%s", a.Name)
		if len(a.Params) > 0 {
			keys := make([]string, 0, len(a.Params))
			for k := range a.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var parts []string
			for _, k := range keys {
				parts = append(parts, k+"="+a.Params[k].String())
			}
			fmt.Fprintf(&sb, "(%s)", strings.Join(parts, " "))
		}
	}
	return sb.String()
}
