package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/questgraph"
	"github.com/aretw0/questgraph/internal/config"
	"github.com/aretw0/questgraph/pkg/domain"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	QuestPath  string
	ConfigPath string
	// InstanceID resumes a stored instance instead of creating one.
	InstanceID string
	Debug      bool
	Quiet      bool
}

// LoadConfig reads path, or returns the defaults when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	return config.Load(path)
}

// Open loads the config and builds the engine described by it.
func Open(ctx context.Context, questPath, configPath string, debug bool) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return createEngine(ctx, questPath, cfg, debug)
}

// Execute compiles the quest, creates or resumes an instance and feeds it
// the script read from in. Results go to out.
func Execute(ctx context.Context, opts RunOptions, in io.Reader, out io.Writer) error {
	rt, err := Open(ctx, opts.QuestPath, opts.ConfigPath, opts.Debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Engine.Compile(ctx); err != nil {
		return err
	}

	id := opts.InstanceID
	if id == "" {
		if id, err = rt.Engine.Create(ctx, ""); err != nil {
			return err
		}
		rt.Logger.Info("instance created", "instance", id)
	}
	if !opts.Quiet {
		printSystemMessage(out, "Instance '%s' of '%s'.", id, rt.Engine.Name)
	}

	s := &script{engine: rt.Engine, id: id, out: out}
	if err := s.start(ctx); err != nil {
		return err
	}
	if err := s.run(ctx, in); err != nil {
		return handleExecutionError(err)
	}
	if !opts.Quiet {
		state, err := rt.Engine.State(ctx, id)
		if err != nil {
			return err
		}
		printSystemMessage(out, "Finished with status '%s'.", state.Status)
	}
	return nil
}

// script applies one command per line to a single instance:
//
//	observe <predicate> [value]   value defaults to true
//	all <predicate> [value]       observe on every stored instance
//	interrupt <node>
//	force <node>
//	abandon
//	status
//
// Blank lines and lines starting with # are skipped.
type script struct {
	engine *questgraph.Engine
	id     string
	out    io.Writer
}

func (s *script) start(ctx context.Context) error {
	out, err := s.engine.Start(ctx, s.id)
	if errors.Is(err, domain.ErrAlreadyStarted) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "start: %s\n", formatOutcome(out))
	return nil
}

func (s *script) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.exec(ctx, text); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}

func (s *script) exec(ctx context.Context, text string) error {
	fields := strings.Fields(text)
	cmd, args := fields[0], fields[1:]

	var (
		out domain.Outcome
		err error
	)
	switch cmd {
	case "observe", "all":
		if len(args) == 0 {
			return fmt.Errorf("%s needs a predicate", cmd)
		}
		v := domain.Bool(true)
		if len(args) > 1 {
			if v, err = parseValue(strings.Join(args[1:], " ")); err != nil {
				return err
			}
		}
		if cmd == "all" {
			outs, err := s.engine.ObserveAll(ctx, args[0], v)
			for _, o := range outs {
				fmt.Fprintf(s.out, "%s %s: %s\n", cmd, o.InstanceID, formatOutcome(o))
			}
			return err
		}
		out, err = s.engine.Observe(ctx, s.id, args[0], v)
	case "interrupt", "force":
		if len(args) != 1 {
			return fmt.Errorf("%s needs exactly one node id", cmd)
		}
		if cmd == "force" {
			out, err = s.engine.ForceEnter(ctx, s.id, args[0])
		} else {
			out, err = s.engine.Interrupt(ctx, s.id, args[0])
		}
	case "abandon":
		out, err = s.engine.Abandon(ctx, s.id)
	case "status":
		inst, err := s.engine.Instance(ctx, s.id)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "status: %s active=%s\n", inst.Status(), strings.Join(inst.Active(), ","))
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s: %s\n", text, formatOutcome(out))
	return nil
}

func handleExecutionError(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
