package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/questgraph"
	httpAdapter "github.com/aretw0/questgraph/pkg/adapters/http"
	"github.com/aretw0/questgraph/pkg/adapters/mqtt"
	"github.com/aretw0/questgraph/pkg/domain"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions contains the configuration for the serve command.
type ServeOptions struct {
	QuestPath  string
	ConfigPath string
	Listen     string
	Debug      bool
}

// Serve compiles the quest and exposes the runtime over HTTP until ctx is
// cancelled. When mqtt.broker is configured, broker events are observed
// too and their outcomes are streamed like HTTP ones.
func Serve(ctx context.Context, opts ServeOptions) error {
	rt, err := Open(ctx, opts.QuestPath, opts.ConfigPath, opts.Debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	m, err := rt.Engine.Compile(ctx)
	if err != nil {
		return err
	}

	httpOpts := []httpAdapter.Option{
		httpAdapter.WithLogger(rt.Logger),
		httpAdapter.WithVersion(questgraph.Version),
	}
	if rt.Config.Server.Metrics {
		httpOpts = append(httpOpts, httpAdapter.WithMetrics(rt.Metrics))
	}
	api := httpAdapter.NewServer(rt.Engine, httpOpts...)

	if rt.Config.MQTT.Broker != "" {
		stop, err := startBridge(rt, api.Publish)
		if err != nil {
			return err
		}
		defer stop()
	}

	listen := opts.Listen
	if listen == "" {
		listen = rt.Config.Server.Listen
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		rt.Logger.Info("server listening", "addr", listen, "definition", m.ID)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		rt.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.Logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			return srv.Close()
		}
		return nil
	}
}

func startBridge(rt *Runtime, onOutcome func(domain.Outcome)) (func(), error) {
	cfg := rt.Config.MQTT
	client := mqtt.NewClient(cfg.Broker, cfg.ClientID)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", client.Broker(), err)
	}
	bridge := mqtt.NewBridge(rt.Engine,
		mqtt.WithLogger(rt.Logger),
		mqtt.WithOutcomeHandler(onOutcome),
	)
	if err := bridge.Subscribe(client, cfg.Topic, cfg.QoS); err != nil {
		client.Disconnect()
		return nil, err
	}
	return client.Disconnect, nil
}
