package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"healthmon-agent/internal/evaluator"
	"healthmon-agent/internal/model"
	"healthmon-agent/internal/observability"
)

// Run starts the agent and its endpoints and blocks until ctx ends or the
// process receives SIGINT/SIGTERM. The in-flight tick gets ShutdownTimeout
// to finish; a second signal skips the wait. Resources are closed on return.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting healthmon-agent", "environment", a.cfg.Environment, "interval", a.cfg.Interval)
	if err := a.Start(); err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.serve(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	served := false
	select {
	case runErr = <-runErrCh:
		served = true
	case <-ctx.Done():
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
	}
	cancelRun()
	a.Stop()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelWait()
	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig.String())
			cancelWait()
		case <-waitCtx.Done():
		}
	}()

	if err := a.Wait(waitCtx); err != nil {
		a.logger.Warn("in-flight tick did not finish before shutdown", "timeout", a.cfg.ShutdownTimeout, "error", err)
	}
	if !served {
		select {
		case runErr = <-runErrCh:
		case <-waitCtx.Done():
		}
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelClose()
	if err := a.Close(closeCtx); err != nil {
		a.logger.Warn("agent close failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	a.logger.Info("healthmon-agent stopped")
	return nil
}

// serve runs the endpoints next to the sampler until ctx ends or one fails.
func (a *Agent) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})
	g.Go(func() error {
		return observability.Serve(gctx, a.cfg.MetricsAddr, a.gatherer, a.logger)
	})
	g.Go(func() error {
		return a.runMemoryReport(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// CheckResult is the outcome of a single collect and evaluate pass.
type CheckResult struct {
	Sample model.Sample
	State  model.HealthState
	Alerts []model.AlertEvent
}

// Check collects once and evaluates the sample without notifying the sink
// or touching the running state.
func (a *Agent) Check(ctx context.Context) (CheckResult, error) {
	cctx, cancel := context.WithTimeout(ctx, a.cfg.EffectiveCollectTimeout())
	defer cancel()
	sample, err := a.source.Collect(cctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("collect %s: %w", a.source.Name(), err)
	}
	state, alerts := evaluator.Evaluate(sample, a.cfg.Thresholds)
	for i := range alerts {
		alerts[i].Instance = a.cfg.InstanceName
	}
	return CheckResult{Sample: sample, State: state, Alerts: alerts}, nil
}
