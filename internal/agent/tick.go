package agent

import (
	"context"
	"errors"
	"time"

	"healthmon-agent/internal/evaluator"
	"healthmon-agent/internal/model"
	"healthmon-agent/internal/predict"
	"healthmon-agent/internal/stream"
)

// tick runs one evaluation cycle for a sample of run gen.
func (a *Agent) tick(gen uint64, sample model.Sample) {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	started := time.Now()
	a.health.MarkSample(sample.Timestamp)
	a.health.SetSourceReachable(true)

	current := a.currentGen(gen)
	state, alerts := evaluator.Evaluate(sample, a.cfg.Thresholds)
	// a superseded run still reports its reactive alerts but must not feed
	// the history of the run that replaced it
	if current {
		a.history.Add(sample)
		if predicted := a.forecastAlerts(); len(predicted) > 0 {
			alerts = append(alerts, predicted...)
			state = model.HealthWarning
		}
	}

	a.dispatch(alerts)
	if current {
		a.recordState(gen, sample.Timestamp, state, len(alerts))
	}
	a.metrics.ObserveTick(a.cfg.InstanceName, time.Since(started).Seconds())
}

// forecastAlerts returns predictive alerts, or nil when no predictor is
// configured or the forecast is unusable.
func (a *Agent) forecastAlerts() []model.AlertEvent {
	if !a.predictiveEnabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.EffectiveCollectTimeout())
	defer cancel()

	forecast, err := a.predict.Forecast(ctx, a.history.Snapshot(), a.cfg.PredictiveWindow)
	if err != nil {
		if !errors.Is(err, predict.ErrInsufficientHistory) {
			a.metrics.IncPredictorFailure(a.cfg.InstanceName)
		}
		a.logger.Debug("predictive evaluation skipped", "error", err)
		return nil
	}
	// written as a negated >= so a NaN confidence is rejected too
	if !(forecast.Confidence >= a.cfg.PredictiveMinConfidence) {
		a.logger.Debug("forecast below confidence floor", "confidence", forecast.Confidence, "min", a.cfg.PredictiveMinConfidence)
		return nil
	}
	return evaluator.EvaluateForecast(forecast, a.cfg.Thresholds, a.cfg.PredictiveWindow)
}

// dispatch notifies the sink once per event, in order. Failures are logged
// and counted, never retried.
func (a *Agent) dispatch(alerts []model.AlertEvent) {
	for _, ev := range alerts {
		ev.ID = a.newID()
		ev.Instance = a.cfg.InstanceName
		a.metrics.IncAlert(a.cfg.InstanceName, string(ev.Kind))

		ctx, cancel := sinkContext(a.cfg.SinkTimeout)
		err := a.sink.Notify(ctx, ev)
		cancel()
		if err != nil {
			a.deliveryFailed(stream.AsDeliveryError(a.sink.Name(), ev.ID, err))
			continue
		}
		a.health.MarkAlertSent()
		a.health.SetSinkReachable(true)
	}
}

func (a *Agent) deliveryFailed(err error) {
	a.health.SetSinkReachable(false)
	for _, de := range deliveryErrors(err) {
		a.health.IncSinkFailures()
		a.metrics.IncSinkFailure(a.cfg.InstanceName, de.Sink)
		a.logger.Warn("alert delivery failed", "sink", de.Sink, "alert_id", de.EventID, "error", de.Err)
	}
}

// deliveryErrors flattens joined errors from a fan-out sink.
func deliveryErrors(err error) []*stream.DeliveryError {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*stream.DeliveryError
		for _, e := range joined.Unwrap() {
			out = append(out, deliveryErrors(e)...)
		}
		return out
	}
	var de *stream.DeliveryError
	if errors.As(err, &de) {
		return []*stream.DeliveryError{de}
	}
	return []*stream.DeliveryError{{Err: err}}
}

func (a *Agent) currentGen(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen == a.gen
}

// recordState logs the first state of a run as its baseline and afterwards
// only changes.
func (a *Agent) recordState(gen uint64, at time.Time, state model.HealthState, alerts int) {
	a.health.SetState(state)
	a.metrics.SetHealth(a.cfg.InstanceName, float64(state))

	prev := a.state
	if a.stateGen != gen {
		a.stateGen = gen
		a.state = state
		a.logger.Info("initial health state", "state", state, "alerts", alerts)
		a.reportState(model.StateChange{Instance: a.cfg.InstanceName, Timestamp: at, From: model.HealthUnknown, To: state, Alerts: alerts})
		return
	}
	if state == prev {
		return
	}
	a.state = state
	a.logger.Info("health state changed", "from", prev, "to", state, "alerts", alerts)
	a.reportState(model.StateChange{Instance: a.cfg.InstanceName, Timestamp: at, From: prev, To: state, Alerts: alerts})
}

func (a *Agent) reportState(change model.StateChange) {
	reporter, ok := a.sink.(stream.StateReporter)
	if !ok {
		return
	}
	ctx, cancel := sinkContext(a.cfg.SinkTimeout)
	defer cancel()
	if err := reporter.ReportState(ctx, change); err != nil {
		a.logger.Warn("health state report failed", "sink", a.sink.Name(), "error", err)
	}
}
