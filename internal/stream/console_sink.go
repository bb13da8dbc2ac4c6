package stream

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"healthmon-agent/internal/model"
)

// ConsoleSink renders alerts and health transitions for a terminal.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer

	ts         *color.Color
	reactive   *color.Color
	predictive *color.Color
	healthy    *color.Color
}

func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:        out,
		ts:         color.New(color.FgHiBlack),
		reactive:   color.New(color.FgRed, color.Bold),
		predictive: color.New(color.FgYellow),
		healthy:    color.New(color.FgGreen),
	}
}

func (s *ConsoleSink) Name() string {
	return "console"
}

func (s *ConsoleSink) Notify(_ context.Context, ev model.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.reactive
	label := "ALERT"
	if ev.Predictive() {
		c = s.predictive
		label = "PREDICTIVE"
	}
	if _, err := s.ts.Fprintf(s.out, "[%s] ", ev.Timestamp.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	_, err := c.Fprintf(s.out, "%-10s %s (%s)\n", label, ev.String(), ev.Instance)
	return err
}

func (s *ConsoleSink) ReportState(_ context.Context, change model.StateChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ts.Fprintf(s.out, "[%s] ", change.Timestamp.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if change.To == model.HealthWarning {
		_, err := s.reactive.Fprintf(s.out, "System Status: WARNING - %d alert(s) (%s)\n", change.Alerts, change.Instance)
		return err
	}
	_, err := s.healthy.Fprintf(s.out, "System Status: %s (%s)\n", strings.ToUpper(change.To.String()), change.Instance)
	return err
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}
