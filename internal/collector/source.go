package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthmon-agent/internal/model"
)

// MetricSource supplies point-in-time readings. Implementations return a
// fresh Sample per call.
type MetricSource interface {
	Name() string
	Collect(ctx context.Context) (model.Sample, error)
}

// CollectionError marks a transient failure to read a source. The tick is
// skipped and the schedule continues.
type CollectionError struct {
	Source string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collect %s: %v", e.Source, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

func asCollectionError(source string, err error) *CollectionError {
	var ce *CollectionError
	if errors.As(err, &ce) {
		return ce
	}
	return &CollectionError{Source: source, Err: err}
}

// StaticSource reports the same values on every call.
type StaticSource struct {
	values map[string]float64
	now    func() time.Time
}

func NewStaticSource(values map[string]float64) *StaticSource {
	return &StaticSource{values: values, now: time.Now}
}

func (s *StaticSource) Name() string {
	return "static"
}

func (s *StaticSource) Collect(ctx context.Context) (model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return model.Sample{}, err
	}
	return model.NewSample(s.now().UTC(), s.values), nil
}

// FuncSource adapts a function to MetricSource.
type FuncSource struct {
	SourceName string
	Fn         func(ctx context.Context) (model.Sample, error)
}

func (f FuncSource) Name() string {
	if f.SourceName == "" {
		return "func"
	}
	return f.SourceName
}

func (f FuncSource) Collect(ctx context.Context) (model.Sample, error) {
	return f.Fn(ctx)
}
