package predict

import (
	"context"
	"math"
	"time"

	"healthmon-agent/internal/model"
)

const DefaultMinSamples = 5

// LinearTrend fits a least-squares line per metric and extrapolates it to
// the end of the window. Confidence is the mean coefficient of
// determination across metrics, scaled to [0,100].
type LinearTrend struct {
	MinSamples int
}

func NewLinearTrend(minSamples int) *LinearTrend {
	if minSamples < 2 {
		minSamples = 2
	}
	return &LinearTrend{MinSamples: minSamples}
}

func (l *LinearTrend) Forecast(ctx context.Context, history []model.Sample, window time.Duration) (model.Forecast, error) {
	if err := ctx.Err(); err != nil {
		return model.Forecast{}, err
	}
	if len(history) < l.MinSamples {
		return model.Forecast{}, ErrInsufficientHistory
	}

	origin := history[0].Timestamp
	last := history[len(history)-1]
	target := last.Timestamp.Add(window).Sub(origin).Seconds()

	values := make(map[string]float64, len(last.Values))
	var r2Sum float64
	for _, metric := range last.Metrics() {
		xs := make([]float64, 0, len(history))
		ys := make([]float64, 0, len(history))
		for _, s := range history {
			if v, ok := s.Value(metric); ok && finite(v) {
				xs = append(xs, s.Timestamp.Sub(origin).Seconds())
				ys = append(ys, v)
			}
		}
		if len(xs) < l.MinSamples {
			continue
		}
		slope, intercept, r2 := fit(xs, ys)
		projected := intercept + slope*target
		if !finite(projected) || !finite(r2) {
			continue
		}
		values[metric] = projected
		r2Sum += r2
	}
	if len(values) == 0 {
		return model.Forecast{}, ErrInsufficientHistory
	}
	return model.Forecast{
		Sample:     model.Sample{Timestamp: last.Timestamp.Add(window), Values: values},
		Confidence: 100 * r2Sum / float64(len(values)),
	}, nil
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// fit returns the least-squares line through the points and its R².
// Points sharing one x collapse to their mean with no confidence.
func fit(xs, ys []float64) (slope, intercept, r2 float64) {
	n := float64(len(xs))
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n

	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, my, 0
	}
	slope = sxy / sxx
	intercept = my - slope*mx
	if syy == 0 {
		return slope, intercept, 1
	}
	r2 = sxy * sxy / (sxx * syy)
	return slope, intercept, r2
}
