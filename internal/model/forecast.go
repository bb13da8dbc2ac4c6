package model

// Forecast is a predicted sample for a future window. Confidence is reported
// by the predictor in [0,100] and is not interpreted further.
type Forecast struct {
	Sample     Sample  `json:"sample"`
	Confidence float64 `json:"confidence"`
}
