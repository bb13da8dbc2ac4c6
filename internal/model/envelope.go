package model

type EnvelopeType string

const (
	EnvelopeAlert  EnvelopeType = "alert"
	EnvelopeHealth EnvelopeType = "health"
)

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type          EnvelopeType `json:"type"`
	Instance      string       `json:"instance"`
	TimestampUnix int64        `json:"timestamp_unix"`
	Payload       any          `json:"payload"`
}
