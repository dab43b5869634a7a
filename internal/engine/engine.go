package engine

import (
	"context"
	"errors"
)

// ErrIncompatibleState is returned by LoadState for snapshots the engine
// cannot restore.
var ErrIncompatibleState = errors.New("incompatible engine state")

// TokenFunc receives generated text in order. Returning an error stops
// generation.
type TokenFunc func(piece string) error

// Engine is a stateful text generator. Each Predict continues from the state
// left by the previous completed one.
type Engine interface {
	Model() string
	Predict(ctx context.Context, prompt string, fn TokenFunc) error
	SaveState() ([]byte, error)
	LoadState(state []byte) error
	Reset()
}

const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.1
)

// Options control generation. A nil Temperature means DefaultTemperature;
// a nil Seed leaves sampling unseeded.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	Seed        *int64
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.Temperature == nil {
		t := DefaultTemperature
		o.Temperature = &t
	}
	return o
}
