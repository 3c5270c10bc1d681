package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// Effect is a side effect to run after an operation was fulfilled.
type Effect interface {
	Name() string
	Run(ctx context.Context) error
}

// EffectFunc adapts a function to Effect.
type EffectFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (e EffectFunc) Name() string { return e.Label }

func (e EffectFunc) Run(ctx context.Context) error {
	if e.Fn == nil {
		return nil
	}
	return e.Fn(ctx)
}

// RunEffects runs every effect in order. A failing effect does not stop the
// rest; all failures are joined.
func RunEffects(ctx context.Context, effects []Effect) error {
	var errs []error
	for _, eff := range effects {
		if err := eff.Run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", eff.Name(), err))
		}
	}
	return errors.Join(errs...)
}
