package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Probe determines the value of a single facet.
// A probe must not mutate host state and must not keep mutable state
// between calls, so one probe value can serve concurrent acquisitions.
type Probe interface {
	// Field returns the facet this probe fills
	Field() Field

	// Probe returns the facet value, or an error wrapping ErrUnavailable
	Probe(ctx context.Context) (string, error)
}

// Strategy is one named way of determining a facet.
type Strategy struct {
	Name string
	Fn   func(ctx context.Context) (string, error)
}

// Chain builds a probe that tries strategies in order and returns the first
// non-empty result.
func Chain(field Field, strategies ...Strategy) Probe {
	return &chain{field: field, strategies: strategies}
}

type chain struct {
	field      Field
	strategies []Strategy
}

func (c *chain) Field() Field {
	return c.field
}

// Strategies returns the strategy names in fallback order.
func (c *chain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name)
	}
	return names
}

func (c *chain) Probe(ctx context.Context) (string, error) {
	var lastErr error

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		value, err := s.Fn(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Results that arrive after the deadline are stale
			lastErr = fmt.Errorf("%s: %w", s.Name, ctxErr)
			break
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.Name, err)
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" {
			lastErr = fmt.Errorf("%s: empty result", s.Name)
			continue
		}

		return value, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no strategies")
	}
	return Unavailable, fmt.Errorf("%w: %s: %w", ErrUnavailable, c.field, lastErr)
}

// Fixed returns a strategy that always yields value.
func Fixed(name, value string) Strategy {
	return Strategy{
		Name: name,
		Fn: func(context.Context) (string, error) {
			return value, nil
		},
	}
}
