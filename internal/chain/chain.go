// Package chain implements the strategy-chain resolver: given an ordered
// list of strategies for one artifact kind, try each in turn against a
// key, returning the first materialized record and otherwise aggregating
// every non-"not applicable" failure into one error.
//
// Grounded on original_source's internal/orchestration.py
// (StrategyChainArtifactResolver).
package chain

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// ResolutionError aggregates every cause collected while walking a chain
// that never produced a record. It corresponds to spec.md §6/§7's
// ArtifactResolutionError{message, key, causes}.
type ResolutionError struct {
	Key    artifact.Key
	Causes []error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("chain: no strategy resolved key (kind=%s, %d causes)", e.Key.Kind(), len(e.Causes))
}

func (e *ResolutionError) Unwrap() []error { return e.Causes }

// Resolver tries an ordered sequence of strategies against one artifact
// kind. Strategies are expected to already be sorted by precedence (the
// lifecycle's responsibility); the chain resolver only enforces
// criticality uniformity and walks the list in order.
type Resolver struct {
	strategies []strategy.Strategy
}

// New constructs a chain Resolver over strategies, which must already be
// precedence-ordered.
func New(strategies []strategy.Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// ErrMixedCriticality is returned when a chain contains both imperative
// and non-imperative strategies, a configuration error per spec.md §4.3
// ("either ALL strategies are imperative, or NONE; mixing is fatal").
var ErrMixedCriticality = errors.New("chain: mixed imperative and non-imperative strategies")

// Resolve walks the chain in order, returning the first strategy's
// produced record, or a *ResolutionError aggregating every cause if none
// succeeds.
func (r *Resolver) Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	if err := r.validateUniformCriticality(); err != nil {
		return nil, err
	}

	var causes []error
	for _, s := range r.strategies {
		if s.Criticality() == strategy.Disabled {
			continue
		}
		rec, err := tryResolve(ctx, s, key, destinationURI)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, strategy.ErrNotApplicable) {
			continue
		}
		causes = append(causes, fmt.Errorf("%s: %w", s.InstanceID(), err))
	}
	return nil, &ResolutionError{Key: key, Causes: causes}
}

// tryResolve invokes a strategy, converting a panic into an error cause
// rather than letting it unwind the whole chain. A panic whose value is a
// runtime.Error (a nil-pointer dereference or an out-of-range index deep
// in a strategy, say) is re-raised rather than folded into the aggregated
// cause list. Cancellation reaches the chain as an ordinary error returned
// by the strategy (ctx.Err()), not as a panic.
func tryResolve(ctx context.Context, s strategy.Strategy, key artifact.Key, destinationURI string) (rec *artifact.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			if re, ok := p.(runtime.Error); ok {
				panic(re)
			}
			err = fmt.Errorf("strategy panicked: %v", p)
		}
	}()
	return s.Resolve(ctx, key, destinationURI)
}

func (r *Resolver) validateUniformCriticality() error {
	seenImperative := false
	seenOther := false
	for _, s := range r.strategies {
		if s.Criticality() == strategy.Disabled {
			continue
		}
		if s.Criticality() == strategy.Imperative {
			seenImperative = true
		} else {
			seenOther = true
		}
	}
	if seenImperative && seenOther {
		return ErrMixedCriticality
	}
	return nil
}
