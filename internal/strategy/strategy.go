// Package strategy defines the abstract artifact-resolution strategy
// contract: a polymorphic "try to materialize this key at this
// destination" operation, plus the criticality and instantiation-policy
// enums that govern how the chain resolver and lifecycle treat a strategy.
//
// Grounded on original_source's strategies.py
// (BaseArtifactResolutionStrategy, StrategyCriticality,
// InstantiationPolicy, StrategyNotApplicable).
package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
)

// ErrNotApplicable is the sentinel a Strategy returns to signal normal
// "this strategy does not handle this key" control flow, distinct from a
// real failure. It corresponds to the original's StrategyNotApplicable
// exception; here, matching the teacher's sentinel-error idiom (see
// cas.Store/queue.Backend), it is a plain error value checked with
// errors.Is.
var ErrNotApplicable = errors.New("strategy: not applicable")

// Criticality governs how the chain resolver treats a strategy's failure
// and how strict the lifecycle's "mixed chain" validation is.
type Criticality string

const (
	Imperative Criticality = "imperative"
	Required   Criticality = "required"
	Optional   Criticality = "optional"
	Disabled   Criticality = "disabled"
)

// ParseCriticality coerces a raw config string to a Criticality, falling
// back to Optional for anything unrecognized (spec.md §4.2: "string
// values coerced; unknown → optional with fallback").
func ParseCriticality(raw string) Criticality {
	switch Criticality(raw) {
	case Imperative, Required, Optional, Disabled:
		return Criticality(raw)
	default:
		return Optional
	}
}

// InstantiationPolicy governs how many live instances of a strategy class
// may exist in one run.
type InstantiationPolicy string

const (
	Singleton InstantiationPolicy = "singleton"
	Prototype InstantiationPolicy = "prototype"
)

// ParseInstantiationPolicy coerces a raw string, defaulting to Singleton
// (the original's ClassVar default).
func ParseInstantiationPolicy(raw string) InstantiationPolicy {
	if InstantiationPolicy(raw) == Prototype {
		return Prototype
	}
	return Singleton
}

// Strategy is the contract every artifact-acquisition handler implements.
// A strategy must not consult or mutate any repository; it only attempts
// to produce the artifact at destinationURI and describe what it
// produced.
type Strategy interface {
	Name() string
	InstanceID() string
	Precedence() int
	Criticality() Criticality
	Source() artifact.Source

	// Resolve attempts to materialize key at destinationURI. It returns
	// (record, nil) on success, (nil, ErrNotApplicable) to signal normal
	// "try the next strategy" control flow, or (nil, err) for any other
	// failure, which the chain resolver collects as a cause and continues
	// past.
	Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error)
}

// Base is embeddable by concrete strategy implementations to satisfy the
// identity/ordering portion of the Strategy contract, mirroring the
// original's BaseArtifactResolutionStrategy dataclass fields.
type Base struct {
	StrategyName     string
	InstanceIDValue  string
	PrecedenceValue  int
	CriticalityValue Criticality
	SourceValue      artifact.Source
}

func (b Base) Name() string               { return b.StrategyName }
func (b Base) InstanceID() string         { return b.InstanceIDValue }
func (b Base) Precedence() int            { return b.PrecedenceValue }
func (b Base) Criticality() Criticality    { return b.CriticalityValue }
func (b Base) Source() artifact.Source    { return b.SourceValue }

// NewBase constructs a Base, defaulting InstanceID to Name and Precedence
// to 100 when zero, matching the original's __post_init__ defaults.
func NewBase(name, instanceID string, precedence int, crit Criticality, source artifact.Source) Base {
	if instanceID == "" {
		instanceID = name
	}
	if precedence == 0 {
		precedence = 100
	}
	if crit == "" {
		crit = Optional
	}
	return Base{
		StrategyName:     name,
		InstanceIDValue:  instanceID,
		PrecedenceValue:  precedence,
		CriticalityValue: crit,
		SourceValue:      source,
	}
}

// Kind identifies which artifact key type a strategy handles, used by the
// lifecycle to bucket discovered/instantiated strategies (spec.md §4.2's
// "dispatching instances by isinstance into index/core/wheel buckets").
type Kind string

const (
	KindIndexMetadata Kind = "index_metadata"
	KindCoreMetadata  Kind = "core_metadata"
	KindWheelFile     Kind = "wheel_file"
)

// Typed is implemented by concrete strategies to declare which artifact
// kind they resolve, standing in for the original's typed subclassing
// (IndexMetadataStrategy/CoreMetadataStrategy/WheelFileStrategy).
type Typed interface {
	Strategy
	Kind() Kind
}

func (c Criticality) String() string { return string(c) }

func (c Criticality) validate() error {
	switch c {
	case Imperative, Required, Optional, Disabled:
		return nil
	default:
		return fmt.Errorf("strategy: invalid criticality %q", c)
	}
}
