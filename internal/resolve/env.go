// Package resolve implements the PEP 440/508/425/691/658-aware dependency
// resolution engine: a resolvelib-shaped backtracking provider plus the
// outer driver that turns a ResolutionParams request into a
// ResolutionResult.
//
// Grounded on original_source's internal/resolvelib.py
// (ProjectResolutionProvider), model/resolution.py (the env/policy/spec
// dataclasses below), and api.py (the outer driver in facade.go).
package resolve

import (
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/pep440"
	"github.com/k8ika0s/wheel-resolver/internal/pep508"
)

// RequiresDistURLPolicy governs how a direct URL embedded in a
// Requires-Dist header is treated during dependency expansion.
type RequiresDistURLPolicy string

const (
	RequiresDistURLHonor  RequiresDistURLPolicy = "honor"
	RequiresDistURLIgnore RequiresDistURLPolicy = "ignore"
	RequiresDistURLRaise  RequiresDistURLPolicy = "raise"
)

// YankedWheelPolicy governs whether a yanked index file is eligible.
type YankedWheelPolicy string

const (
	YankedSkip  YankedWheelPolicy = "skip"
	YankedAllow YankedWheelPolicy = "allow"
)

// PreReleasePolicy governs whether prerelease versions satisfy a
// specifier set.
type PreReleasePolicy string

const (
	PreReleaseDefault   PreReleasePolicy = "default"
	PreReleaseAllow     PreReleasePolicy = "allow"
	PreReleaseDisallow  PreReleasePolicy = "disallow"
)

// InvalidRequiresDistPolicy governs how an unparseable Requires-Dist line
// is handled during dependency expansion.
type InvalidRequiresDistPolicy string

const (
	InvalidRequiresDistSkip  InvalidRequiresDistPolicy = "skip"
	InvalidRequiresDistRaise InvalidRequiresDistPolicy = "raise"
)

// ResolutionPolicy bundles the knobs that vary how strict a
// ResolutionEnv's candidate filtering and dependency expansion are.
type ResolutionPolicy struct {
	RequiresDistURLPolicy        RequiresDistURLPolicy
	AllowedRequiresDistURLSchemes map[string]bool // nil means any scheme is allowed
	YankedWheelPolicy            YankedWheelPolicy
	PreReleasePolicy             PreReleasePolicy
	InvalidRequiresDistPolicy    InvalidRequiresDistPolicy
}

// DefaultPolicy returns the original's documented defaults: honor direct
// URLs, skip yanked files, default prerelease handling, skip invalid
// Requires-Dist lines.
func DefaultPolicy() ResolutionPolicy {
	return ResolutionPolicy{
		RequiresDistURLPolicy:     RequiresDistURLHonor,
		YankedWheelPolicy:         YankedSkip,
		PreReleasePolicy:          PreReleaseDefault,
		InvalidRequiresDistPolicy: InvalidRequiresDistSkip,
	}
}

// ResolutionEnv describes one target environment the solver resolves
// against: its compatible tag universe and PEP 508 marker variables.
type ResolutionEnv struct {
	Identifier           string
	SupportedTags        map[string]bool
	SupportedTagsOrdered []string // most specific first
	MarkerEnvironment    map[string]string
	Policy               ResolutionPolicy
}

// PythonVersion derives the environment's Python version string per
// spec.md §4.5.1: python_full_version preferred over python_version;
// absence of either yields "0".
func (e ResolutionEnv) PythonVersion() string {
	if v, ok := e.MarkerEnvironment["python_full_version"]; ok && v != "" {
		return v
	}
	if v, ok := e.MarkerEnvironment["python_version"]; ok && v != "" {
		return v
	}
	return "0"
}

// WheelSpec is a user-declared requirement: a name plus either (or both)
// a PEP 440 version specifier set and a direct URI.
type WheelSpec struct {
	Name       string
	Version    pep440.SpecifierSet
	HasVersion bool
	Extras     []string
	Marker     *pep508.Marker
	URI        string
}

// Validate enforces spec.md §3's WheelSpec invariant: at least one of
// version or uri must be present.
func (w WheelSpec) Validate() error {
	if !w.HasVersion && w.URI == "" {
		return fmt.Errorf("resolve: wheel spec %q must carry a version specifier or a uri", w.Name)
	}
	return nil
}

// ResolutionMode selects what a ResolutionResult populates beyond
// requirements_text.
type ResolutionMode string

const (
	ModeRequirementsText ResolutionMode = "requirements_txt"
	ModeResolvedWheels   ResolutionMode = "resolved_wheels"
)

// ResolutionParams is the facade's input: spec.md §6's ResolutionParams.
type ResolutionParams struct {
	RootWheels         []WheelSpec
	TargetEnvironments []ResolutionEnv
	Mode               ResolutionMode
	RepoID             string
	RepoConfig         map[string]any
	StrategyConfigs    map[string]map[string]map[string]any // strategy_name -> instance_id -> raw cfg
}

// ResolutionResult is the facade's output: spec.md §6's ResolutionResult.
type ResolutionResult struct {
	RequirementsByEnv   map[string]string
	ResolvedWheelsByEnv map[string][]string
}

// ResolutionError is the taxonomy root for a facade-level failure that
// names the environment it occurred in, mirroring spec.md §7's
// ResolutionError{message}.
type ResolutionError struct {
	EnvIdentifier string
	Msg           string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve: env %s: %s", e.EnvIdentifier, e.Msg)
}

// ArtifactResolutionError wraps a chain resolution failure with the
// environment it occurred in, mirroring spec.md §7's
// ArtifactResolutionError.
type ArtifactResolutionError struct {
	EnvIdentifier string
	Cause         error
}

func (e *ArtifactResolutionError) Error() string {
	return fmt.Sprintf("resolve: env %s: artifact resolution failed: %v", e.EnvIdentifier, e.Cause)
}

func (e *ArtifactResolutionError) Unwrap() error { return e.Cause }
