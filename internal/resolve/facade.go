package resolve

import (
	"context"
	"fmt"
	"sort"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/chain"
	"github.com/k8ika0s/wheel-resolver/internal/lifecycle"
	"github.com/k8ika0s/wheel-resolver/internal/repository"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

// Engine is the facade's dependency-injected driver: a strategy class
// registry (populated by the caller, typically via
// builtinstrategies.RegisterAll plus any entrypoint-origin packages) and a
// repository factory registry, grounded on api.py's module-level
// ProjectResolutionEngine.resolve staticmethod. Go has no module-level
// staticmethod convention that also wants injected registries, so the
// registries become Engine fields rather than globals or function
// parameters repeated at every call site.
type Engine struct {
	Strategies   *lifecycle.Registry
	Repositories *repository.Registry
}

// NewEngine constructs an Engine over the given registries.
func NewEngine(strategies *lifecycle.Registry, repositories *repository.Registry) *Engine {
	return &Engine{Strategies: strategies, Repositories: repositories}
}

// Resolve runs the complete pipeline spec.md §4.5.8/§6 describes: discover
// -> plan -> gate -> bucket strategies, open the repository, and resolve
// every target environment against it, producing a ResolutionResult.
//
// Grounded on api.py's ProjectResolutionEngine.resolve.
func (e *Engine) Resolve(ctx context.Context, params ResolutionParams) (*ResolutionResult, error) {
	rawConfigs := normalizeStrategyConfigs(params.StrategyConfigs)

	repoID := params.RepoID
	if repoID == "" {
		repoID = "ephemeral"
	}
	repo, err := e.Repositories.Open(repoID, params.RepoConfig)
	if err != nil {
		return nil, fmt.Errorf("resolve: open repository %q: %w", repoID, err)
	}
	defer repo.Close()

	services, err := e.buildServices(repo, rawConfigs)
	if err != nil {
		return nil, err
	}

	// Target environments are resolved one after another: each gets its
	// own provider/solver, but all of them share the coordinators and the
	// repository built above. The first environment's failure stops the
	// run.
	envResults := make([]envResolution, 0, len(params.TargetEnvironments))
	for _, env := range params.TargetEnvironments {
		res, err := e.resolveEnv(ctx, services, params, env)
		if err != nil {
			return nil, err
		}
		envResults = append(envResults, *res)
	}

	reqsByEnv := map[string]string{}
	wheelsByEnv := map[string][]string{}
	for _, res := range envResults {
		reqsByEnv[res.identifier] = res.requirementsText
		if params.Mode == ModeResolvedWheels {
			wheelsByEnv[res.identifier] = res.resolvedWheelURIs
		}
	}

	return &ResolutionResult{RequirementsByEnv: reqsByEnv, ResolvedWheelsByEnv: wheelsByEnv}, nil
}

// envResolution holds one target environment's rendered output, collected
// by Resolve in target-environment order.
type envResolution struct {
	identifier        string
	requirementsText  string
	resolvedWheelURIs []string
}

// resolveEnv runs the full roots -> provider -> solver -> render pipeline
// for a single target environment.
func (e *Engine) resolveEnv(ctx context.Context, services *Services, params ResolutionParams, env ResolutionEnv) (*envResolution, error) {
	roots, err := rootsForEnv(params, env)
	if err != nil {
		return nil, &ResolutionError{EnvIdentifier: env.Identifier, Msg: err.Error()}
	}

	provider := NewProjectProvider(ctx, services, env, "")
	solver := NewResolver(provider)

	result, err := solver.Resolve(roots)
	if err != nil {
		return nil, &ArtifactResolutionError{EnvIdentifier: env.Identifier, Cause: err}
	}

	wkByName := wheelKeysByName(result)
	depsByParent := depsByParentFromResult(result, wkByName)
	if err := applyDependencyIDs(depsByParent, wkByName); err != nil {
		return nil, &ResolutionError{EnvIdentifier: env.Identifier, Msg: err.Error()}
	}

	wheelKeys := make([]*artifact.WheelKey, 0, len(wkByName))
	for _, wk := range wkByName {
		wheelKeys = append(wheelKeys, wk)
	}

	text, err := formatRequirementsText(wheelKeys)
	if err != nil {
		return nil, &ResolutionError{EnvIdentifier: env.Identifier, Msg: err.Error()}
	}

	res := &envResolution{identifier: env.Identifier, requirementsText: text}
	if params.Mode == ModeResolvedWheels {
		res.resolvedWheelURIs = resolvedWheelURIs(wheelKeys)
	}
	return res, nil
}

// normalizeStrategyConfigs flattens ResolutionParams.StrategyConfigs
// (strategy_name -> instance_id -> raw cfg) into the
// map[string]*lifecycle.RawConfig shape lifecycle.Load consumes, standing
// in for api.py's _normalize_strategy_configs (Go's typed input already
// carries the strategy_name/instance_id structure, so there is no
// instance_id-or-strategy_name disambiguation left to do here).
func normalizeStrategyConfigs(cfgs map[string]map[string]map[string]any) map[string]*lifecycle.RawConfig {
	out := make(map[string]*lifecycle.RawConfig, len(cfgs))
	for strategyName, instances := range cfgs {
		out[strategyName] = &lifecycle.RawConfig{StrategyName: strategyName, Instances: instances}
	}
	return out
}

// buildServices runs the strategy lifecycle, applies the global
// criticality-gating rule, buckets the surviving instances by kind, and
// wires each kind's chain resolver into a repository.Coordinator.
//
// Grounded on services.py's load_services: "if any discovered strategy is
// IMPERATIVE, only IMPERATIVE strategies participate; otherwise REQUIRED
// and OPTIONAL do" is a global rule evaluated once over every discovered
// strategy, distinct from chain.Resolver's local "no mixing within one
// chain" validation.
func (e *Engine) buildServices(repo repository.ArtifactRepository, rawConfigs map[string]*lifecycle.RawConfig) (*Services, error) {
	instances, err := lifecycle.Load(e.Strategies, rawConfigs)
	if err != nil {
		return nil, fmt.Errorf("resolve: load strategies: %w", err)
	}

	gated := gateByCriticality(instances)
	buckets := lifecycle.BucketByKind(gated)

	indexResolver := chain.New(buckets[strategy.KindIndexMetadata])
	coreResolver := chain.New(buckets[strategy.KindCoreMetadata])

	return &Services{
		IndexMetadata: repository.NewCoordinator(repo, indexResolver),
		CoreMetadata:  repository.NewCoordinator(repo, coreResolver),
	}, nil
}

// gateByCriticality implements the global participation rule: if any
// instance is Imperative, only Imperative instances survive; otherwise
// every non-Disabled instance survives (lifecycle.Load has already
// dropped Disabled plans, so no further filtering is needed in that
// branch).
func gateByCriticality(instances []strategy.Strategy) []strategy.Strategy {
	hasImperative := false
	for _, s := range instances {
		if s.Criticality() == strategy.Imperative {
			hasImperative = true
			break
		}
	}
	if !hasImperative {
		return instances
	}
	out := make([]strategy.Strategy, 0, len(instances))
	for _, s := range instances {
		if s.Criticality() == strategy.Imperative {
			out = append(out, s)
		}
	}
	return out
}

// rootsForEnv filters params.RootWheels by marker evaluation against env,
// mirroring api.py's _roots_for_env, and validates each surviving
// WheelSpec.
func rootsForEnv(params ResolutionParams, env ResolutionEnv) ([]*ResolverRequirement, error) {
	var roots []*ResolverRequirement
	for _, ws := range params.RootWheels {
		if err := ws.Validate(); err != nil {
			return nil, err
		}
		if ws.Marker != nil && !ws.Marker.Evaluate(env.MarkerEnvironment, "") {
			continue
		}
		roots = append(roots, &ResolverRequirement{WheelSpec: ws})
	}
	return roots, nil
}

// wheelKeysByName extracts the pinned WheelKey for every identifier in the
// solver's result mapping, mirroring api.py's _wk_by_name_from_result.
func wheelKeysByName(result *Result) map[string]*artifact.WheelKey {
	out := make(map[string]*artifact.WheelKey, len(result.Mapping))
	for name, cand := range result.Mapping {
		out[name] = cand.WheelKey
	}
	return out
}

// depsByParentFromResult derives parent -> {child} edges from the
// solver's accumulated criteria, keeping only edges where both endpoints
// are pinned identifiers, mirroring api.py's _deps_by_parent_from_result
// exactly (DESIGN.md's Open Question #2).
func depsByParentFromResult(result *Result, wkByName map[string]*artifact.WheelKey) map[string]map[string]bool {
	depsByParent := make(map[string]map[string]bool, len(wkByName))
	for name := range wkByName {
		depsByParent[name] = map[string]bool{}
	}

	for childName, crit := range result.Criteria {
		if _, childPinned := wkByName[childName]; !childPinned {
			continue
		}
		for _, info := range crit.Information {
			if info.Parent == nil {
				continue
			}
			parentName := info.Parent.Name()
			if set, ok := depsByParent[parentName]; ok {
				set[childName] = true
			}
		}
	}
	return depsByParent
}

// applyDependencyIDs sets each pinned WheelKey's write-once dependency_ids
// from depsByParent, mirroring api.py's _apply_dependency_ids.
func applyDependencyIDs(depsByParent map[string]map[string]bool, wkByName map[string]*artifact.WheelKey) error {
	for parentName, childNames := range depsByParent {
		parentWK, ok := wkByName[parentName]
		if !ok {
			continue
		}
		sorted := make([]string, 0, len(childNames))
		for child := range childNames {
			sorted = append(sorted, child)
		}
		sort.Strings(sorted)
		if err := parentWK.SetDependencyIDs(sorted); err != nil {
			return fmt.Errorf("resolve: set dependency_ids on %s: %w", parentWK.Identifier(), err)
		}
	}
	return nil
}

// formatRequirementsText sorts wheelKeys and joins their reqtxt blocks,
// mirroring api.py's _format_requirements_text.
func formatRequirementsText(wheelKeys []*artifact.WheelKey) (string, error) {
	sorted := append([]*artifact.WheelKey(nil), wheelKeys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	blocks := make([]string, 0, len(sorted))
	for _, wk := range sorted {
		block, err := wk.ReqTxtBlock()
		if err != nil {
			return "", err
		}
		blocks = append(blocks, block)
	}

	text := ""
	for i, b := range blocks {
		if i > 0 {
			text += "\n\n"
		}
		text += b
	}
	return text + "\n", nil
}

// resolvedWheelURIs renders the resolved_wheels mode's per-environment
// payload: every pinned wheel's origin_uri, sorted by identifier
// (DESIGN.md's Open Question #1 decision — the original leaves this
// unpopulated, "resolved_wheels" mode would otherwise be meaningless).
func resolvedWheelURIs(wheelKeys []*artifact.WheelKey) []string {
	sorted := append([]*artifact.WheelKey(nil), wheelKeys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	out := make([]string, 0, len(sorted))
	for _, wk := range sorted {
		out = append(out, wk.OriginURI())
	}
	return out
}
