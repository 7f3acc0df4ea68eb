package service

import (
	"fmt"

	"github.com/k8ika0s/wheel-resolver/internal/pep425"
	"github.com/k8ika0s/wheel-resolver/internal/pep508"
	"github.com/k8ika0s/wheel-resolver/internal/queue"
	"github.com/k8ika0s/wheel-resolver/internal/resolve"
)

// paramsFromRequest turns a queued/posted job into the facade's
// ResolutionParams, parsing each requirement string with pep508 and
// rebuilding a ResolutionEnv per queue.EnvSpec.
func paramsFromRequest(cfg Config, req queue.Request) (resolve.ResolutionParams, error) {
	roots := make([]resolve.WheelSpec, 0, len(req.Requirements))
	for _, raw := range req.Requirements {
		parsed, err := pep508.ParseRequirement(raw)
		if err != nil {
			return resolve.ResolutionParams{}, fmt.Errorf("job %s: requirement %q: %w", req.JobID, raw, err)
		}
		roots = append(roots, resolve.WheelSpec{
			Name:       parsed.Name,
			Version:    parsed.Specifier,
			HasVersion: !parsed.Specifier.Empty(),
			Extras:     parsed.Extras,
			Marker:     parsed.Marker,
			URI:        parsed.URL,
		})
	}

	envs := make([]resolve.ResolutionEnv, 0, len(req.Environments))
	for _, es := range req.Environments {
		envs = append(envs, envFromSpec(es))
	}

	repoID := req.RepoID
	if repoID == "" {
		repoID = cfg.DefaultRepoID
	}

	mode := resolve.ModeRequirementsText
	if req.Mode == string(resolve.ModeResolvedWheels) {
		mode = resolve.ModeResolvedWheels
	}

	return resolve.ResolutionParams{
		RootWheels:         roots,
		TargetEnvironments: envs,
		Mode:               mode,
		RepoID:             repoID,
	}, nil
}

// envFromSpec rebuilds a ResolutionEnv from its wire shape, deriving a
// supported-tag universe from the marker environment's python_version
// when the caller doesn't supply one explicitly (the common case for a
// pure-Python-leaning request).
func envFromSpec(es queue.EnvSpec) resolve.ResolutionEnv {
	tags := es.SupportedTags
	if len(tags) == 0 {
		pv := es.MarkerEnvironment["python_version"]
		if pv == "" {
			pv = "3"
		}
		tags = pep425.ExpandEnvironmentTags(pv, "py3-none-any")
	}

	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}

	return resolve.ResolutionEnv{
		Identifier:           es.Identifier,
		SupportedTags:        tagSet,
		SupportedTagsOrdered: tags,
		MarkerEnvironment:    es.MarkerEnvironment,
		Policy:               resolve.DefaultPolicy(),
	}
}
