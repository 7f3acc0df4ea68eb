package resolve

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/pep425"
	"github.com/k8ika0s/wheel-resolver/internal/pep440"
	"github.com/k8ika0s/wheel-resolver/internal/pep508"
	"github.com/k8ika0s/wheel-resolver/internal/pep658"
	"github.com/k8ika0s/wheel-resolver/internal/pep691"
	"github.com/k8ika0s/wheel-resolver/internal/repository"
)

// Services bundles the per-kind coordinators a ProjectProvider needs,
// standing in for the original's ResolutionServices (services.py).
type Services struct {
	IndexMetadata *repository.Coordinator
	CoreMetadata  *repository.Coordinator
}

type coreMetadataCacheKey struct {
	name, version, tag, originURI string
}

// ProjectProvider is the concrete Provider implementation, grounded
// method-for-method on internal/resolvelib.py's ProjectResolutionProvider.
// Its per-run caches (indexCache, coreMetadataCache,
// requestedExtrasByName) are private struct fields rather than globals,
// following other_examples's deps.dev pypi-resolve.go provider shape;
// spec.md §5 documents them as "private to a single solver instance and
// not thread-safe", matching that choice.
type ProjectProvider struct {
	ctx       context.Context // bounded to one Resolve() call's lifetime; never escapes or crosses goroutines
	services  *Services
	env       ResolutionEnv
	indexBase string

	indexCache            map[string]pep691.Metadata
	coreMetadataCache     map[coreMetadataCacheKey]pep658.Metadata
	requestedExtrasByName map[string]map[string]bool
}

// NewProjectProvider constructs a ProjectProvider scoped to one
// ResolutionEnv. ctx bounds every coordinator call made during the
// lifetime of a single Resolver.Resolve invocation.
func NewProjectProvider(ctx context.Context, services *Services, env ResolutionEnv, indexBase string) *ProjectProvider {
	if indexBase == "" {
		indexBase = "https://pypi.org/simple"
	}
	return &ProjectProvider{
		ctx:                   ctx,
		services:              services,
		env:                   env,
		indexBase:             indexBase,
		indexCache:            map[string]pep691.Metadata{},
		coreMetadataCache:     map[coreMetadataCacheKey]pep658.Metadata{},
		requestedExtrasByName: map[string]map[string]bool{},
	}
}

// FindMatches implements spec.md §4.5.1.
func (p *ProjectProvider) FindMatches(identifier string, requirements []*ResolverRequirement, _ map[[3]string]bool) ([]*ResolverCandidate, error) {
	name := artifact.NormalizeProjectName(identifier)
	p.accumulateExtras(name, requirements)

	uriCandidates, sawURI, err := p.findMatchesFromURIs(name, requirements)
	if err != nil {
		return nil, err
	}
	if sawURI {
		sortCandidates(uriCandidates)
		return uriCandidates, nil
	}

	return p.findMatchesFromIndex(name, requirements)
}

func (p *ProjectProvider) accumulateExtras(name string, requirements []*ResolverRequirement) {
	set, ok := p.requestedExtrasByName[name]
	if !ok {
		set = map[string]bool{}
		p.requestedExtrasByName[name] = set
	}
	for _, r := range requirements {
		for _, extra := range r.WheelSpec.Extras {
			set[extra] = true
		}
	}
}

func (p *ProjectProvider) findMatchesFromURIs(name string, requirements []*ResolverRequirement) ([]*ResolverCandidate, bool, error) {
	var uriReqs []*ResolverRequirement
	for _, r := range requirements {
		if r.WheelSpec.URI != "" {
			uriReqs = append(uriReqs, r)
		}
	}
	if len(uriReqs) == 0 {
		return nil, false, nil
	}

	var out []*ResolverCandidate
	for _, r := range uriReqs {
		cand, err := p.candidateFromURIRequirement(name, r)
		if err != nil {
			return nil, true, err
		}
		if cand != nil {
			out = append(out, cand)
		}
	}
	return out, true, nil
}

func (p *ProjectProvider) candidateFromURIRequirement(name string, r *ResolverRequirement) (*ResolverCandidate, error) {
	parsed, err := url.Parse(r.WheelSpec.URI)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("resolve: requirement uri has no scheme: %q", r.WheelSpec.URI)
	}

	filename := urlBasename(r.WheelSpec.URI)
	wf, err := pep425.ParseWheelFilename(filename)
	if err != nil {
		return nil, fmt.Errorf("resolve: direct-uri requirement for %s does not name a wheel file: %w", name, err)
	}
	if artifact.NormalizeProjectName(wf.Distribution) != name {
		return nil, nil
	}

	bestTag, ok := pep425.BestTag(p.env.SupportedTagsOrdered, wf.Tags)
	if !ok {
		return nil, nil
	}

	wk := artifact.NewWheelKey(name, wf.Version, bestTag, wf.Tags)
	if err := wk.SetOriginURI(r.WheelSpec.URI); err != nil {
		return nil, err
	}

	if r.WheelSpec.HasVersion {
		v, err := pep440.ParseVersion(wk.Version())
		if err == nil {
			allow := p.allowPrereleaseSingle(v)
			if !r.WheelSpec.Version.Contains(v, allow) {
				return nil, nil
			}
		}
	}
	return &ResolverCandidate{WheelKey: wk}, nil
}

func (p *ProjectProvider) findMatchesFromIndex(name string, requirements []*ResolverRequirement) ([]*ResolverCandidate, error) {
	combined, err := combinedSpecifier(requirements)
	if err != nil {
		return nil, err
	}

	idx, err := p.loadIndex(name)
	if err != nil {
		return nil, err
	}

	_, pyVersionParsed, pyVersionOK := p.pythonVersion()

	var versions []pep440.Version
	type survivor struct {
		file    pep691.File
		version pep440.Version
		tag     string
		allTags []string
	}
	var survivors []survivor

	for _, file := range idx.Files {
		if !strings.HasSuffix(strings.ToLower(file.Filename), ".whl") {
			continue
		}
		if file.Yanked && p.env.Policy.YankedWheelPolicy != YankedAllow {
			continue
		}
		wf, err := pep425.ParseWheelFilename(file.Filename)
		if err != nil {
			continue
		}
		if artifact.NormalizeProjectName(wf.Distribution) != name {
			continue
		}
		version, err := pep440.ParseVersion(wf.Version)
		if err != nil {
			continue
		}
		if !combined.Empty() && !combined.Contains(version, true) {
			continue // ignores prerelease screening here; see allowPrereleaseForSet below
		}
		if file.RequiresPython != "" && pyVersionOK {
			if rpSet, err := pep440.ParseSpecifierSet(file.RequiresPython); err == nil {
				if !rpSet.Contains(pyVersionParsed, true) {
					continue
				}
			}
			// An unparseable requires_python is tolerated (treated as
			// satisfied), per spec.md §4.5.2.
		}
		bestTag, ok := pep425.BestTag(p.env.SupportedTagsOrdered, wf.Tags)
		if !ok {
			continue
		}
		if _, _, ok := pickHash(file.Hashes); !ok {
			continue
		}
		versions = append(versions, version)
		survivors = append(survivors, survivor{file: file, version: version, tag: bestTag, allTags: wf.Tags})
	}

	allowPrerelease := p.allowPrereleaseForSet(versions)

	var out []*ResolverCandidate
	for _, s := range survivors {
		if !combined.Empty() && !combined.Contains(s.version, allowPrerelease) {
			continue
		}
		if !allowPrerelease && combined.Empty() && s.version.IsPrerelease() {
			continue
		}
		alg, hexDigest, _ := pickHash(s.file.Hashes)
		wk := artifact.NewWheelKey(name, s.version.String(), s.tag, s.allTags)
		if err := wk.SetOriginURI(s.file.URL); err != nil {
			return nil, err
		}
		if err := wk.SetContentHash(alg, hexDigest); err != nil {
			return nil, err
		}
		wk.SetRequiresPython(s.file.RequiresPython)
		out = append(out, &ResolverCandidate{WheelKey: wk})
	}

	sortCandidates(out)
	return out, nil
}

func (p *ProjectProvider) loadIndex(name string) (pep691.Metadata, error) {
	if idx, ok := p.indexCache[name]; ok {
		return idx, nil
	}
	key := artifact.IndexMetadataKey{Project: name, IndexBase: p.indexBase}
	rec, err := p.services.IndexMetadata.Resolve(p.ctx, key)
	if err != nil {
		return pep691.Metadata{}, fmt.Errorf("resolve: load index metadata for %s: %w", name, err)
	}
	data, err := readDestination(rec.DestinationURI)
	if err != nil {
		return pep691.Metadata{}, err
	}
	idx, err := pep691.Parse(data)
	if err != nil {
		return pep691.Metadata{}, fmt.Errorf("resolve: parse index metadata for %s: %w", name, err)
	}
	p.indexCache[name] = idx
	return idx, nil
}

func (p *ProjectProvider) pythonVersion() (string, pep440.Version, bool) {
	raw := p.env.PythonVersion()
	v, err := pep440.ParseVersion(raw)
	if err != nil {
		return raw, pep440.Version{}, false
	}
	return raw, v, true
}

// IsSatisfiedBy implements spec.md §4.5.5.
func (p *ProjectProvider) IsSatisfiedBy(req *ResolverRequirement, cand *ResolverCandidate) bool {
	if req.Name() != cand.Name() {
		return false
	}
	if req.WheelSpec.URI != "" {
		return cand.WheelKey.OriginURI() == req.WheelSpec.URI
	}
	if !req.WheelSpec.HasVersion {
		return true
	}
	v, err := pep440.ParseVersion(cand.WheelKey.Version())
	if err != nil {
		return false
	}
	return req.WheelSpec.Version.Contains(v, p.allowPrereleaseSingle(v))
}

// GetDependencies implements spec.md §4.5.6.
func (p *ProjectProvider) GetDependencies(cand *ResolverCandidate) ([]*ResolverRequirement, error) {
	if !cand.WheelKey.HasOriginURI() {
		return nil, nil
	}

	key := coreMetadataCacheKey{
		name:      cand.WheelKey.Name(),
		version:   cand.WheelKey.Version(),
		tag:       cand.WheelKey.Tag(),
		originURI: cand.WheelKey.OriginURI(),
	}
	meta, ok := p.coreMetadataCache[key]
	if !ok {
		resolved, err := p.services.CoreMetadata.Resolve(p.ctx, artifact.CoreMetadataKey{
			Name:    cand.WheelKey.Name(),
			Version: cand.WheelKey.Version(),
			Tag:     cand.WheelKey.Tag(),
			FileURL: cand.WheelKey.OriginURI(),
		})
		if err != nil {
			return nil, fmt.Errorf("resolve: resolve core metadata for %s: %w", cand.WheelKey.Identifier(), err)
		}
		data, err := readDestination(resolved.DestinationURI)
		if err != nil {
			return nil, err
		}
		meta, err = pep658.ParseCoreMetadataText(string(data))
		if err != nil {
			return nil, fmt.Errorf("resolve: parse core metadata for %s: %w", cand.WheelKey.Identifier(), err)
		}
		p.coreMetadataCache[key] = meta
	}

	requestedExtras := p.requestedExtrasByName[cand.Name()]

	var out []*ResolverRequirement
	for _, line := range meta.RequiresDist {
		req, err := pep508.ParseRequirement(line)
		if err != nil {
			if p.env.Policy.InvalidRequiresDistPolicy == InvalidRequiresDistRaise {
				return nil, fmt.Errorf("resolve: invalid Requires-Dist %q on %s: %w", line, cand.WheelKey.Identifier(), err)
			}
			continue
		}

		if !p.markerAllows(req, requestedExtras) {
			continue
		}

		uri, err := p.translateRequiresDistURL(req.URL)
		if err != nil {
			return nil, fmt.Errorf("resolve: %s: %w", cand.WheelKey.Identifier(), err)
		}

		spec := WheelSpec{
			Name:       req.Name,
			Version:    req.Specifier,
			HasVersion: !req.Specifier.Empty(),
			Extras:     req.Extras,
			Marker:     req.Marker,
			URI:        uri,
		}
		out = append(out, &ResolverRequirement{WheelSpec: spec})
	}
	return out, nil
}

func (p *ProjectProvider) markerAllows(req *pep508.Requirement, requestedExtras map[string]bool) bool {
	if req.Marker == nil {
		return true
	}
	if len(requestedExtras) == 0 {
		return req.Marker.Evaluate(p.env.MarkerEnvironment, "")
	}
	for extra := range requestedExtras {
		if req.Marker.Evaluate(p.env.MarkerEnvironment, extra) {
			return true
		}
	}
	return false
}

func (p *ProjectProvider) translateRequiresDistURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", nil
	}
	switch p.env.Policy.RequiresDistURLPolicy {
	case RequiresDistURLIgnore:
		return "", nil
	case RequiresDistURLRaise:
		return "", fmt.Errorf("direct url in Requires-Dist is not permitted by policy: %s", rawURL)
	default: // honor
		if p.env.Policy.AllowedRequiresDistURLSchemes != nil {
			u, err := url.Parse(rawURL)
			if err != nil || !p.env.Policy.AllowedRequiresDistURLSchemes[u.Scheme] {
				return "", fmt.Errorf("requires-dist url scheme not permitted: %s", rawURL)
			}
		}
		return rawURL, nil
	}
}

// GetPreference implements spec.md §4.5.7.
func (p *ProjectProvider) GetPreference(identifier string, resolutions map[string]*ResolverCandidate, criteria map[string]*Criterion, backtrackCauses []RequirementInformation) Preference {
	crit := criteria[identifier]

	backtrackCause := 1
	for _, c := range backtrackCauses {
		if c.Requirement.Name() == identifier {
			backtrackCause = 0
			break
		}
	}

	notRoot := 1
	for _, info := range crit.Information {
		if info.Parent == nil {
			notRoot = 0
			break
		}
	}

	negParents := -distinctParentCount(crit.Information)

	alreadyResolved := 0
	if _, ok := resolutions[identifier]; ok {
		alreadyResolved = 1
	}

	return Preference{
		BacktrackCause:  backtrackCause,
		NotRoot:         notRoot,
		NegParentCount:  negParents,
		AlreadyResolved: alreadyResolved,
		Identifier:      identifier,
	}
}

func distinctParentCount(info []RequirementInformation) int {
	seen := map[*ResolverCandidate]bool{}
	for _, in := range info {
		seen[in.Parent] = true
	}
	return len(seen)
}

// allowPrereleaseSingle resolves the prerelease policy against a single
// candidate version, per DESIGN.md's decision to thread PreReleasePolicy
// explicitly rather than leave it implicit.
func (p *ProjectProvider) allowPrereleaseSingle(v pep440.Version) bool {
	switch p.env.Policy.PreReleasePolicy {
	case PreReleaseAllow:
		return true
	case PreReleaseDisallow:
		return false
	default:
		return v.IsPrerelease()
	}
}

// allowPrereleaseForSet implements PEP 440's implicit prerelease opt-in:
// under the default policy, prereleases are admitted only when every
// version-eligible candidate in the set is itself a prerelease.
func (p *ProjectProvider) allowPrereleaseForSet(versions []pep440.Version) bool {
	switch p.env.Policy.PreReleasePolicy {
	case PreReleaseAllow:
		return true
	case PreReleaseDisallow:
		return false
	default:
		if len(versions) == 0 {
			return false
		}
		for _, v := range versions {
			if !v.IsPrerelease() {
				return false
			}
		}
		return true
	}
}

func combinedSpecifier(requirements []*ResolverRequirement) (pep440.SpecifierSet, error) {
	var sets []pep440.SpecifierSet
	for _, r := range requirements {
		if r.WheelSpec.HasVersion {
			sets = append(sets, r.WheelSpec.Version)
		}
	}
	return pep440.Combine(sets...), nil
}

// sortCandidates orders candidates descending by (version_sort_key,
// tag_string), per spec.md §4.5.4.
func sortCandidates(cands []*ResolverCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return candidateGreater(cands[i], cands[j])
	})
}

func candidateGreater(a, b *ResolverCandidate) bool {
	av, aerr := pep440.ParseVersion(a.WheelKey.Version())
	bv, berr := pep440.ParseVersion(b.WheelKey.Version())
	arank, brank := 0, 0
	if aerr == nil {
		arank = 1
	}
	if berr == nil {
		brank = 1
	}
	if arank != brank {
		return arank > brank
	}
	if arank == 1 {
		if cmp := av.Compare(bv); cmp != 0 {
			return cmp > 0
		}
	} else if a.WheelKey.Version() != b.WheelKey.Version() {
		return a.WheelKey.Version() > b.WheelKey.Version()
	}
	return a.WheelKey.Tag() > b.WheelKey.Tag()
}

// pickHash chooses the preferred hash algorithm from a PEP 691 file's
// hashes map, preferring sha256, then sha512, then sha384, per spec.md
// §4.5.2.
func pickHash(hashes map[string]string) (alg, hexDigest string, ok bool) {
	for _, alg := range []string{"sha256", "sha512", "sha384"} {
		if h, present := hashes[alg]; present && h != "" {
			return alg, h, true
		}
	}
	return "", "", false
}

func urlBasename(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func readDestination(destinationURI string) ([]byte, error) {
	if !strings.HasPrefix(destinationURI, "file://") {
		return nil, fmt.Errorf("resolve: unsupported destination uri scheme: %s", destinationURI)
	}
	path := strings.TrimPrefix(destinationURI, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: read destination %s: %w", destinationURI, err)
	}
	return data, nil
}
