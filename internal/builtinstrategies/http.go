// Package builtinstrategies implements the default, file-destination-only
// artifact-resolution strategies: HTTP fetch of a PEP 691 project index,
// HTTP fetch of a PEP 658 core-metadata sidecar (with dist-info/METADATA
// extraction as a fallback), and HTTP/local-copy wheel file acquisition.
//
// Grounded on original_source's internal/builtin_strategies.py, using the
// teacher's plain net/http.Client idiom (internal/plan/index.go,
// internal/cas/fetcher.go) rather than introducing an HTTP client
// library the teacher itself never imports.
package builtinstrategies

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/k8ika0s/wheel-resolver/internal/artifact"
	"github.com/k8ika0s/wheel-resolver/internal/strategy"
)

func requireFileDestination(destinationURI string) (string, error) {
	u, err := url.Parse(destinationURI)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("builtinstrategies: builtin strategies require file:// destination uris, got %q", destinationURI)
	}
	return u.Path, nil
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func sha256File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func simpleProjectJSONURL(indexBase, project string) string {
	base := strings.TrimRight(indexBase, "/") + "/"
	proj := strings.Trim(project, "/")
	return base + proj + "/"
}

func pep658MetadataURL(fileURL string) string { return fileURL + ".metadata" }

// Pep691IndexHTTPStrategy fetches a project's PEP 691 simple-index JSON
// document over HTTP, grounded on Pep691IndexMetadataHttpStrategy.
type Pep691IndexHTTPStrategy struct {
	strategy.Base
	Client    *http.Client
	UserAgent string
}

// NewPep691IndexHTTPStrategy constructs the strategy with the teacher's
// usual defaulting idiom: a 30s-timeout client when none is supplied.
func NewPep691IndexHTTPStrategy(instanceID string, precedence int, crit strategy.Criticality) *Pep691IndexHTTPStrategy {
	return &Pep691IndexHTTPStrategy{
		Base:      strategy.NewBase("pep691_http", instanceID, precedence, crit, artifact.SourceHTTPPep691),
		UserAgent: "wheel-resolver/0",
	}
}

func (s *Pep691IndexHTTPStrategy) Kind() strategy.Kind { return strategy.KindIndexMetadata }

func (s *Pep691IndexHTTPStrategy) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (s *Pep691IndexHTTPStrategy) Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	idxKey, ok := key.(artifact.IndexMetadataKey)
	if !ok {
		return nil, strategy.ErrNotApplicable
	}
	destPath, err := requireFileDestination(destinationURI)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(destPath); err != nil {
		return nil, err
	}

	reqURL := simpleProjectJSONURL(idxKey.IndexBase, idxKey.Project)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.pypi.simple.v1+json")
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("builtinstrategies: get %s: %w", reqURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("builtinstrategies: get %s: status %d", reqURL, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return nil, copyErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	sum, size, err := sha256File(destPath)
	if err != nil {
		return nil, err
	}
	return &artifact.Record{
		Key:            idxKey,
		DestinationURI: "file://" + destPath,
		OriginURI:      reqURL,
		Source:         s.Source(),
		ContentSHA256:  sum,
		Size:           size,
		ContentHashes:  map[string]string{"sha256": sum},
	}, nil
}

// Pep658CoreMetadataHTTPStrategy fetches a wheel's PEP 658 core-metadata
// sidecar ("<file_url>.metadata") over HTTP, yielding ErrNotApplicable on
// a 404 so a fallback strategy (WheelExtractedCoreMetadataStrategy) can
// run, grounded on Pep658CoreMetadataHttpStrategy.
type Pep658CoreMetadataHTTPStrategy struct {
	strategy.Base
	Client    *http.Client
	UserAgent string
}

func NewPep658CoreMetadataHTTPStrategy(instanceID string, precedence int, crit strategy.Criticality) *Pep658CoreMetadataHTTPStrategy {
	return &Pep658CoreMetadataHTTPStrategy{
		Base:      strategy.NewBase("pep658_http", instanceID, precedence, crit, artifact.SourceHTTPPep658),
		UserAgent: "wheel-resolver/0",
	}
}

func (s *Pep658CoreMetadataHTTPStrategy) Kind() strategy.Kind { return strategy.KindCoreMetadata }

func (s *Pep658CoreMetadataHTTPStrategy) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (s *Pep658CoreMetadataHTTPStrategy) Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	cmKey, ok := key.(artifact.CoreMetadataKey)
	if !ok {
		return nil, strategy.ErrNotApplicable
	}
	destPath, err := requireFileDestination(destinationURI)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(destPath); err != nil {
		return nil, err
	}

	reqURL := pep658MetadataURL(cmKey.FileURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("builtinstrategies: get %s: %w", reqURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, strategy.ErrNotApplicable
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("builtinstrategies: get %s: status %d", reqURL, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return nil, copyErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	sum, size, err := sha256File(destPath)
	if err != nil {
		return nil, err
	}
	return &artifact.Record{
		Key:            cmKey,
		DestinationURI: "file://" + destPath,
		OriginURI:      reqURL,
		Source:         s.Source(),
		ContentSHA256:  sum,
		Size:           size,
		ContentHashes:  map[string]string{"sha256": sum},
	}, nil
}

// HTTPWheelFileStrategy downloads a wheel file from its WheelKey's
// origin_uri over HTTP, grounded on HttpWheelFileStrategy.
type HTTPWheelFileStrategy struct {
	strategy.Base
	Client    *http.Client
	UserAgent string
}

func NewHTTPWheelFileStrategy(instanceID string, precedence int, crit strategy.Criticality) *HTTPWheelFileStrategy {
	return &HTTPWheelFileStrategy{
		Base:      strategy.NewBase("wheel_http", instanceID, precedence, crit, artifact.SourceHTTPWheel),
		UserAgent: "wheel-resolver/0",
	}
}

func (s *HTTPWheelFileStrategy) Kind() strategy.Kind { return strategy.KindWheelFile }

func (s *HTTPWheelFileStrategy) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 120 * time.Second}
}

func (s *HTTPWheelFileStrategy) Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	wk, ok := key.(*artifact.WheelKey)
	if !ok || !wk.HasOriginURI() {
		return nil, strategy.ErrNotApplicable
	}
	destPath, err := requireFileDestination(destinationURI)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(destPath); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wk.OriginURI(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("builtinstrategies: get %s: %w", wk.OriginURI(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("builtinstrategies: get %s: status %d", wk.OriginURI(), resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	_, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return nil, copyErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	sum, size, err := sha256File(destPath)
	if err != nil {
		return nil, err
	}
	return &artifact.Record{
		Key:            wk,
		DestinationURI: "file://" + destPath,
		OriginURI:      wk.OriginURI(),
		Source:         s.Source(),
		ContentSHA256:  sum,
		Size:           size,
		ContentHashes:  map[string]string{"sha256": sum},
	}, nil
}

// DirectURIWheelFileStrategy copies a wheel whose origin_uri already names
// a local file:// (or bare) path, taking priority over the HTTP strategy
// via a lower default precedence, grounded on DirectUriWheelFileStrategy.
type DirectURIWheelFileStrategy struct {
	strategy.Base
}

func NewDirectURIWheelFileStrategy(instanceID string, precedence int, crit strategy.Criticality) *DirectURIWheelFileStrategy {
	return &DirectURIWheelFileStrategy{
		Base: strategy.NewBase("uri_wheel_file", instanceID, precedence, crit, artifact.SourceURIWheel),
	}
}

func (s *DirectURIWheelFileStrategy) Kind() strategy.Kind { return strategy.KindWheelFile }

func (s *DirectURIWheelFileStrategy) Resolve(_ context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	wk, ok := key.(*artifact.WheelKey)
	if !ok || !wk.HasOriginURI() {
		return nil, strategy.ErrNotApplicable
	}
	srcParsed, err := url.Parse(wk.OriginURI())
	if err != nil || (srcParsed.Scheme != "file" && srcParsed.Scheme != "") {
		return nil, strategy.ErrNotApplicable
	}

	destPath, err := requireFileDestination(destinationURI)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(destPath); err != nil {
		return nil, err
	}

	srcPath := wk.OriginURI()
	if srcParsed.Scheme == "file" {
		srcPath = srcParsed.Path
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("builtinstrategies: open %s: %w", srcPath, err)
	}
	defer src.Close()
	dst, err := os.Create(destPath)
	if err != nil {
		return nil, err
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return nil, copyErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	sum, size, err := sha256File(destPath)
	if err != nil {
		return nil, err
	}
	return &artifact.Record{
		Key:            wk,
		DestinationURI: "file://" + destPath,
		OriginURI:      wk.OriginURI(),
		Source:         s.Source(),
		ContentSHA256:  sum,
		Size:           size,
		ContentHashes:  map[string]string{"sha256": sum},
	}, nil
}

// WheelExtractedCoreMetadataStrategy is the fallback core-metadata
// strategy: it acquires the full wheel via an injected WheelFileStrategy
// into a scratch location, then extracts the *.dist-info/METADATA member,
// grounded on WheelExtractedCoreMetadataStrategy.
type WheelExtractedCoreMetadataStrategy struct {
	strategy.Base
	WheelStrategy strategy.Strategy
}

func NewWheelExtractedCoreMetadataStrategy(instanceID string, precedence int, crit strategy.Criticality, wheelStrategy strategy.Strategy) *WheelExtractedCoreMetadataStrategy {
	return &WheelExtractedCoreMetadataStrategy{
		Base:          strategy.NewBase("wheel_extracted_metadata", instanceID, precedence, crit, artifact.SourceWheelExtracted),
		WheelStrategy: wheelStrategy,
	}
}

func (s *WheelExtractedCoreMetadataStrategy) Kind() strategy.Kind { return strategy.KindCoreMetadata }

func (s *WheelExtractedCoreMetadataStrategy) Resolve(ctx context.Context, key artifact.Key, destinationURI string) (*artifact.Record, error) {
	cmKey, ok := key.(artifact.CoreMetadataKey)
	if !ok {
		return nil, strategy.ErrNotApplicable
	}
	destPath, err := requireFileDestination(destinationURI)
	if err != nil {
		return nil, err
	}
	if err := ensureParentDir(destPath); err != nil {
		return nil, err
	}

	scratchDir, err := os.MkdirTemp("", "wheel-resolver-extract-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratchDir)

	wheelKey := artifact.NewWheelKey(cmKey.Name, cmKey.Version, cmKey.Tag, nil)
	if err := wheelKey.SetOriginURI(cmKey.FileURL); err != nil {
		return nil, err
	}
	wheelPath := filepath.Join(scratchDir, "artifact.whl")

	if _, err := s.WheelStrategy.Resolve(ctx, wheelKey, "file://"+wheelPath); err != nil {
		return nil, fmt.Errorf("builtinstrategies: acquire wheel for metadata extraction: %w", err)
	}

	metadataBytes, err := extractDistInfoMetadata(wheelPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(destPath, metadataBytes, 0o644); err != nil {
		return nil, err
	}

	sum, size, err := sha256File(destPath)
	if err != nil {
		return nil, err
	}
	return &artifact.Record{
		Key:            cmKey,
		DestinationURI: "file://" + destPath,
		OriginURI:      cmKey.FileURL,
		Source:         s.Source(),
		ContentSHA256:  sum,
		Size:           size,
		ContentHashes:  map[string]string{"sha256": sum},
	}, nil
}

func extractDistInfoMetadata(wheelPath string) ([]byte, error) {
	zr, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("builtinstrategies: open wheel archive: %w", err)
	}
	defer zr.Close()

	var candidates []string
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".dist-info/METADATA") {
			candidates = append(candidates, f.Name)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("builtinstrategies: wheel does not contain any *.dist-info/METADATA entry")
	}
	sort.Strings(candidates)

	for _, f := range zr.File {
		if f.Name != candidates[0] {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("builtinstrategies: member %s vanished from archive", candidates[0])
}
