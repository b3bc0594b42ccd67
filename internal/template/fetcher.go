package template

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/foldprep/api/internal/client"
)

// Index-compatibility files the downstream structure-prediction tool expects
// alongside the extracted bundle.
const (
	bundleIndexFile       = "pdb70_a3m.ffindex"
	bundleIndexAlias      = "pdb70_cs219.ffindex"
	bundlePlaceholderFile = "pdb70_cs219.ffdata"
)

// Fetcher retrieves the combined structure bundle for a candidate list and
// normalizes its on-disk layout.
type Fetcher struct {
	bundles client.BundleProvider
}

// NewFetcher creates a new template fetcher
func NewFetcher(bundles client.BundleProvider) *Fetcher {
	return &Fetcher{bundles: bundles}
}

// Fetch downloads the bundle for candidates into destDir, which is recreated
// from scratch, and returns the directory together with the codes that
// actually went into the bundle after shuffling and truncation to limit.
// The caller's slice is never mutated: shuffling and truncation operate on
// a local copy. An empty candidate list yields no directory and an empty
// path, which callers must treat specially.
func (f *Fetcher) Fetch(ctx context.Context, candidates []string, destDir string, limit int, shuffle bool) (string, []string, error) {
	if err := os.RemoveAll(destDir); err != nil {
		return "", nil, fmt.Errorf("failed to remove %s: %w", destDir, err)
	}

	if len(candidates) == 0 {
		log.Printf("[templates] no templates found")
		return "", nil, nil
	}

	codes := make([]string, len(candidates))
	copy(codes, candidates)

	if shuffle && len(codes) > 1 {
		rand.Shuffle(len(codes), func(i, j int) {
			codes[i], codes[j] = codes[j], codes[i]
		})
	}
	if limit > 0 && len(codes) > limit {
		codes = codes[:limit]
	}

	log.Printf("[templates] using: %s", strings.Join(codes, ","))

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	if err := f.bundles.FetchBundle(ctx, codes, destDir); err != nil {
		os.RemoveAll(destDir)
		return "", nil, err
	}
	if err := normalizeBundle(destDir); err != nil {
		os.RemoveAll(destDir)
		return "", nil, err
	}

	return destDir, codes, nil
}

// Reshuffle rebuilds the bundle from the candidate list persisted by a
// previous selection, without re-querying the classification databases.
// With fewer than two stored candidates there is nothing to permute; a
// warning is logged and the bundle is built unshuffled.
func (f *Fetcher) Reshuffle(ctx context.Context, sidecarPath, destDir string, limit int) (string, []string, error) {
	codes, err := LoadCandidates(sidecarPath)
	if err != nil {
		return "", nil, err
	}

	shuffle := len(codes) > 1
	if !shuffle {
		log.Printf("[templates] impossible to shuffle with %d template(s) only", len(codes))
	}

	return f.Fetch(ctx, codes, destDir, limit, shuffle)
}

// normalizeBundle duplicates the bundle index under the second name the
// downstream consumer looks for and creates the empty companion data file.
func normalizeBundle(dir string) error {
	src, err := os.Open(filepath.Join(dir, bundleIndexFile))
	if err != nil {
		return fmt.Errorf("bundle missing %s: %w", bundleIndexFile, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, bundleIndexAlias))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", bundleIndexAlias, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy bundle index: %w", err)
	}
	if err := dst.Close(); err != nil {
		return err
	}

	placeholder, err := os.Create(filepath.Join(dir, bundlePlaceholderFile))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", bundlePlaceholderFile, err)
	}
	return placeholder.Close()
}

// SaveCandidates persists codes comma-joined (with a trailing comma, the
// historical sidecar format) to path.
func SaveCandidates(path string, codes []string) error {
	var b strings.Builder
	for _, code := range codes {
		b.WriteString(code)
		b.WriteString(",")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write candidate sidecar: %w", err)
	}
	return nil
}

// LoadCandidates reads a sidecar written by SaveCandidates, discarding the
// empty element produced by the trailing comma.
func LoadCandidates(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate sidecar: %w", err)
	}

	parts := strings.Split(string(data), ",")
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts, nil
}
