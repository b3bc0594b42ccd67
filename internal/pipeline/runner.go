// Package pipeline runs the full alignment-preparation lifecycle for one
// job: search submit/poll/download, archive extraction, alignment
// concatenation, template selection and bundle retrieval.
//
// The run is single-threaded and blocking. Idempotency substitutes for
// coordination: a re-run with the same (name, sequence) reuses every on-disk
// artifact instead of repeating network calls.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/foldprep/api/internal/archive"
	"github.com/foldprep/api/internal/client"
	"github.com/foldprep/api/internal/config"
	"github.com/foldprep/api/internal/model"
	"github.com/foldprep/api/internal/sequence"
	"github.com/foldprep/api/internal/template"
)

// Alignment archive members, concatenated in this order.
var alignmentMembers = []string{
	"uniref.a3m",
	"bfd.mgnify30.metaeuk30.smag30.a3m",
}

const (
	archiveName   = "out.tar.gz"
	resultTable   = "pdb70.m8"
	alignmentFile = "alignment.a3m"
	sidecarName   = "template_pdbs.txt"
	bundleDirName = "templates_101"
)

// Result is what a completed run hands to the caller: the concatenated
// alignment plus the paths downstream consumers read.
type Result struct {
	SearchID      string
	Alignment     string
	AlignmentPath string
	TemplateDir   string
	TemplateCodes []string
}

// Runner owns the working directory for a single (name, sequence) job and
// drives the lifecycle against the external services.
type Runner struct {
	search   client.SearchProvider
	selector *template.Selector
	fetcher  *template.Fetcher

	searchID   string
	seq        string
	workDir    string
	nTemplates int
	shuffle    bool
}

// NewRunner sanitizes the sequence, derives the deterministic job id and
// creates the working directory.
func NewRunner(
	search client.SearchProvider,
	selector *template.Selector,
	fetcher *template.Fetcher,
	cfg *config.SearchConfig,
	dataDir, name, rawSeq string,
) (*Runner, error) {
	seq, removed := sequence.Sanitize(rawSeq)
	if removed {
		log.Printf("[pipeline] sequence contains non-canonical amino acids; removed B, J, O, U, X and Z")
	}
	if seq == "" {
		return nil, &model.ConfigurationError{Field: "sequence", Value: rawSeq}
	}

	searchID := sequence.JobID(name, seq)
	workDir := filepath.Join(dataDir, searchID+"_"+cfg.PathSuffix)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	return &Runner{
		search:     search,
		selector:   selector,
		fetcher:    fetcher,
		searchID:   searchID,
		seq:        seq,
		workDir:    workDir,
		nTemplates: cfg.NTemplates,
		shuffle:    cfg.Shuffle,
	}, nil
}

// SearchID returns the deterministic job identifier
func (r *Runner) SearchID() string { return r.searchID }

// WorkDir returns the job's working directory
func (r *Runner) WorkDir() string { return r.workDir }

// Sequence returns the sanitized sequence
func (r *Runner) Sequence() string { return r.seq }

func (r *Runner) archivePath() string   { return filepath.Join(r.workDir, archiveName) }
func (r *Runner) tablePath() string     { return filepath.Join(r.workDir, resultTable) }
func (r *Runner) sidecarPath() string   { return filepath.Join(r.workDir, sidecarName) }
func (r *Runner) bundleDir() string     { return filepath.Join(r.workDir, bundleDirName) }
func (r *Runner) alignmentPath() string { return filepath.Join(r.workDir, alignmentFile) }

// Run executes the lifecycle: search (skipped when the archive is already on
// disk), extraction (skipped when the first member is present), alignment
// concatenation, then template selection and bundle retrieval per criteria.
func (r *Runner) Run(ctx context.Context, criteria *model.TemplateCriteria) (*Result, error) {
	crit, err := template.NewCriteria(criteria)
	if err != nil {
		return nil, err
	}

	if err := r.search.Search(ctx, r.seq, r.archivePath()); err != nil {
		return nil, err
	}

	if err := archive.ExtractIfMissing(r.archivePath(), r.workDir, alignmentMembers[0]); err != nil {
		return nil, err
	}

	memberPaths := make([]string, len(alignmentMembers))
	for i, m := range alignmentMembers {
		memberPaths[i] = filepath.Join(r.workDir, m)
	}
	alignment, err := archive.Concatenate(memberPaths...)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(r.alignmentPath(), []byte(alignment), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write alignment: %w", err)
	}

	codes, err := r.selector.Select(ctx, r.tablePath(), r.sidecarPath(), crit)
	if err != nil {
		return nil, err
	}

	bundleDir, used, err := r.fetcher.Fetch(ctx, codes, r.bundleDir(), r.nTemplates, r.shuffle)
	if err != nil {
		return nil, err
	}

	return &Result{
		SearchID:      r.searchID,
		Alignment:     alignment,
		AlignmentPath: r.alignmentPath(),
		TemplateDir:   bundleDir,
		TemplateCodes: used,
	}, nil
}

// Reshuffle rebuilds the template bundle from the persisted candidate
// sidecar of an earlier run, shuffling when there is more than one
// candidate. No search or classification traffic is generated.
func (r *Runner) Reshuffle(ctx context.Context) (*Result, error) {
	bundleDir, used, err := r.fetcher.Reshuffle(ctx, r.sidecarPath(), r.bundleDir(), r.nTemplates)
	if err != nil {
		return nil, err
	}

	return &Result{
		SearchID:      r.searchID,
		AlignmentPath: r.alignmentPath(),
		TemplateDir:   bundleDir,
		TemplateCodes: used,
	}, nil
}
