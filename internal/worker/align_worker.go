package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"
	"time"

	"github.com/hibiken/asynq"

	"github.com/foldprep/api/internal/client"
	"github.com/foldprep/api/internal/config"
	"github.com/foldprep/api/internal/model"
	"github.com/foldprep/api/internal/pipeline"
	"github.com/foldprep/api/internal/service"
	"github.com/foldprep/api/internal/template"
	"github.com/foldprep/api/internal/websocket"
)

// AlignWorker processes alignment and reshuffle jobs
type AlignWorker struct {
	alignService *service.AlignService
	search       client.SearchProvider
	selector     *template.Selector
	fetcher      *template.Fetcher
	store        client.ArtifactStore
	hub          *websocket.Hub
	searchCfg    *config.SearchConfig
	dataDir      string
}

// NewAlignWorker creates a new alignment worker. store may be nil when no
// artifact storage is configured; results then stay on local disk only.
func NewAlignWorker(
	alignService *service.AlignService,
	search client.SearchProvider,
	selector *template.Selector,
	fetcher *template.Fetcher,
	store client.ArtifactStore,
	hub *websocket.Hub,
	searchCfg *config.SearchConfig,
	dataDir string,
) *AlignWorker {
	return &AlignWorker{
		alignService: alignService,
		search:       search,
		selector:     selector,
		fetcher:      fetcher,
		store:        store,
		hub:          hub,
		searchCfg:    searchCfg,
		dataDir:      dataDir,
	}
}

// ProcessTask handles alignment task processing
func (w *AlignWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting alignment job: %s", jobID)

	var payload model.AlignJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal alignment payload: %w", err)
	}

	w.updateProgress(ctx, jobID, 5, "Preparing working directory...")
	runner, err := pipeline.NewRunner(w.search, w.selector, w.fetcher, w.searchCfg, w.dataDir, payload.Name, payload.Sequence)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Invalid sequence: %v", err))
		return err
	}

	criteria := payload.Templates
	if criteria == nil {
		criteria = &model.TemplateCriteria{Mode: model.TemplateModeNone}
	}

	w.updateProgress(ctx, jobID, 10, "Running homology search...")
	pipelineResult, err := runner.Run(ctx, criteria)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Alignment failed: %v", err))
		return err
	}

	w.updateProgress(ctx, jobID, 90, "Storing artifacts...")
	result := &model.AlignResultResponse{
		JobID:         jobID,
		SearchID:      pipelineResult.SearchID,
		AlignmentPath: pipelineResult.AlignmentPath,
		TemplateDir:   pipelineResult.TemplateDir,
		TemplateCodes: pipelineResult.TemplateCodes,
		CompletedAt:   time.Now(),
	}
	if url, err := w.uploadAlignment(ctx, pipelineResult); err != nil {
		log.Printf("Artifact upload failed for job %s: %v", jobID, err)
	} else {
		result.AlignmentURL = url
	}

	if err := w.alignService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Alignment job %s completed", jobID)
	return nil
}

// ProcessReshuffleTask rebuilds the template bundle from a completed job's
// candidate list
func (w *AlignWorker) ProcessReshuffleTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := taskPayload.JobID
	log.Printf("Starting reshuffle job: %s", jobID)

	var payload model.ReshuffleJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, jobID, "Invalid payload")
		return fmt.Errorf("failed to unmarshal reshuffle payload: %w", err)
	}

	runner, err := pipeline.NewRunner(w.search, w.selector, w.fetcher, w.searchCfg, w.dataDir, payload.Name, payload.Sequence)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Invalid sequence: %v", err))
		return err
	}

	w.updateProgress(ctx, jobID, 20, "Reshuffling templates...")
	pipelineResult, err := runner.Reshuffle(ctx)
	if err != nil {
		w.failJob(ctx, jobID, fmt.Sprintf("Reshuffle failed: %v", err))
		return err
	}

	result := &model.AlignResultResponse{
		JobID:         jobID,
		SearchID:      pipelineResult.SearchID,
		AlignmentPath: pipelineResult.AlignmentPath,
		TemplateDir:   pipelineResult.TemplateDir,
		TemplateCodes: pipelineResult.TemplateCodes,
		CompletedAt:   time.Now(),
	}
	if err := w.alignService.CompleteJob(ctx, jobID, result); err != nil {
		w.failJob(ctx, jobID, "Failed to save result")
		return err
	}

	w.hub.BroadcastComplete(jobID, result)
	log.Printf("Reshuffle job %s completed", jobID)
	return nil
}

// uploadAlignment mirrors the alignment file to artifact storage
func (w *AlignWorker) uploadAlignment(ctx context.Context, res *pipeline.Result) (string, error) {
	if w.store == nil {
		return "", nil
	}

	f, err := os.Open(res.AlignmentPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := path.Join("alignments", res.SearchID, "alignment.a3m")
	return w.store.Upload(ctx, key, f, "text/plain")
}

func (w *AlignWorker) updateProgress(ctx context.Context, jobID string, progress int, step string) {
	if err := w.alignService.UpdateJobProgress(ctx, jobID, progress, step); err != nil {
		log.Printf("Failed to update progress: %v", err)
	}
	w.hub.BroadcastProgress(jobID, progress, model.JobStatusRunning, step)
}

func (w *AlignWorker) failJob(ctx context.Context, jobID, errMsg string) {
	if err := w.alignService.FailJob(ctx, jobID, errMsg); err != nil {
		log.Printf("Failed to mark job as failed: %v", err)
	}
	w.hub.BroadcastError(jobID, "ALIGN_FAILED", errMsg)
}
