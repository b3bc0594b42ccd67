package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/foldprep/api/internal/model"
	"github.com/foldprep/api/internal/sequence"
)

const (
	TaskTypeAlign     = "align:process"
	TaskTypeReshuffle = "align:reshuffle"
)

// AlignService manages alignment job records and queues the background work
type AlignService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewAlignService(redisClient *redis.Client, asynqClient *asynq.Client) *AlignService {
	return &AlignService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartAlign queues a new alignment job. The returned searchId is the
// deterministic identifier derived from the sanitized sequence; clients can
// use it to correlate re-submissions of the same input.
func (s *AlignService) StartAlign(ctx context.Context, req *model.AlignStartRequest) (*model.AlignStartResponse, error) {
	seq, _ := sequence.Sanitize(req.Sequence)
	if seq == "" {
		return nil, &model.ConfigurationError{Field: "sequence", Value: req.Sequence}
	}

	jobID := uuid.New().String()
	now := time.Now()

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeAlign,
		Status:    model.JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
	}

	payload := &model.AlignJobPayload{
		Name:      req.Name,
		Sequence:  req.Sequence,
		Templates: req.Templates,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	job.Payload = payloadBytes

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newTask(TaskTypeAlign, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// Alignment searches are long; never retry automatically, a re-run is
	// cheap only once the archive landed on disk.
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("align"),
		asynq.MaxRetry(0),
		asynq.Timeout(24*time.Hour),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.AlignStartResponse{
		JobID:     jobID,
		SearchID:  sequence.JobID(req.Name, seq),
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// StartReshuffle queues a template reshuffle for a completed alignment job.
// The original job's payload identifies the working directory holding the
// persisted candidate list.
func (s *AlignService) StartReshuffle(ctx context.Context, sourceJobID string) (*model.ReshuffleResponse, error) {
	source, err := s.getJob(ctx, sourceJobID)
	if err != nil {
		return nil, err
	}
	if source.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job not completed")
	}

	var sourcePayload model.AlignJobPayload
	if err := json.Unmarshal(source.Payload, &sourcePayload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source payload: %w", err)
	}

	jobID := uuid.New().String()
	now := time.Now()

	payload := &model.ReshuffleJobPayload{
		Name:     sourcePayload.Name,
		Sequence: sourcePayload.Sequence,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	job := &model.Job{
		ID:        jobID,
		Type:      model.JobTypeReshuffle,
		Status:    model.JobStatusQueued,
		Payload:   payloadBytes,
		CreatedAt: now,
	}
	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newTask(TaskTypeReshuffle, jobID, payloadBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("align"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.ReshuffleResponse{
		JobID:     jobID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetStatus returns the current status of a job
func (s *AlignService) GetStatus(ctx context.Context, jobID string) (*model.AlignStatusResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &model.AlignStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
	}, nil
}

// GetResult returns the result of a completed job
func (s *AlignService) GetResult(ctx context.Context, jobID string) (*model.AlignResultResponse, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != model.JobStatusSucceeded {
		return nil, fmt.Errorf("job not completed")
	}

	var result model.AlignResultResponse
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// UpdateJobProgress updates job progress (called by worker)
func (s *AlignService) UpdateJobProgress(ctx context.Context, jobID string, progress int, step string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Progress = progress
	job.CurrentStep = step

	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		now := time.Now()
		job.StartedAt = &now
	}

	return s.saveJob(ctx, job)
}

// CompleteJob marks a job as completed (called by worker)
func (s *AlignService) CompleteJob(ctx context.Context, jobID string, result interface{}) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusSucceeded
	job.Progress = 100
	job.Result = resultBytes
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// FailJob marks a job as failed (called by worker)
func (s *AlignService) FailJob(ctx context.Context, jobID string, errMsg string) error {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return s.saveJob(ctx, job)
}

// Helper methods

func (s *AlignService) saveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, 24*time.Hour).Err()
}

func (s *AlignService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("job not found")
		}
		return nil, err
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

func newTask(taskType, jobID string, payload []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": payload,
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
