// Package remote hands model fitting to a worker over Redis streams.
//
// A job is published to the input stream as a JSON document in the "data"
// field. The worker answers on the output stream with the same job id and
// either a msgpack-encoded model or an error message.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/lstm"
	"pm10cast/internal/metrics"
	"pm10cast/internal/models"
)

// Stream names and retention
const (
	InputStream  = "ml_input"
	OutputStream = "ml_output"
	maxStreamLen = 500
)

// Job is one training request
type Job struct {
	JobID       string                   `json:"job_id"`
	Hyperparams models.Hyperparams       `json:"hyperparams"`
	Examples    []models.WindowedExample `json:"examples"`
}

// Result is the worker's answer. Model is the msgpack encoding of an
// lstm.Network; json carries it as base64.
type Result struct {
	JobID    string  `json:"job_id"`
	Model    []byte  `json:"model,omitempty"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

// Trainer publishes jobs and waits for the matching result
type Trainer struct {
	client       redis.Cmdable
	Timeout      time.Duration
	PollInterval time.Duration
}

// NewTrainer creates a remote trainer with the given result timeout
func NewTrainer(client redis.Cmdable, timeout time.Duration) *Trainer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Trainer{
		client:       client,
		Timeout:      timeout,
		PollInterval: 500 * time.Millisecond,
	}
}

// Fit sends the examples to the worker and decodes the model it returns
func (t *Trainer) Fit(ctx context.Context, examples []models.WindowedExample, hp models.Hyperparams) (forecast.Model, error) {
	jobID := uuid.NewString()

	// Get current position in the output stream before publishing the job
	lastID := "0-0"
	last, err := t.client.XRevRangeN(ctx, OutputStream, "+", "-", 1).Result()
	if err != nil {
		metrics.RecordRemoteJob("error")
		return nil, fmt.Errorf("failed to read %s: %w", OutputStream, err)
	}
	if len(last) > 0 {
		lastID = last[0].ID
	}

	data, err := json.Marshal(Job{JobID: jobID, Hyperparams: hp, Examples: examples})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	err = t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: InputStream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		metrics.RecordRemoteJob("error")
		return nil, fmt.Errorf("failed to publish to %s: %w", InputStream, err)
	}

	log.Infow("published training job", "job_id", jobID, "examples", len(examples), "stream", InputStream)

	result, err := t.await(ctx, jobID, lastID)
	if err != nil {
		return nil, err
	}

	t.trim(ctx)

	if result.Error != "" {
		metrics.RecordRemoteJob("error")
		return nil, fmt.Errorf("worker failed job %s: %s", jobID, result.Error)
	}

	net, err := lstm.Decode(result.Model)
	if err != nil {
		metrics.RecordRemoteJob("error")
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	metrics.RecordRemoteJob("success")
	log.Infow("training job completed", "job_id", jobID, "worker_seconds", result.Duration)
	return net, nil
}

func (t *Trainer) await(ctx context.Context, jobID, lastID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	for {
		streams, err := t.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{OutputStream, lastID},
			Count:   10,
			Block:   t.PollInterval,
		}).Result()

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				metrics.RecordRemoteJob("timeout")
				return nil, fmt.Errorf("timeout waiting for results of job %s: %w", jobID, ctxErr)
			}
			metrics.RecordRemoteJob("cancelled")
			return nil, ctxErr
		}

		if err != nil && err != redis.Nil {
			metrics.RecordRemoteJob("error")
			return nil, fmt.Errorf("failed to read %s: %w", OutputStream, err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID

				result, err := decodeResult(msg.Values)
				if err != nil {
					log.Warnf("skipping message %s on %s: %v", msg.ID, OutputStream, err)
					continue
				}
				if result.JobID == jobID {
					return result, nil
				}
			}
		}
	}
}

// trim keeps both streams from growing without bound
func (t *Trainer) trim(ctx context.Context) {
	for _, stream := range []string{InputStream, OutputStream} {
		if err := t.client.XTrimMaxLen(ctx, stream, maxStreamLen).Err(); err != nil {
			log.Warnf("failed to trim %s: %v", stream, err)
		}
	}
}

func decodeResult(values map[string]interface{}) (*Result, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return nil, errors.New("message has no 'data' field")
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return &result, nil
}
