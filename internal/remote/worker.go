package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
)

// Worker consumes training jobs from the input stream
type Worker struct {
	client   redis.Cmdable
	trainer  forecast.Trainer
	Group    string
	Consumer string
}

// NewWorker creates a worker that fits jobs with trainer
func NewWorker(client redis.Cmdable, trainer forecast.Trainer, group, consumer string) *Worker {
	return &Worker{
		client:   client,
		trainer:  trainer,
		Group:    group,
		Consumer: consumer,
	}
}

// Handle runs one job payload and builds its result. Failures are
// reported in the result rather than returned.
func (w *Worker) Handle(ctx context.Context, payload string) Result {
	start := time.Now()

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return Result{Error: fmt.Sprintf("failed to parse job: %v", err)}
	}

	result := Result{JobID: job.JobID}
	if job.JobID == "" {
		result.Error = "job has no job_id"
		return result
	}

	model, err := w.trainer.Fit(ctx, job.Examples, job.Hyperparams)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start).Seconds()
		return result
	}

	data, err := model.MarshalBinary()
	if err != nil {
		result.Error = fmt.Sprintf("failed to encode model: %v", err)
		return result
	}

	result.Model = data
	result.Duration = time.Since(start).Seconds()
	return result
}

// Run reads jobs until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	// Create consumer group if it doesn't exist
	err := w.client.XGroupCreateMkStream(ctx, InputStream, w.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.Infow("worker started", "stream", InputStream, "group", w.Group, "consumer", w.Consumer)

	for {
		streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.Group,
			Consumer: w.Consumer,
			Streams:  []string{InputStream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if ctx.Err() != nil {
			log.Info("worker stopped")
			return nil
		}

		if err != nil && !errors.Is(err, redis.Nil) {
			log.Errorf("Error reading from Redis: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.process(ctx, msg)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	payload, ok := msg.Values["data"].(string)
	var result Result
	if !ok {
		result = Result{Error: "message has no 'data' field"}
	} else {
		result = w.Handle(ctx, payload)
	}

	if result.Error != "" {
		log.Warnw("training job failed", "job_id", result.JobID, "message_id", msg.ID, "error", result.Error)
	} else {
		log.Infow("training job done", "job_id", result.JobID, "seconds", result.Duration, "model_bytes", len(result.Model))
	}

	if result.JobID != "" {
		if err := w.publish(ctx, result); err != nil {
			// Left unacked so the job is redelivered to the group.
			log.Errorf("failed to publish result for job %s: %v", result.JobID, err)
			return
		}
	}

	if err := w.client.XAck(ctx, InputStream, w.Group, msg.ID).Err(); err != nil {
		log.Warnf("failed to ack message %s: %v", msg.ID, err)
	}
}

func (w *Worker) publish(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	err = w.client.XAdd(ctx, &redis.XAddArgs{
		Stream: OutputStream,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return err
	}

	return w.client.XTrimMaxLen(ctx, OutputStream, maxStreamLen).Err()
}
