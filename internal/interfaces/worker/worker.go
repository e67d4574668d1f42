// Package worker runs featurize jobs delivered over Kafka.  Each request
// event is featurized, the matrix is uploaded to object storage as NPY, and a
// result event is published keyed by job id.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/featurizer/export"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/redis"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/storage/minio"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

const (
	sourceName      = "padel-worker"
	npyContentType  = "application/x-npy"
	defaultLockTTL  = 2 * time.Minute
	defaultJobLimit = 10 * time.Minute
)

// ArtifactStore uploads job matrices.  minio.ArtifactRepository implements it.
type ArtifactStore interface {
	Upload(ctx context.Context, req *minio.UploadRequest) (*minio.UploadResult, error)
}

// JobStore records job progress.  *postgres.JobRepository implements it.
type JobStore interface {
	Start(ctx context.Context, id uuid.UUID, molecules int) error
	Finish(ctx context.Context, id uuid.UUID, kept int, artifact string, jobErr error) error
}

// Locker hands out per-job leases.  *redis.LockFactory implements it.
type Locker interface {
	NewJobLock(jobID string, opts ...redis.LockOption) redis.JobLock
}

// Config names the result topic and bounds each job.
type Config struct {
	ResultTopic string
	JobTimeout  time.Duration
	LockTTL     time.Duration
}

// Option wires an optional collaborator.
type Option func(*Worker)

func WithArtifacts(a ArtifactStore) Option { return func(w *Worker) { w.artifacts = a } }
func WithJobs(j JobStore) Option           { return func(w *Worker) { w.jobs = j } }
func WithLocker(l Locker) Option           { return func(w *Worker) { w.locks = l } }
func WithLogger(l logging.Logger) Option   { return func(w *Worker) { w.logger = l } }

func WithMetrics(m *prometheus.FeaturizerMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// Worker handles featurize.requested events.
type Worker struct {
	svc       featurize.Service
	results   kafka.Publisher
	cfg       Config
	artifacts ArtifactStore
	jobs      JobStore
	locks     Locker
	metrics   *prometheus.FeaturizerMetrics
	logger    logging.Logger
}

// New returns a worker publishing results through results.
func New(svc featurize.Service, results kafka.Publisher, cfg Config, opts ...Option) (*Worker, error) {
	if svc == nil || results == nil {
		return nil, errors.New(errors.ErrCodeValidation, "featurize service and result publisher are required")
	}
	if cfg.ResultTopic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "result topic required")
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	w := &Worker{svc: svc, results: results, cfg: cfg}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.NewNopLogger()
	}
	w.logger = w.logger.Named("worker")
	return w, nil
}

// Handle is a kafka.MessageHandler.  Malformed events are permanent
// failures.  Client-class featurization errors (bad SMILES, batch
// validation) are published as failed results.  PaDEL, storage and publish
// errors are returned so the consumer retries and finally dead-letters.
func (w *Worker) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return kafka.Permanent(err)
	}
	if env.EventType != kafka.EventFeaturizeRequested {
		w.logger.Debug("Skipping event", logging.String("event_type", env.EventType))
		return nil
	}
	var req kafka.FeaturizeRequestedPayload
	if err := env.DecodePayload(&req); err != nil {
		return kafka.Permanent(err)
	}

	id, err := jobID(env, msg, &req)
	if err != nil {
		return kafka.Permanent(err)
	}
	log := w.logger.With(logging.String("job_id", id.String()), logging.String("event_id", env.EventID))

	if w.locks != nil {
		lock := w.locks.NewJobLock(id.String(), redis.WithLockTTL(w.cfg.LockTTL), redis.WithWatchdog(w.cfg.LockTTL/3))
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("Job already held by another worker")
			return nil
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to release job lock", logging.Err(err))
			}
		}()
	}

	return w.run(ctx, id, env.TraceID, &req, log)
}

// jobID returns the request's job id or, when it has none, one derived from
// the event so a redelivered request keeps its id and its job lock.
func jobID(env *kafka.EventEnvelope, msg *kafka.Message, req *kafka.FeaturizeRequestedPayload) (uuid.UUID, error) {
	if req.JobID != "" {
		id, err := uuid.Parse(req.JobID)
		if err != nil {
			return uuid.Nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid job id").WithDetail(req.JobID)
		}
		return id, nil
	}
	seed := env.EventID
	if seed == "" {
		seed = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)), nil
}

func (w *Worker) run(ctx context.Context, id uuid.UUID, traceID string, req *kafka.FeaturizeRequestedPayload, log logging.Logger) error {
	start := time.Now()
	if w.jobs != nil {
		if err := w.jobs.Start(ctx, id, len(req.SMILES)); err != nil {
			return err
		}
	}
	log.Info("Job started", logging.Int("molecules", len(req.SMILES)))

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	freq := &featurize.Request{SMILES: req.SMILES, IgnoreErrors: req.IgnoreErrors}
	resp, jobErr := w.svc.Featurize(jobCtx, freq)
	if jobErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if jobErr != nil && errors.IsServerError(errors.GetCode(jobErr)) {
		if w.jobs != nil {
			if err := w.jobs.Finish(ctx, id, 0, "", jobErr); err != nil {
				log.Error("Failed to record job result", logging.Err(err))
			}
		}
		w.metrics.RecordJob(time.Since(start), jobErr)
		log.Warn("Job attempt failed", logging.Err(jobErr))
		return jobErr
	}

	result := kafka.FeaturizeResultPayload{JobID: id.String(), Featurizer: w.svc.Name()}
	var artifact string
	if jobErr == nil {
		artifact, jobErr = w.store(ctx, id, freq, resp)
		if jobErr != nil && !errors.IsCode(jobErr, errors.ErrCodeExportFailed) {
			return jobErr
		}
	}
	if jobErr == nil {
		result.Status = "succeeded"
		result.Columns = resp.Columns
		result.Rows = len(resp.Rows)
		result.Kept = resp.Kept
		result.Failed = resp.Failed()
		result.Artifact = artifact
	} else {
		result.Status = "failed"
		result.ErrorCode = errors.GetCode(jobErr).String()
		result.Error = jobErr.Error()
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if err := w.publish(ctx, traceID, &result); err != nil {
		return err
	}
	if w.jobs != nil {
		if err := w.jobs.Finish(ctx, id, result.Rows, artifact, jobErr); err != nil {
			log.Error("Failed to record job result", logging.Err(err))
		}
	}
	w.metrics.RecordJob(time.Since(start), jobErr)

	if jobErr != nil {
		log.Warn("Job failed", logging.String("error_code", result.ErrorCode), logging.Err(jobErr))
	} else {
		log.Info("Job succeeded",
			logging.Int("rows", result.Rows),
			logging.Int("failed", len(result.Failed)),
			logging.String("artifact", artifact),
			logging.Duration("duration", time.Since(start)))
	}
	return nil
}

// store encodes resp as NPY and uploads it as <job_id>.npy.  Without an
// artifact store nothing is written and the URI is empty.
func (w *Worker) store(ctx context.Context, id uuid.UUID, req *featurize.Request, resp *featurize.Response) (string, error) {
	if w.artifacts == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := (export.NPY{}).Write(&buf, resp.Table(req)); err != nil {
		return "", err
	}
	res, err := w.artifacts.Upload(ctx, &minio.UploadRequest{
		Key:         id.String() + ".npy",
		Data:        buf.Bytes(),
		ContentType: npyContentType,
		Metadata: map[string]string{
			"featurizer": resp.Featurizer,
			"rows":       strconv.Itoa(len(resp.Rows)),
			"columns":    strconv.Itoa(len(resp.Columns)),
		},
	})
	if err != nil {
		return "", err
	}
	return res.URI(), nil
}

func (w *Worker) publish(ctx context.Context, traceID string, result *kafka.FeaturizeResultPayload) error {
	eventType := kafka.EventFeaturizeCompleted
	if result.Status != "succeeded" {
		eventType = kafka.EventFeaturizeFailed
	}
	env, err := kafka.NewEventEnvelope(eventType, sourceName, result)
	if err != nil {
		return err
	}
	env.TraceID = traceID
	msg, err := env.ToMessage(w.cfg.ResultTopic, result.JobID)
	if err != nil {
		return err
	}
	return w.results.Publish(ctx, msg)
}
