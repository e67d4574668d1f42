package worker

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/padel-featurizer/internal/application/featurize"
	"github.com/turtacn/padel-featurizer/internal/featurizer/calc"
	"github.com/turtacn/padel-featurizer/internal/featurizer/registry"
	"github.com/turtacn/padel-featurizer/internal/featurizer/trans"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/database/redis"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/padel-featurizer/internal/infrastructure/storage/minio"
	"github.com/turtacn/padel-featurizer/internal/testutil"
	"github.com/turtacn/padel-featurizer/pkg/errors"
)

const resultTopic = "padel.featurize.results"

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*kafka.ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *kafka.ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type memArtifacts struct {
	objects map[string][]byte
	err     error
}

func (m *memArtifacts) Upload(_ context.Context, req *minio.UploadRequest) (*minio.UploadResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.objects[req.Key] = req.Data
	return &minio.UploadResult{Bucket: "artifacts", Key: req.Key, Size: int64(len(req.Data))}, nil
}

type mockJobStore struct{ mock.Mock }

func (m *mockJobStore) Start(ctx context.Context, id uuid.UUID, molecules int) error {
	return m.Called(ctx, id, molecules).Error(0)
}

func (m *mockJobStore) Finish(ctx context.Context, id uuid.UUID, kept int, artifact string, jobErr error) error {
	return m.Called(ctx, id, kept, artifact, jobErr).Error(0)
}

type WorkerSuite struct {
	suite.Suite
	fake      *testutil.FakePadel
	svc       featurize.Service
	results   *recordingPublisher
	artifacts *memArtifacts
	jobs      *mockJobStore
	log       *testutil.MockLogger
	worker    *Worker
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.fake = testutil.NewFakePadel()
	f, err := registry.Default().New(context.Background(), calc.Name, registry.Deps{
		Client:      s.fake,
		Transformer: trans.DefaultTransformerConfig(),
	}, nil)
	s.Require().NoError(err)
	s.svc = featurize.NewService(f, calc.DefaultParams(), nil)

	s.results = &recordingPublisher{}
	s.artifacts = &memArtifacts{objects: map[string][]byte{}}
	s.jobs = &mockJobStore{}
	s.log = testutil.NewMockLogger()

	s.worker, err = New(s.svc, s.results, Config{ResultTopic: resultTopic},
		WithArtifacts(s.artifacts), WithJobs(s.jobs), WithLogger(s.log))
	s.Require().NoError(err)
}

func (s *WorkerSuite) request(payload kafka.FeaturizeRequestedPayload) *kafka.Message {
	env, err := kafka.NewEventEnvelope(kafka.EventFeaturizeRequested, "test", payload)
	s.Require().NoError(err)
	env.TraceID = "trace-1"
	pm, err := env.ToMessage("padel.featurize.requests", payload.JobID)
	s.Require().NoError(err)
	return &kafka.Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value, Headers: pm.Headers}
}

func (s *WorkerSuite) result() (*kafka.EventEnvelope, kafka.FeaturizeResultPayload) {
	s.Require().Len(s.results.msgs, 1)
	msg := s.results.msgs[0]
	s.Equal(resultTopic, msg.Topic)
	env, err := kafka.MessageToEventEnvelope(&kafka.Message{Value: msg.Value})
	s.Require().NoError(err)
	var p kafka.FeaturizeResultPayload
	s.Require().NoError(env.DecodePayload(&p))
	s.Equal(p.JobID, string(msg.Key))
	return env, p
}

func (s *WorkerSuite) TestSucceeded() {
	id := uuid.New()
	s.jobs.On("Start", mock.Anything, id, 2).Return(nil)
	s.jobs.On("Finish", mock.Anything, id, 2, "s3://artifacts/"+id.String()+".npy", nil).Return(nil)

	err := s.worker.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{
		JobID: id.String(), SMILES: []string{"CCO", "CCN"},
	}))
	s.Require().NoError(err)

	env, res := s.result()
	s.Equal(kafka.EventFeaturizeCompleted, env.EventType)
	s.Equal("trace-1", env.TraceID)
	s.Equal("succeeded", res.Status)
	s.Equal(calc.Name, res.Featurizer)
	s.Equal(2, res.Rows)
	s.Equal([]int{0, 1}, res.Kept)
	s.Empty(res.Failed)
	s.Len(res.Columns, 5)

	data := s.artifacts.objects[id.String()+".npy"]
	s.True(bytes.HasPrefix(data, []byte("\x93NUMPY")))
	s.jobs.AssertExpectations(s.T())
	s.True(s.log.HasMessage("info", "Job succeeded"))
}

func (s *WorkerSuite) TestIgnoreErrorsReportsFailedIndices() {
	s.jobs.On("Start", mock.Anything, mock.Anything, 2).Return(nil)
	s.jobs.On("Finish", mock.Anything, mock.Anything, 1, mock.Anything, nil).Return(nil)

	s.Require().NoError(s.worker.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{
		SMILES: []string{"CCO", "C1CC"}, IgnoreErrors: true,
	})))
	_, res := s.result()
	s.Equal("succeeded", res.Status)
	s.Equal([]int{0}, res.Kept)
	s.Equal([]int{1}, res.Failed)
	_, err := uuid.Parse(res.JobID)
	s.NoError(err, "a job id is assigned when the request has none")
}

func (s *WorkerSuite) TestRedeliveryKeepsDerivedJobID() {
	var ids []uuid.UUID
	s.jobs.On("Start", mock.Anything, mock.Anything, 1).Run(func(args mock.Arguments) {
		ids = append(ids, args.Get(1).(uuid.UUID))
	}).Return(nil)
	s.jobs.On("Finish", mock.Anything, mock.Anything, 1, mock.Anything, nil).Return(nil)

	msg := s.request(kafka.FeaturizeRequestedPayload{SMILES: []string{"CCO"}})
	s.Require().NoError(s.worker.Handle(context.Background(), msg))
	s.Require().NoError(s.worker.Handle(context.Background(), msg))

	s.Require().Len(ids, 2)
	s.Equal(ids[0], ids[1])
	s.Require().Len(s.results.msgs, 2)
	s.Equal(s.results.msgs[0].Key, s.results.msgs[1].Key)

	other := s.request(kafka.FeaturizeRequestedPayload{SMILES: []string{"CCO"}})
	s.Require().NoError(s.worker.Handle(context.Background(), other))
	s.Require().Len(ids, 3)
	s.NotEqual(ids[0], ids[2], "a new event gets a new job id")
}

func (s *WorkerSuite) TestBatchValidationIsAFailedResult() {
	s.jobs.On("Start", mock.Anything, mock.Anything, 2).Return(nil)
	s.jobs.On("Finish", mock.Anything, mock.Anything, 0, "", mock.MatchedBy(func(err error) bool {
		return errors.IsCode(err, errors.ErrCodeBatchValidation)
	})).Return(nil)

	err := s.worker.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{
		SMILES: []string{"CCO", "C1CC"},
	}))
	s.Require().NoError(err, "featurization errors are not redelivered")

	env, res := s.result()
	s.Equal(kafka.EventFeaturizeFailed, env.EventType)
	s.Equal("failed", res.Status)
	s.Equal("FEAT_001", res.ErrorCode)
	s.Empty(res.Artifact)
	s.Empty(s.artifacts.objects)
	s.True(s.log.HasMessage("warn", "Job failed"))
	s.jobs.AssertExpectations(s.T())
}

func (s *WorkerSuite) TestUploadErrorIsRetried() {
	s.artifacts.err = errors.New(errors.ErrCodeExternalService, "minio down")
	s.jobs.On("Start", mock.Anything, mock.Anything, 1).Return(nil)

	err := s.worker.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{SMILES: []string{"CCO"}}))
	s.True(errors.IsCode(err, errors.ErrCodeExternalService))
	s.False(kafka.IsPermanent(err))
	s.Empty(s.results.msgs)
	s.jobs.AssertNotCalled(s.T(), "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *WorkerSuite) TestPublishErrorIsRetried() {
	s.results.err = errors.New(errors.ErrCodeExternalService, "kafka down")
	s.jobs.On("Start", mock.Anything, mock.Anything, 1).Return(nil)

	err := s.worker.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{SMILES: []string{"CCO"}}))
	s.Error(err)
	s.jobs.AssertNotCalled(s.T(), "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

type failingService struct {
	featurize.Service
	err error
}

func (f failingService) Featurize(context.Context, *featurize.Request) (*featurize.Response, error) {
	return nil, f.err
}

func (s *WorkerSuite) TestPadelErrorIsRetried() {
	w, err := New(failingService{Service: s.svc, err: errors.New(errors.ErrCodePadelTimeout, "padel timed out")},
		s.results, Config{ResultTopic: resultTopic}, WithJobs(s.jobs), WithLogger(s.log))
	s.Require().NoError(err)
	s.jobs.On("Start", mock.Anything, mock.Anything, 1).Return(nil)
	s.jobs.On("Finish", mock.Anything, mock.Anything, 0, "", mock.Anything).Return(nil)

	err = w.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{SMILES: []string{"CCO"}}))
	s.True(errors.IsCode(err, errors.ErrCodePadelTimeout))
	s.False(kafka.IsPermanent(err))
	s.Empty(s.results.msgs, "no result until the job settles")
	s.True(s.log.HasMessage("warn", "Job attempt failed"))
	s.jobs.AssertExpectations(s.T())
}

func (s *WorkerSuite) TestMalformedEventsArePermanent() {
	ctx := context.Background()
	s.True(kafka.IsPermanent(s.worker.Handle(ctx, &kafka.Message{Value: []byte("{")})))
	s.True(kafka.IsPermanent(s.worker.Handle(ctx, &kafka.Message{Value: []byte(`{"event_type":"featurize.requested"}`)})))
	s.True(kafka.IsPermanent(s.worker.Handle(ctx, s.request(kafka.FeaturizeRequestedPayload{JobID: "not-a-uuid", SMILES: []string{"C"}}))))
	s.Empty(s.results.msgs)
}

func (s *WorkerSuite) TestOtherEventsAreSkipped() {
	env, err := kafka.NewEventEnvelope(kafka.EventFeaturizeCompleted, "test", kafka.FeaturizeResultPayload{})
	s.Require().NoError(err)
	pm, err := env.ToMessage(resultTopic, "x")
	s.Require().NoError(err)

	s.NoError(s.worker.Handle(context.Background(), &kafka.Message{Value: pm.Value}))
	s.Empty(s.results.msgs)
	s.Equal(1, s.fake.CallCount(), "only the schema probe reached padel")
}

func (s *WorkerSuite) TestHeldLockSkipsJob() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	defer mr.Close()
	client, err := redis.NewClient(&redis.RedisConfig{Addr: mr.Addr()}, nil)
	s.Require().NoError(err)
	defer client.Close()
	locks := redis.NewLockFactory(client, nil)

	w, err := New(s.svc, s.results, Config{ResultTopic: resultTopic, LockTTL: time.Minute},
		WithLocker(locks), WithLogger(s.log))
	s.Require().NoError(err)

	id := uuid.New()
	held := locks.NewJobLock(id.String())
	ok, err := held.TryLock(context.Background())
	s.Require().NoError(err)
	s.Require().True(ok)

	s.NoError(w.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{JobID: id.String(), SMILES: []string{"CCO"}})))
	s.Empty(s.results.msgs)
	s.True(s.log.HasMessage("info", "Job already held by another worker"))

	s.Require().NoError(held.Unlock(context.Background()))
	s.NoError(w.Handle(context.Background(), s.request(kafka.FeaturizeRequestedPayload{JobID: id.String(), SMILES: []string{"CCO"}})))
	s.Len(s.results.msgs, 1)
	s.False(mr.Exists("padel:lock:job:"+id.String()), "lock released after the job")
}

func (s *WorkerSuite) TestNewValidates() {
	_, err := New(nil, s.results, Config{ResultTopic: resultTopic})
	s.Error(err)
	_, err = New(s.svc, nil, Config{ResultTopic: resultTopic})
	s.Error(err)
	_, err = New(s.svc, s.results, Config{})
	s.Error(err)
}
