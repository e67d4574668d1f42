package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	pkgerrors "github.com/turtacn/padel-featurizer/pkg/errors"
)

type JobRepositorySuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo *JobRepository
	id   uuid.UUID
}

func TestJobRepositorySuite(t *testing.T) {
	suite.Run(t, new(JobRepositorySuite))
}

func (s *JobRepositorySuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db, s.mock = db, mock
	s.repo = NewJobRepository(NewConnectionWithDB(db, nil))
	s.id = uuid.New()
}

func (s *JobRepositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *JobRepositorySuite) TestStart() {
	s.mock.ExpectExec("INSERT INTO featurize_jobs").
		WithArgs(s.id, JobStatusRunning, 50).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Start(context.Background(), s.id, 50))
}

func (s *JobRepositorySuite) TestFinishSucceeded() {
	s.mock.ExpectExec("UPDATE featurize_jobs").
		WithArgs(s.id, JobStatusSucceeded, 48, sql.NullString{String: "jobs/x.npy", Valid: true}, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Finish(context.Background(), s.id, 48, "jobs/x.npy", nil))
}

func (s *JobRepositorySuite) TestFinishFailed() {
	s.mock.ExpectExec("UPDATE featurize_jobs").
		WithArgs(s.id, JobStatusFailed, 0, sql.NullString{}, sql.NullString{String: "boom", Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Finish(context.Background(), s.id, 0, "", errors.New("boom")))
}

func (s *JobRepositorySuite) TestFinishUnknownJob() {
	s.mock.ExpectExec("UPDATE featurize_jobs").WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.repo.Finish(context.Background(), s.id, 0, "", nil)
	s.True(pkgerrors.IsNotFound(err))
}

func (s *JobRepositorySuite) TestGet() {
	now := time.Now()
	s.mock.ExpectQuery("SELECT id, status").
		WithArgs(s.id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "molecules", "kept", "artifact", "error", "created_at", "finished_at"}).
			AddRow(s.id.String(), JobStatusSucceeded, 3, 3, "jobs/a.npy", nil, now, now))

	job, err := s.repo.Get(context.Background(), s.id)
	s.Require().NoError(err)
	s.Equal(s.id, job.ID)
	s.Equal("jobs/a.npy", job.Artifact)
	s.Empty(job.Error)
	s.NotNil(job.FinishedAt)
}

func (s *JobRepositorySuite) TestGetNotFound() {
	s.mock.ExpectQuery("SELECT id, status").WithArgs(s.id).WillReturnError(sql.ErrNoRows)
	_, err := s.repo.Get(context.Background(), s.id)
	s.True(pkgerrors.IsNotFound(err))
}

//Personal.AI order the ending
