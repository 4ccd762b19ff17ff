package exam_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mind-engage/masterclass/internal/db"
	"github.com/mind-engage/masterclass/internal/exam"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "masterclass",
				"POSTGRES_PASSWORD": "masterclass",
				"POSTGRES_DB":       "masterclass",
			},
			// postgres restarts once after init
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Terminate(context.Background())) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://masterclass:masterclass@%s:%s/masterclass?sslmode=disable", host, port.Port())
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run container tests")
	}
	ctx := context.Background()
	d, err := db.Open(ctx, db.DriverPostgres, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	f := seedFixture(t, d, db.DriverPostgres, 10)
	svc := exam.NewService(f.store, nil, exam.Options{QuestionCount: 10, Location: time.UTC})

	set, err := svc.Questions(ctx, f.enrollment.ID, exam.TypePre)
	require.NoError(t, err)
	require.Len(t, set.Questions, 10)

	out, err := svc.Submit(ctx, exam.Submission{EnrollmentID: f.enrollment.ID, Type: exam.TypePre, Answers: f.answers(6)})
	require.NoError(t, err)
	require.Equal(t, 6, out.Score)
	require.True(t, out.Passed)

	enr, err := f.store.GetEnrollment(ctx, f.enrollment.ID)
	require.NoError(t, err)
	require.True(t, enr.Validated)

	_, err = svc.Submit(ctx, exam.Submission{EnrollmentID: f.enrollment.ID, Type: exam.TypePre, Answers: f.answers(10)})
	require.ErrorIs(t, err, exam.ErrConflict)

	dup := f.profile
	dup.ID = "other"
	require.ErrorIs(t, f.store.CreateProfile(ctx, dup), exam.ErrConflict)

	se := f.bookSession(t, "2025-11-10")
	got, err := f.store.SessionFor(ctx, f.enrollment.ID)
	require.NoError(t, err)
	require.Equal(t, se.ID, got.ID)
}
