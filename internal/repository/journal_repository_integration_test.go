//go:build integration

package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
)

func TestJournalRepositoryAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	db := startPostgres(t, ctx)
	journal := NewJournalRepository(db)

	joined := time.Now().UTC().Truncate(time.Second)
	record := &domain.SessionRecord{
		ActivityID:      "c1",
		ActivityKind:    domain.ActivityKindChallenge,
		ParticipantID:   "u1",
		State:           domain.SessionStateActive,
		SolvedQuestions: []string{"q1"},
		JoinedAt:        joined,
		Timers:          []domain.QuestionTimer{{QuestionID: "q1", ElapsedSeconds: 30}},
	}
	if err := journal.SaveSession(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}
	firstID := record.ID

	record.ID = uuid.Nil
	record.State = domain.SessionStateSubmitted
	record.Timers = []domain.QuestionTimer{{QuestionID: "q1", ElapsedSeconds: 90}}
	if err := journal.SaveSession(ctx, record); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if record.ID != firstID {
		t.Fatalf("expected upsert to keep id %s, got %s", firstID, record.ID)
	}

	found, err := journal.FindSession(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.State != domain.SessionStateSubmitted || found.TimerMap()["q1"] != 90*time.Second {
		t.Fatalf("unexpected record %+v", found)
	}
	if len(found.SolvedQuestions) != 1 || found.SolvedQuestions[0] != "q1" {
		t.Fatalf("unexpected solved %v", found.SolvedQuestions)
	}

	open, err := journal.ListOpenSessions(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open sessions, got %d", len(open))
	}

	run := &domain.RunRecord{
		SessionID:  firstID,
		QuestionID: "q1",
		Language:   domain.LanguagePython,
		AllPassed:  true,
		Results:    []domain.ExecutionResult{{Input: "1", ExpectedOutput: "1", ActualOutput: "1", Status: domain.StatusPass}},
	}
	if err := journal.AppendRun(ctx, run); err != nil {
		t.Fatalf("append run: %v", err)
	}
	runs, err := journal.ListRuns(ctx, firstID, "q1")
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || len(runs[0].Results) != 1 || runs[0].Results[0].Status != domain.StatusPass {
		t.Fatalf("unexpected runs %+v", runs)
	}

	if err := journal.AppendSubmission(ctx, &domain.SubmissionRecord{
		SessionID:     firstID,
		ActivityID:    "c1",
		QuestionID:    "q1",
		ParticipantID: "u1",
		Language:      domain.LanguagePython,
		Code:          "print(1)",
		SubmittedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("append submission: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) *gorm.DB {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "engine", "POSTGRES_PASSWORD": "engine", "POSTGRES_DB": "engine"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://engine:engine@%s:%s/engine?sslmode=disable", host, port.Port())

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(infrastructure.JournalModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
