package repository

import (
	"context"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// AppendRun journals one run of public test cases
func (r *journalRepository) AppendRun(ctx context.Context, run *domain.RunRecord) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// AppendSubmission journals a submission accepted by the backend
func (r *journalRepository) AppendSubmission(ctx context.Context, submission *domain.SubmissionRecord) error {
	return r.db.WithContext(ctx).Create(submission).Error
}
