package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// journalRepository implements domain.JournalRepository using GORM
type journalRepository struct {
	db *gorm.DB
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *gorm.DB) domain.JournalRepository {
	return &journalRepository{db: db}
}

// SaveSession upserts a session record keyed by activity and participant,
// together with its question timers. The record's ID is set to the stored row.
func (r *journalRepository) SaveSession(ctx context.Context, record *domain.SessionRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "activity_id"}, {Name: "participant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "current_question_id", "solved_questions", "window_end", "ended_at", "updated_at",
			}),
		}).Omit("Timers").Create(record).Error
		if err != nil {
			return err
		}

		var stored domain.SessionRecord
		if err := tx.Select("id").
			Where("activity_id = ? AND participant_id = ?", record.ActivityID, record.ParticipantID).
			Take(&stored).Error; err != nil {
			return err
		}
		record.ID = stored.ID

		if len(record.Timers) == 0 {
			return nil
		}
		for i := range record.Timers {
			record.Timers[i].SessionID = stored.ID
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"elapsed_seconds"}),
		}).Create(&record.Timers).Error
	})
}

// FindSession finds the session of a participant in an activity
func (r *journalRepository) FindSession(ctx context.Context, activityID, participantID string) (*domain.SessionRecord, error) {
	var record domain.SessionRecord
	result := r.db.WithContext(ctx).
		Preload("Timers").
		Where("activity_id = ? AND participant_id = ?", activityID, participantID).
		First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

// ListOpenSessions returns sessions that are not yet closed
func (r *journalRepository) ListOpenSessions(ctx context.Context) ([]domain.SessionRecord, error) {
	var records []domain.SessionRecord
	result := r.db.WithContext(ctx).
		Preload("Timers").
		Where("state IN ?", []domain.SessionState{domain.SessionStateJoined, domain.SessionStateActive}).
		Order("joined_at ASC").
		Find(&records)
	return records, result.Error
}

// ListRuns returns the runs of a question in a session, newest first
func (r *journalRepository) ListRuns(ctx context.Context, sessionID uuid.UUID, questionID string) ([]domain.RunRecord, error) {
	var runs []domain.RunRecord
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND question_id = ?", sessionID, questionID).
		Order("created_at DESC").
		Find(&runs)
	return runs, result.Error
}
