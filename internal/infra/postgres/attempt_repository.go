package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-score-service/internal/domain"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:at"`

	ID             int64      `bun:"id,pk,autoincrement"`
	UserID         string     `bun:"user_id,notnull"`
	QuizID         int64      `bun:"quiz_id,notnull"`
	Score          float64    `bun:"score,notnull"`
	EarnedPoints   int        `bun:"earned_points,notnull"`
	TotalPoints    int        `bun:"total_points,notnull"`
	StartedAt      *time.Time `bun:"started_at"`
	CompletedAt    time.Time  `bun:"completed_at,notnull"`
	ElapsedSeconds *int64     `bun:"elapsed_seconds"`
}

type attemptResultRow struct {
	bun.BaseModel `bun:"table:attempt_results,alias:ar"`

	ID            int64           `bun:"id,pk,autoincrement"`
	AttemptID     int64           `bun:"attempt_id,notnull"`
	Position      int             `bun:"position,notnull"`
	QuestionID    int64           `bun:"question_id,notnull"`
	QuestionText  string          `bun:"question_text,notnull"`
	QuestionType  string          `bun:"question_type,notnull"`
	Points        int             `bun:"points,notnull"`
	Correct       bool            `bun:"is_correct,notnull"`
	PointsAwarded int             `bun:"points_awarded,notnull"`
	Answers       json.RawMessage `bun:"answers,type:jsonb"`
}

// AttemptRepository persists attempts in Postgres via bun. The attempt row
// and its per-question result rows are written in one transaction, so a
// partial attempt can never be observed.
type AttemptRepository struct {
	db *bun.DB
}

func NewAttemptRepository(db *bun.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

func (r *AttemptRepository) Record(ctx context.Context, attempt domain.Attempt) (int64, error) {
	row := attemptRow{
		UserID:         attempt.UserID,
		QuizID:         attempt.QuizID,
		Score:          attempt.Score,
		EarnedPoints:   attempt.EarnedPoints,
		TotalPoints:    attempt.TotalPoints,
		CompletedAt:    attempt.CompletedAt,
		ElapsedSeconds: attempt.ElapsedSeconds,
	}
	if !attempt.StartedAt.IsZero() {
		started := attempt.StartedAt
		row.StartedAt = &started
	}

	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}

		if len(attempt.Results) == 0 {
			return nil
		}
		resultRows := make([]attemptResultRow, 0, len(attempt.Results))
		for i, qr := range attempt.Results {
			answers, err := json.Marshal(qr.Answers)
			if err != nil {
				return fmt.Errorf("marshal answer reviews: %w", err)
			}
			resultRows = append(resultRows, attemptResultRow{
				AttemptID:     row.ID,
				Position:      i,
				QuestionID:    qr.QuestionID,
				QuestionText:  qr.QuestionText,
				QuestionType:  string(qr.Type),
				Points:        qr.Points,
				Correct:       qr.Correct,
				PointsAwarded: qr.PointsAwarded,
				Answers:       answers,
			})
		}
		if _, err := tx.NewInsert().Model(&resultRows).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt results: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return row.ID, nil
}

// ListByUser returns the owner's attempts newest first, without the
// per-question breakdown (statistics and listings only need the totals).
func (r *AttemptRepository) ListByUser(ctx context.Context, userID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("completed_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	attempts := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		a := domain.Attempt{
			ID:             row.ID,
			UserID:         row.UserID,
			QuizID:         row.QuizID,
			Score:          row.Score,
			EarnedPoints:   row.EarnedPoints,
			TotalPoints:    row.TotalPoints,
			CompletedAt:    row.CompletedAt,
			ElapsedSeconds: row.ElapsedSeconds,
		}
		if row.StartedAt != nil {
			a.StartedAt = *row.StartedAt
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
