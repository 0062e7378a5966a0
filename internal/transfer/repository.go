package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrScheduleNotFound indicates no scheduled transfer matches the identifier.
var ErrScheduleNotFound = errors.New("scheduled transfer not found")

// ScheduleRepository persists scheduled transfers.
type ScheduleRepository interface {
	Create(ctx context.Context, st ScheduledTransfer) error
	Get(ctx context.Context, id string) (ScheduledTransfer, error)
	Update(ctx context.Context, st ScheduledTransfer) error
	Delete(ctx context.Context, id string) error
	ByUser(ctx context.Context, userID string) ([]ScheduledTransfer, error)
	// DueBefore returns active scheduled transfers whose next execution date
	// is at or before the given instant.
	DueBefore(ctx context.Context, now time.Time) ([]ScheduledTransfer, error)
}

// PostgresScheduleRepository stores scheduled transfers in PostgreSQL.
type PostgresScheduleRepository struct {
	db *pgxpool.Pool
}

// NewPostgresScheduleRepository builds a Postgres-backed schedule repository.
func NewPostgresScheduleRepository(db *pgxpool.Pool) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

const scheduleColumns = `id, user_id, recipient_email, recipient_id, amount::text, description,
    frequency, next_execution_date, last_execution_date, execution_count, status, end_date, created_at`

// Create inserts a scheduled transfer row.
func (r *PostgresScheduleRepository) Create(ctx context.Context, st ScheduledTransfer) error {
	id, err := uuid.Parse(st.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO scheduled_transfers
        (id, user_id, recipient_email, recipient_id, amount, description, frequency,
         next_execution_date, last_execution_date, execution_count, status, end_date, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, st.UserID, st.RecipientEmail, nullableString(st.RecipientID), st.Amount.String(), st.Description,
		string(st.Frequency), st.NextExecutionDate.UTC(), nullableTime(st.LastExecutionDate),
		st.ExecutionCount, string(st.Status), nullableTime(st.EndDate), st.CreatedAt.UTC())
	return err
}

// Get fetches a scheduled transfer by identifier.
func (r *PostgresScheduleRepository) Get(ctx context.Context, id string) (ScheduledTransfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM scheduled_transfers WHERE id = $1`, id)
	st, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScheduledTransfer{}, ErrScheduleNotFound
	}
	return st, err
}

// Update replaces the mutable fields of a scheduled transfer.
func (r *PostgresScheduleRepository) Update(ctx context.Context, st ScheduledTransfer) error {
	cmd, err := r.db.Exec(ctx, `UPDATE scheduled_transfers SET
        recipient_id = $2, next_execution_date = $3, last_execution_date = $4,
        execution_count = $5, status = $6
        WHERE id = $1`,
		st.ID, nullableString(st.RecipientID), st.NextExecutionDate.UTC(),
		nullableTime(st.LastExecutionDate), st.ExecutionCount, string(st.Status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// Delete removes a scheduled transfer.
func (r *PostgresScheduleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM scheduled_transfers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// ByUser lists the user's scheduled transfers, newest first.
func (r *PostgresScheduleRepository) ByUser(ctx context.Context, userID string) ([]ScheduledTransfer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+scheduleColumns+` FROM scheduled_transfers
        WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// DueBefore lists active scheduled transfers due at or before now.
func (r *PostgresScheduleRepository) DueBefore(ctx context.Context, now time.Time) ([]ScheduledTransfer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+scheduleColumns+` FROM scheduled_transfers
        WHERE status = $1 AND next_execution_date <= $2
        ORDER BY next_execution_date`, string(ScheduleActive), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func collectSchedules(rows pgx.Rows) ([]ScheduledTransfer, error) {
	var out []ScheduledTransfer
	for rows.Next() {
		st, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanSchedule(row pgx.Row) (ScheduledTransfer, error) {
	var (
		st          ScheduledTransfer
		amount      string
		frequency   string
		status      string
		recipientID *string
		lastExec    *time.Time
		endDate     *time.Time
	)
	if err := row.Scan(&st.ID, &st.UserID, &st.RecipientEmail, &recipientID, &amount, &st.Description,
		&frequency, &st.NextExecutionDate, &lastExec, &st.ExecutionCount, &status, &endDate, &st.CreatedAt); err != nil {
		return ScheduledTransfer{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return ScheduledTransfer{}, err
	}
	st.Amount = parsed
	st.Frequency = Frequency(frequency)
	st.Status = ScheduleStatus(status)
	if recipientID != nil {
		st.RecipientID = *recipientID
	}
	if lastExec != nil {
		st.LastExecutionDate = lastExec.UTC()
	}
	if endDate != nil {
		st.EndDate = endDate.UTC()
	}
	st.NextExecutionDate = st.NextExecutionDate.UTC()
	st.CreatedAt = st.CreatedAt.UTC()
	return st, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
