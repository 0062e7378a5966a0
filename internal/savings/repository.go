package savings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists savings circles with their embedded member rotation.
type Repository interface {
	Create(ctx context.Context, c Circle) error
	Get(ctx context.Context, id string) (Circle, error)
	GetByInviteCode(ctx context.Context, code string) (Circle, error)
	Update(ctx context.Context, c Circle) error
	Delete(ctx context.Context, id string) error
	ByUser(ctx context.Context, userID string) ([]Circle, error)
}

// memberRecord is the JSON shape members are stored as.
type memberRecord struct {
	UserID                  string `json:"user_id"`
	Position                int    `json:"position"`
	HasPaidCurrentCycle     bool   `json:"has_paid_current_cycle"`
	HasReceivedCurrentCycle bool   `json:"has_received_current_cycle"`
	TotalContributed        string `json:"total_contributed"`
	TotalReceived           string `json:"total_received"`
}

// PostgresRepository stores circles in PostgreSQL, members as a jsonb column
// so the rotation state always round-trips as one aggregate.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed circle repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const circleColumns = `id, name, creator_id, contribution_amount::text, currency, frequency,
    total_cycles, current_cycle, current_payout_position, members, is_active, invite_code, created_at`

// Create inserts a circle row.
func (r *PostgresRepository) Create(ctx context.Context, c Circle) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	members, err := marshalMembers(c.Members)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO savings_circles
        (id, name, creator_id, contribution_amount, currency, frequency, total_cycles,
         current_cycle, current_payout_position, members, is_active, invite_code, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, c.Name, c.CreatorID, c.ContributionAmount.String(), c.Currency, string(c.Frequency),
		c.TotalCycles, c.CurrentCycle, c.CurrentPayoutPosition, members, c.IsActive, c.InviteCode, c.CreatedAt.UTC())
	return err
}

// Get fetches a circle by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Circle, error) {
	row := r.db.QueryRow(ctx, `SELECT `+circleColumns+` FROM savings_circles WHERE id = $1`, id)
	return scanCircle(row)
}

// GetByInviteCode fetches a circle by its invite code.
func (r *PostgresRepository) GetByInviteCode(ctx context.Context, code string) (Circle, error) {
	row := r.db.QueryRow(ctx, `SELECT `+circleColumns+` FROM savings_circles WHERE invite_code = $1`, code)
	return scanCircle(row)
}

// Update replaces the circle aggregate.
func (r *PostgresRepository) Update(ctx context.Context, c Circle) error {
	members, err := marshalMembers(c.Members)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `UPDATE savings_circles SET
        current_cycle = $2, current_payout_position = $3, members = $4, is_active = $5
        WHERE id = $1`,
		c.ID, c.CurrentCycle, c.CurrentPayoutPosition, members, c.IsActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCircleNotFound
	}
	return nil
}

// Delete removes a circle.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM savings_circles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCircleNotFound
	}
	return nil
}

// ByUser lists circles the user belongs to.
func (r *PostgresRepository) ByUser(ctx context.Context, userID string) ([]Circle, error) {
	rows, err := r.db.Query(ctx, `SELECT `+circleColumns+` FROM savings_circles
        WHERE members @> $1 ORDER BY created_at DESC`,
		[]byte(`[{"user_id":"`+userID+`"}]`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Circle
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func marshalMembers(members []Member) ([]byte, error) {
	records := make([]memberRecord, 0, len(members))
	for _, m := range members {
		records = append(records, memberRecord{
			UserID:                  m.UserID,
			Position:                m.Position,
			HasPaidCurrentCycle:     m.HasPaidCurrentCycle,
			HasReceivedCurrentCycle: m.HasReceivedCurrentCycle,
			TotalContributed:        m.TotalContributed.String(),
			TotalReceived:           m.TotalReceived.String(),
		})
	}
	return json.Marshal(records)
}

func scanCircle(row pgx.Row) (Circle, error) {
	var (
		c         Circle
		id        uuid.UUID
		amount    string
		frequency string
		members   []byte
		createdAt time.Time
	)
	if err := row.Scan(&id, &c.Name, &c.CreatorID, &amount, &c.Currency, &frequency,
		&c.TotalCycles, &c.CurrentCycle, &c.CurrentPayoutPosition, &members, &c.IsActive,
		&c.InviteCode, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Circle{}, ErrCircleNotFound
		}
		return Circle{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Circle{}, err
	}
	var records []memberRecord
	if err := json.Unmarshal(members, &records); err != nil {
		return Circle{}, err
	}
	c.Members = make([]Member, 0, len(records))
	for _, rec := range records {
		contributed, err := decimal.NewFromString(rec.TotalContributed)
		if err != nil {
			return Circle{}, err
		}
		received, err := decimal.NewFromString(rec.TotalReceived)
		if err != nil {
			return Circle{}, err
		}
		c.Members = append(c.Members, Member{
			UserID:                  rec.UserID,
			Position:                rec.Position,
			HasPaidCurrentCycle:     rec.HasPaidCurrentCycle,
			HasReceivedCurrentCycle: rec.HasReceivedCurrentCycle,
			TotalContributed:        contributed,
			TotalReceived:           received,
		})
	}
	c.ID = id.String()
	c.ContributionAmount = parsed
	c.Frequency = Frequency(frequency)
	c.CreatedAt = createdAt.UTC()
	return c, nil
}
