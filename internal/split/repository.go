package split

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists split groups, their contributions and pool payments.
type Repository interface {
	CreateGroup(ctx context.Context, g Group) error
	Group(ctx context.Context, id string) (Group, error)
	GroupByInviteCode(ctx context.Context, code string) (Group, error)
	UpdateGroup(ctx context.Context, g Group) error
	DeleteGroup(ctx context.Context, id string) error
	GroupsByUser(ctx context.Context, userID string) ([]Group, error)

	AddContribution(ctx context.Context, c Contribution) error
	ContributionsByGroup(ctx context.Context, groupID string) ([]Contribution, error)

	CreatePayment(ctx context.Context, p Payment) error
	Payment(ctx context.Context, id string) (Payment, error)
	UpdatePayment(ctx context.Context, p Payment) error
	PaymentsByGroup(ctx context.Context, groupID string) ([]Payment, error)
}

// PostgresRepository is the PostgreSQL-backed split store. Member and
// approval lists are text arrays; the pool balance lives on the group row.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed split repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const groupColumns = `id, name, creator_id, members, balance::text, currency, invite_code, created_at`

func (r *PostgresRepository) CreateGroup(ctx context.Context, g Group) error {
	id, err := uuid.Parse(g.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO split_groups
        (id, name, creator_id, members, balance, currency, invite_code, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, g.Name, g.CreatorID, g.Members, g.Balance.String(), g.Currency, g.InviteCode, g.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) Group(ctx context.Context, id string) (Group, error) {
	row := r.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM split_groups WHERE id = $1`, id)
	return scanGroup(row)
}

func (r *PostgresRepository) GroupByInviteCode(ctx context.Context, code string) (Group, error) {
	row := r.db.QueryRow(ctx, `SELECT `+groupColumns+` FROM split_groups WHERE invite_code = $1`, code)
	return scanGroup(row)
}

func (r *PostgresRepository) UpdateGroup(ctx context.Context, g Group) error {
	cmd, err := r.db.Exec(ctx, `UPDATE split_groups SET members = $2, balance = $3 WHERE id = $1`,
		g.ID, g.Members, g.Balance.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteGroup(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM split_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *PostgresRepository) GroupsByUser(ctx context.Context, userID string) ([]Group, error) {
	rows, err := r.db.Query(ctx, `SELECT `+groupColumns+` FROM split_groups
        WHERE $1 = ANY(members) ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AddContribution(ctx context.Context, c Contribution) error {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO split_contributions
        (id, group_id, contributor_id, amount, reference, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		id, c.GroupID, c.ContributorID, c.Amount.String(), c.Reference, c.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) ContributionsByGroup(ctx context.Context, groupID string) ([]Contribution, error) {
	rows, err := r.db.Query(ctx, `SELECT id, group_id, contributor_id, amount::text, reference, created_at
        FROM split_contributions WHERE group_id = $1 ORDER BY created_at`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var (
			c      Contribution
			id     uuid.UUID
			amount string
		)
		if err := rows.Scan(&id, &c.GroupID, &c.ContributorID, &amount, &c.Reference, &c.CreatedAt); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		c.ID = id.String()
		c.Amount = parsed
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) CreatePayment(ctx context.Context, p Payment) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO split_payments
        (id, group_id, initiator_id, recipient_id, amount, description, status,
         approvals, min_approvals, reference, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, p.GroupID, p.InitiatorID, p.RecipientID, p.Amount.String(), p.Description,
		string(p.Status), p.Approvals, p.MinApprovals, p.Reference, p.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) Payment(ctx context.Context, id string) (Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT id, group_id, initiator_id, recipient_id, amount::text,
        description, status, approvals, min_approvals, reference, created_at
        FROM split_payments WHERE id = $1`, id)
	return scanPayment(row)
}

// UpdatePayment writes approvals and status. The pending guard makes the
// completed transition first-writer-wins so the pool cannot be decremented
// twice for one payment.
func (r *PostgresRepository) UpdatePayment(ctx context.Context, p Payment) error {
	cmd, err := r.db.Exec(ctx, `UPDATE split_payments
        SET status = $2, approvals = $3
        WHERE id = $1 AND status = 'pending'`,
		p.ID, string(p.Status), p.Approvals)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotPending
	}
	return nil
}

func (r *PostgresRepository) PaymentsByGroup(ctx context.Context, groupID string) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT id, group_id, initiator_id, recipient_id, amount::text,
        description, status, approvals, min_approvals, reference, created_at
        FROM split_payments WHERE group_id = $1 ORDER BY created_at DESC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanGroup(row pgx.Row) (Group, error) {
	var (
		g       Group
		id      uuid.UUID
		balance string
	)
	if err := row.Scan(&id, &g.Name, &g.CreatorID, &g.Members, &balance, &g.Currency,
		&g.InviteCode, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, ErrGroupNotFound
		}
		return Group{}, err
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return Group{}, err
	}
	g.ID = id.String()
	g.Balance = parsed
	g.CreatedAt = g.CreatedAt.UTC()
	return g, nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var (
		p         Payment
		id        uuid.UUID
		amount    string
		status    string
		createdAt time.Time
	)
	if err := row.Scan(&id, &p.GroupID, &p.InitiatorID, &p.RecipientID, &amount,
		&p.Description, &status, &p.Approvals, &p.MinApprovals, &p.Reference, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Payment{}, err
	}
	p.ID = id.String()
	p.Amount = parsed
	p.Status = PaymentStatus(status)
	p.CreatedAt = createdAt.UTC()
	return p, nil
}
