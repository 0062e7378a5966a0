package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists wallets and the transaction log in PostgreSQL.
// Postings run inside a single database transaction with conditional,
// row-locked balance updates so debits are serialized per wallet.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// CreateWallet inserts a wallet row.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(w.UserID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, user_id, balance, currency, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, walletID, userID, w.Balance.String(), w.Currency, w.IsActive, w.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

// Wallet fetches a wallet by identifier.
func (s *PostgresStore) Wallet(ctx context.Context, id string) (Wallet, error) {
	return s.scanWallet(s.db.QueryRow(ctx, `SELECT id, user_id, balance::text, currency, is_active, created_at
        FROM wallets WHERE id = $1`, id))
}

// WalletByUser fetches the wallet owned by the given user.
func (s *PostgresStore) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	return s.scanWallet(s.db.QueryRow(ctx, `SELECT id, user_id, balance::text, currency, is_active, created_at
        FROM wallets WHERE user_id = $1`, userID))
}

func (s *PostgresStore) scanWallet(row pgx.Row) (Wallet, error) {
	var (
		w         Wallet
		id        uuid.UUID
		userID    uuid.UUID
		balance   string
		createdAt time.Time
	)
	if err := row.Scan(&id, &userID, &balance, &w.Currency, &w.IsActive, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse balance: %w", err)
	}
	w.ID = id.String()
	w.UserID = userID.String()
	w.Balance = amount
	w.CreatedAt = createdAt.UTC()
	return w, nil
}

// Post applies the posting inside one database transaction.
func (s *PostgresStore) Post(ctx context.Context, p Posting) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Net entries per wallet and apply in a stable order to avoid deadlocks
	// between concurrent postings touching the same wallets.
	deltas := make(map[string]decimal.Decimal)
	for _, e := range p.Entries {
		deltas[e.WalletID] = deltas[e.WalletID].Add(e.Amount)
	}
	walletIDs := make([]string, 0, len(deltas))
	for id := range deltas {
		walletIDs = append(walletIDs, id)
	}
	sort.Strings(walletIDs)

	for _, walletID := range walletIDs {
		delta := deltas[walletID]
		cmd, err := tx.Exec(ctx, `UPDATE wallets
            SET balance = balance + $2
            WHERE id = $1 AND is_active AND balance + $2 >= 0`, walletID, delta.String())
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			var active bool
			if err := tx.QueryRow(ctx, `SELECT is_active FROM wallets WHERE id = $1`, walletID).Scan(&active); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrWalletNotFound
				}
				return err
			}
			if !active {
				return ErrWalletInactive
			}
			return ErrInsufficientFunds
		}
	}

	for _, rec := range p.Records {
		metadata, err := json.Marshal(rec.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO transactions
            (id, user_id, wallet_id, type, amount, currency, reference, status, description, metadata, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			rec.ID, rec.UserID, rec.WalletID, string(rec.Type), rec.Amount.String(), rec.Currency,
			rec.Reference, string(rec.Status), rec.Description, metadata, rec.CreatedAt.UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return err
		}
	}

	for _, u := range p.Updates {
		cmd, err := tx.Exec(ctx, `UPDATE transactions SET status = $2
            WHERE reference = $1 AND status = $3`, u.Reference, string(u.Status), string(StatusPending))
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrTransactionNotFound
		}
	}

	return tx.Commit(ctx)
}

// TransactionByReference fetches a single transaction row.
func (s *PostgresStore) TransactionByReference(ctx context.Context, reference string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT id, user_id, wallet_id, type, amount::text, currency, reference, status, description, metadata, created_at
        FROM transactions WHERE reference = $1`, reference)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	return tx, nil
}

// TransactionsByUser lists the user's most recent transactions.
func (s *PostgresStore) TransactionsByUser(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT id, user_id, wallet_id, type, amount::text, currency, reference, status, description, metadata, created_at
        FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// CompletedTransferTotalSince sums completed outbound transfers for the user.
func (s *PostgresStore) CompletedTransferTotalSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	var total string
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text
        FROM transactions
        WHERE user_id = $1 AND type = $2 AND status = $3
          AND COALESCE(metadata->>'direction', 'debit') <> 'credit'
          AND created_at >= $4`,
		userID, string(TxTransfer), string(StatusCompleted), since.UTC()).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		tx        Transaction
		txType    string
		amount    string
		status    string
		metadata  []byte
		createdAt time.Time
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.WalletID, &txType, &amount, &tx.Currency,
		&tx.Reference, &status, &tx.Description, &metadata, &createdAt); err != nil {
		return Transaction{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("parse metadata: %w", err)
		}
	}
	tx.Type = TxType(txType)
	tx.Amount = parsed
	tx.Status = TxStatus(status)
	tx.CreatedAt = createdAt.UTC()
	return tx, nil
}
