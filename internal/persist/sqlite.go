package persist

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite implements Store on a single SQLite database file, mirroring
// the four logical tables: accounts, holdings, offers, transactions.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath and runs
// pending migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &SQLite{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("set up migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Apply implements Store. Every mutation in the changeset is written
// inside one SQL transaction.
func (s *SQLite) Apply(ctx context.Context, cs *Changeset) error {
	if cs.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := applyChangeset(ctx, tx, cs); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("apply err: %v, rollback err: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func applyChangeset(ctx context.Context, tx *sql.Tx, cs *Changeset) error {
	for _, a := range cs.Accounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (id, cash, frozen_cash, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET cash = excluded.cash, frozen_cash = excluded.frozen_cash`,
			a.ID, a.Cash, a.FrozenCash, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert account %s: %w", a.ID, err)
		}
	}

	for _, h := range cs.Holdings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (account_id, ticker, amount, frozen_amount, avg_price)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account_id, ticker) DO UPDATE SET
				amount = excluded.amount,
				frozen_amount = excluded.frozen_amount,
				avg_price = excluded.avg_price`,
			h.AccountID, h.Ticker, h.Amount, h.FrozenAmount, h.AvgPrice)
		if err != nil {
			return fmt.Errorf("upsert holding %s/%s: %w", h.AccountID, h.Ticker, err)
		}
	}

	for _, k := range cs.HoldingDeletes {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM holdings WHERE account_id = ? AND ticker = ?`,
			k.AccountID, k.Ticker)
		if err != nil {
			return fmt.Errorf("delete holding %s/%s: %w", k.AccountID, k.Ticker, err)
		}
	}

	for _, o := range cs.Offers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO offers (id, account_id, ticker, side, price, quantity, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				price = excluded.price,
				quantity = excluded.quantity,
				comment = excluded.comment`,
			o.ID, o.AccountID, o.Ticker, o.Side, o.Price, o.Quantity, o.Comment, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert offer %s: %w", o.ID, err)
		}
	}

	for _, id := range cs.OfferDeletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete offer %s: %w", id, err)
		}
	}

	for _, t := range cs.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, account_id, ticker, side, kind, price, quantity, counterparty_id, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.AccountID, t.Ticker, t.Side, t.Kind, t.Price, t.Quantity, t.CounterpartyID, t.ExecutedAt)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	return nil
}

// Load implements Store.
func (s *SQLite) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cash, frozen_cash, created_at FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	for rows.Next() {
		var a AccountRow
		if err := rows.Scan(&a.ID, &a.Cash, &a.FrozenCash, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT account_id, ticker, amount, frozen_amount, avg_price FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	for rows.Next() {
		var h HoldingRow
		if err := rows.Scan(&h.AccountID, &h.Ticker, &h.Amount, &h.FrozenAmount, &h.AvgPrice); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Holdings = append(snap.Holdings, h)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, account_id, ticker, side, price, quantity, comment, created_at FROM offers`)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	for rows.Next() {
		var o OfferRow
		if err := rows.Scan(&o.ID, &o.AccountID, &o.Ticker, &o.Side, &o.Price, &o.Quantity, &o.Comment, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Offers = append(snap.Offers, o)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, account_id, ticker, side, kind, price, quantity, counterparty_id, executed_at
		FROM transactions ORDER BY executed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	for rows.Next() {
		var t TransactionRow
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Ticker, &t.Side, &t.Kind, &t.Price, &t.Quantity, &t.CounterpartyID, &t.ExecutedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snap.Transactions = append(snap.Transactions, t)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
