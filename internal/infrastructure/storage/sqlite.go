package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/khedge/kimchi_hedge/internal/domain"
)

// SQLiteStore persists finished hedge positions. Decimal amounts are stored
// as TEXT so no precision is lost round-tripping.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			spot_amount TEXT NOT NULL,
			spot_entry_price TEXT NOT NULL,
			spot_fee TEXT NOT NULL,
			futures_amount TEXT NOT NULL,
			futures_entry_price TEXT NOT NULL,
			futures_fee TEXT NOT NULL,
			entry_premium TEXT NOT NULL,
			entry_time DATETIME NOT NULL,
			spot_exit_price TEXT NOT NULL,
			futures_exit_price TEXT NOT NULL,
			spot_exit_fee TEXT NOT NULL,
			futures_exit_fee TEXT NOT NULL,
			close_premium TEXT NOT NULL,
			close_reason TEXT NOT NULL,
			close_time DATETIME NOT NULL,
			realized_pnl TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_close_time ON positions(close_time);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// SavePosition upserts a finished position by ID.
func (s *SQLiteStore) SavePosition(ctx context.Context, p *domain.Position) error {
	query := `INSERT OR REPLACE INTO positions (
			id, status,
			spot_amount, spot_entry_price, spot_fee,
			futures_amount, futures_entry_price, futures_fee,
			entry_premium, entry_time,
			spot_exit_price, futures_exit_price, spot_exit_fee, futures_exit_fee,
			close_premium, close_reason, close_time, realized_pnl)
		  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, string(p.Status),
		p.SpotAmount.String(), p.SpotEntryPrice.String(), p.SpotFee.String(),
		p.FuturesAmount.String(), p.FuturesEntryPrice.String(), p.FuturesFee.String(),
		p.EntryPremium.String(), p.EntryTime.UTC(),
		p.SpotExitPrice.String(), p.FuturesExitPrice.String(), p.SpotExitFee.String(), p.FuturesExitFee.String(),
		p.ClosePremium.String(), string(p.CloseReason), p.CloseTime.UTC(), p.RealizedPnL.String())
	return err
}

// ListPositions returns finished positions, newest close first.
func (s *SQLiteStore) ListPositions(ctx context.Context, limit int) ([]*domain.Position, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, status,
			spot_amount, spot_entry_price, spot_fee,
			futures_amount, futures_entry_price, futures_fee,
			entry_premium, entry_time,
			spot_exit_price, futures_exit_price, spot_exit_fee, futures_exit_fee,
			close_premium, close_reason, close_time, realized_pnl
		  FROM positions ORDER BY close_time DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanPosition(rows *sql.Rows) (*domain.Position, error) {
	var (
		p          domain.Position
		status     string
		reason     string
		entryTime  time.Time
		closeTime  time.Time
		decimalCol = func(dst *decimal.Decimal) *decimalScanner { return &decimalScanner{dst: dst} }
	)

	err := rows.Scan(
		&p.ID, &status,
		decimalCol(&p.SpotAmount), decimalCol(&p.SpotEntryPrice), decimalCol(&p.SpotFee),
		decimalCol(&p.FuturesAmount), decimalCol(&p.FuturesEntryPrice), decimalCol(&p.FuturesFee),
		decimalCol(&p.EntryPremium), &entryTime,
		decimalCol(&p.SpotExitPrice), decimalCol(&p.FuturesExitPrice), decimalCol(&p.SpotExitFee), decimalCol(&p.FuturesExitFee),
		decimalCol(&p.ClosePremium), &reason, &closeTime, decimalCol(&p.RealizedPnL))
	if err != nil {
		return nil, err
	}

	p.Status = domain.PositionStatus(status)
	p.CloseReason = domain.CloseReason(reason)
	p.EntryTime = entryTime
	p.CloseTime = closeTime
	return &p, nil
}

// decimalScanner reads a TEXT column into a decimal.Decimal.
type decimalScanner struct {
	dst *decimal.Decimal
}

func (d *decimalScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d.dst = decimal.Zero
		return nil
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		*d.dst = parsed
		return nil
	case []byte:
		parsed, err := decimal.NewFromString(string(v))
		if err != nil {
			return err
		}
		*d.dst = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into decimal", src)
	}
}
