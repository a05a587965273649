// Package store persists credentials and accounts in SQL through bun.
// SQLite (mattn/go-sqlite3) and PostgreSQL (lib/pq) are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/educhainverify/credential-service/interfaces"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store implements interfaces.CredentialStore and interfaces.AccountDirectory.
type Store struct {
	db  *bun.DB
	log *slog.Logger
}

// Open connects to the database. driver is "sqlite3" or "postgres".
func Open(driver, dsn string, log *slog.Logger) (*Store, error) {
	var db *bun.DB

	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite":
		sqlDB, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// SQLite allows one writer; in-memory databases also live per connection.
		sqlDB.SetMaxOpenConns(1)
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	case DriverPostgres, "postgresql":
		sqlDB, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db = bun.NewDB(sqlDB, pgdialect.New())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return &Store{db: db, log: log}, nil
}

// Migrate creates tables and indexes that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, model := range []interface{}{(*credentialRecord)(nil), (*accountRecord)(nil)} {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []struct{ name, column string }{
		{"credentials_issuer_idx", "issuer_address"},
		{"credentials_wallet_idx", "wallet_address"},
		{"credentials_email_idx", "student_email"},
	}
	for _, idx := range indexes {
		_, err := s.db.NewCreateIndex().
			Model((*credentialRecord)(nil)).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	s.log.Debug("Database schema up to date")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertCredential(ctx context.Context, c *interfaces.Credential) error {
	_, err := s.db.NewInsert().Model(newCredentialRecord(c)).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", interfaces.ErrCredentialExists, c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

func (s *Store) GetCredential(ctx context.Context, id interfaces.CredentialID) (*interfaces.Credential, error) {
	rec := new(credentialRecord)
	err := s.db.NewSelect().Model(rec).Where("id = ?", int64(id)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdateCredential overwrites the mutable state of an existing credential.
func (s *Store) UpdateCredential(ctx context.Context, c *interfaces.Credential) error {
	rec := newCredentialRecord(c)

	res, err := s.db.NewUpdate().
		Model(rec).
		Column("status", "revoked_reason", "revoked_at", "anchor_type", "anchor_proof", "revocation_proof", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	return expectOneRow(res, interfaces.ErrCredentialNotFound)
}

// TransitionCredential changes the status only while the row still holds from, so
// concurrent writers sharing the database agree on a single winner.
func (s *Store) TransitionCredential(ctx context.Context, id interfaces.CredentialID, from, to interfaces.CredentialStatus) error {
	res, err := s.db.NewUpdate().
		Model((*credentialRecord)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", int64(id)).
		Where("status = ?", string(from)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to transition credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := s.GetCredential(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s is not %s", interfaces.ErrStatusConflict, id, from)
}

func (s *Store) DeleteCredential(ctx context.Context, id interfaces.CredentialID) error {
	res, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("id = ?", int64(id)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return expectOneRow(res, interfaces.ErrCredentialNotFound)
}

// SearchCredentials matches the query against the credential id and, case-insensitively,
// the student email. An empty query lists all of the issuer's credentials.
func (s *Store) SearchCredentials(ctx context.Context, issuer interfaces.WalletAddress, query string) ([]*interfaces.Credential, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListCredentialsByIssuer(ctx, issuer)
	}

	return s.listCredentials(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("c.issuer_address = ?", issuer.Hex()).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				q = q.WhereOr("lower(c.student_email) = ?", strings.ToLower(query))
				if id, err := strconv.ParseUint(query, 10, 63); err == nil {
					q = q.WhereOr("c.id = ?", int64(id))
				}
				return q
			})
	})
}

func (s *Store) ListCredentialsByIssuer(ctx context.Context, issuer interfaces.WalletAddress) ([]*interfaces.Credential, error) {
	return s.listCredentials(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("c.issuer_address = ?", issuer.Hex())
	})
}

func (s *Store) ListCredentialsByStudent(ctx context.Context, wallet interfaces.WalletAddress) ([]*interfaces.Credential, error) {
	return s.listCredentials(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("c.wallet_address = ?", wallet.Hex())
	})
}

func (s *Store) listCredentials(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]*interfaces.Credential, error) {
	var records []credentialRecord
	q := s.db.NewSelect().
		Model(&records).
		Where("c.status != ?", string(interfaces.StatusPending)).
		OrderExpr("c.issued_at DESC, c.id DESC")

	if err := filter(q).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	out := make([]*interfaces.Credential, 0, len(records))
	for i := range records {
		out = append(out, records[i].toDomain())
	}
	return out, nil
}

// CountCredentials returns the issuer's credential totals by status.
func (s *Store) CountCredentials(ctx context.Context, issuer interfaces.WalletAddress) (interfaces.CredentialStats, error) {
	var rows []struct {
		Status string `bun:"status"`
		Count  int    `bun:"count"`
	}

	err := s.db.NewSelect().
		Model((*credentialRecord)(nil)).
		Column("status").
		ColumnExpr("count(*) AS count").
		Where("issuer_address = ?", issuer.Hex()).
		Where("status != ?", string(interfaces.StatusPending)).
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return interfaces.CredentialStats{}, fmt.Errorf("failed to count credentials: %w", err)
	}

	var stats interfaces.CredentialStats
	for _, row := range rows {
		switch interfaces.CredentialStatus(row.Status) {
		case interfaces.StatusActive, interfaces.StatusRevoking:
			stats.Active += row.Count
		case interfaces.StatusRevoked:
			stats.Revoked = row.Count
		}
		stats.Total += row.Count
	}
	return stats, nil
}

func (s *Store) RegisterAccount(ctx context.Context, a *interfaces.Account) error {
	_, err := s.db.NewInsert().Model(newAccountRecord(a)).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountExists, a.Address.Hex())
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, addr interfaces.WalletAddress) (*interfaces.Account, error) {
	rec := new(accountRecord)
	err := s.db.NewSelect().Model(rec).Where("address = ?", addr.Hex()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return rec.toDomain(), nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}
