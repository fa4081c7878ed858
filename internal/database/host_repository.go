package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/jukevote/internal/domain"
)

const hostColumns = `id, username, password_hash, display_name, share_code, created_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// HostRepo implements domain.HostRepository backed by PostgreSQL.
type HostRepo struct {
	pool *pgxpool.Pool
}

func NewHostRepo(pool *pgxpool.Pool) *HostRepo {
	return &HostRepo{pool: pool}
}

func (r *HostRepo) Create(ctx context.Context, username, passwordHash, displayName string) (*domain.Host, error) {
	code, err := newShareCode()
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO hosts (username, password_hash, display_name, share_code)
		VALUES ($1, $2, $3, $4)
		RETURNING `+hostColumns,
		username, passwordHash, displayName, code)

	host, err := scanHost(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create host: %w", err)
	}
	return host, nil
}

func (r *HostRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Host, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = $1`, id)
	return scanHostNotFound(row)
}

func (r *HostRepo) GetByUsername(ctx context.Context, username string) (*domain.Host, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM hosts WHERE username = $1`, username)
	return scanHostNotFound(row)
}

func (r *HostRepo) GetByShareCode(ctx context.Context, code string) (*domain.Host, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM hosts WHERE share_code = $1`, code)
	return scanHostNotFound(row)
}

func scanHost(row pgx.Row) (*domain.Host, error) {
	var h domain.Host
	err := row.Scan(&h.ID, &h.Username, &h.PasswordHash, &h.DisplayName, &h.ShareCode, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanHostNotFound(row pgx.Row) (*domain.Host, error) {
	host, err := scanHost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrHostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load host: %w", err)
	}
	return host, nil
}

// newShareCode generates the audience-facing room code.
func newShareCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
