package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CLewisMessina/wolfalert/internal/domain"
)

// ProfileRepository persists user profiles.
type ProfileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a repository over the given connection.
func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, name, industry, department, role_level, session_id, active, created_at, updated_at`

// Create inserts a new profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	profile.ID = uuid.New().String()
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = profile.CreatedAt

	query := `
		INSERT INTO profiles (id, name, industry, department, role_level, session_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.Name,
		profile.Industry,
		profile.Department,
		profile.RoleLevel,
		nullString(profile.SessionID),
		profile.Active,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

// GetByID returns one profile.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	return profile, nil
}

// List returns all profiles ordered by creation time.
func (r *ProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	return r.list(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at`)
}

// ListActive returns active profiles only.
func (r *ProfileRepository) ListActive(ctx context.Context) ([]*domain.Profile, error) {
	return r.list(ctx, `SELECT `+profileColumns+` FROM profiles WHERE active = TRUE ORDER BY created_at`)
}

func (r *ProfileRepository) list(ctx context.Context, query string) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		profile, scanErr := scanProfile(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan profile row: %w", scanErr)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile rows: %w", err)
	}
	return profiles, nil
}

// Delete removes a profile. Cached insights are untouched: they are keyed by
// fingerprint and may still serve other profiles on the same axes.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var (
		profile   domain.Profile
		sessionID sql.NullString
	)

	err := row.Scan(
		&profile.ID,
		&profile.Name,
		&profile.Industry,
		&profile.Department,
		&profile.RoleLevel,
		&sessionID,
		&profile.Active,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	profile.SessionID = sessionID.String
	return &profile, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
