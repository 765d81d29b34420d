package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/commitcast/internal/apperror"
	"github.com/sakif/commitcast/internal/model"
	"github.com/sakif/commitcast/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or updates a user based on their GitHub id.
//
// We use INSERT ... ON CONFLICT DO UPDATE rather than INSERT OR REPLACE:
// REPLACE deletes and re-inserts the row, which would wipe the LinkedIn
// columns on every login. ON CONFLICT lets us refresh exactly the columns a
// fresh GitHub login is allowed to touch (login name, GitHub token) while
// leaving an existing LinkedIn link intact.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (github_id, github_login, github_token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(github_id) DO UPDATE SET
			github_login = excluded.github_login,
			github_token = excluded.github_token,
			updated_at   = excluded.updated_at`,
		user.GitHubID,
		user.GitHubLogin,
		user.GitHubToken,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user (githubID=%d): %w", user.GitHubID, err)
	}

	// Read the row back to pick up the canonical timestamps and any LinkedIn
	// link established in an earlier session.
	stored, err := db.GetByGitHubID(ctx, user.GitHubID)
	if err != nil {
		return fmt.Errorf("sqlite: reading back user %d: %w", user.GitHubID, err)
	}
	*user = *stored

	return nil
}

// GetByGitHubID retrieves a user by their GitHub id.
// Returns apperror.ErrNotFound if the id has never completed GitHub login.
func (db *DB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT github_id, github_login, github_token, linkedin_id, linkedin_token, created_at, updated_at
		 FROM users WHERE github_id = ?`,
		githubID,
	).Scan(
		&u.GitHubID,
		&u.GitHubLogin,
		&u.GitHubToken,
		&u.LinkedInID,
		&u.LinkedInToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%d", githubID))
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", githubID, err)
	}

	return &u, nil
}

// SetLinkedIn stores the LinkedIn credential pair for a user.
//
// Both columns are written in one UPDATE statement, so no reader can observe
// a half-linked row and a concurrent disconnect cannot interleave between
// the two fields — SQLite applies the statement atomically.
func (db *DB) SetLinkedIn(ctx context.Context, githubID int64, token, memberID string) (*model.User, error) {
	return db.updateLinkedIn(ctx, githubID, token, memberID)
}

// ClearLinkedIn nulls the LinkedIn credential pair. Idempotent — clearing a
// user who was never linked is a successful no-op.
func (db *DB) ClearLinkedIn(ctx context.Context, githubID int64) (*model.User, error) {
	return db.updateLinkedIn(ctx, githubID, "", "")
}

func (db *DB) updateLinkedIn(ctx context.Context, githubID int64, token, memberID string) (*model.User, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET linkedin_token = ?, linkedin_id = ?, updated_at = ?
		 WHERE github_id = ?`,
		token,
		memberID,
		time.Now(),
		githubID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating linkedin credential for user %d: %w", githubID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: rows affected for user %d: %w", githubID, err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("user", fmt.Sprintf("%d", githubID))
	}

	return db.GetByGitHubID(ctx, githubID)
}
