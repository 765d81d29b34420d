package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/sakif/commitcast/internal/repository"
)

// compile-time check that *DB implements repository.PostLedger
var _ repository.PostLedger = (*DB)(nil)

// MarkPosted records a commit as posted. INSERT OR IGNORE makes it
// idempotent: marking the same commit twice is not an error, and the
// composite primary key guarantees at most one row per (user, commit).
func (db *DB) MarkPosted(ctx context.Context, githubID int64, commitID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO posted_commits (github_id, commit_id) VALUES (?, ?)`,
		githubID, commitID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking commit %s posted for user %d: %w", commitID, githubID, err)
	}
	return nil
}

// MarkAllPosted records a batch of commits as posted inside one transaction.
// A digest is a single outbound post covering all of them, so the ledger
// must move all-or-nothing too — a crash mid-batch must not leave half a
// digest remembered.
func (db *DB) MarkAllPosted(ctx context.Context, githubID int64, commitIDs []string) error {
	if len(commitIDs) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning mark-posted transaction: %w", err)
	}
	defer tx.Rollback() // no-op after a successful Commit

	for _, commitID := range commitIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO posted_commits (github_id, commit_id) VALUES (?, ?)`,
			githubID, commitID,
		); err != nil {
			return fmt.Errorf("sqlite: marking commit %s posted for user %d: %w", commitID, githubID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing mark-posted transaction: %w", err)
	}
	return nil
}

// IsPosted reports whether a commit has been posted for a user.
func (db *DB) IsPosted(ctx context.Context, githubID int64, commitID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posted_commits WHERE github_id = ? AND commit_id = ?`,
		githubID, commitID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking posted status of commit %s for user %d: %w", commitID, githubID, err)
	}
	return n > 0, nil
}

// PostedSet returns the subset of commitIDs that are already posted, so a
// page of fetched commits can be annotated with one query instead of one
// per commit.
func (db *DB) PostedSet(ctx context.Context, githubID int64, commitIDs []string) (map[string]bool, error) {
	posted := make(map[string]bool, len(commitIDs))
	if len(commitIDs) == 0 {
		return posted, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(commitIDs)), ",")
	args := make([]any, 0, len(commitIDs)+1)
	args = append(args, githubID)
	for _, id := range commitIDs {
		args = append(args, id)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT commit_id FROM posted_commits WHERE github_id = ? AND commit_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading posted set for user %d: %w", githubID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning posted commit id: %w", err)
		}
		posted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posted set: %w", err)
	}

	return posted, nil
}
