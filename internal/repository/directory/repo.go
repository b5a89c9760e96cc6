package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
)

var ErrGroupNotFound = errors.New("group not found")

// Repository reads users and groups owned by the account service.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new directory repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// UserExists reports whether a user with the given id exists.
func (r *Repository) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}

	return exists, nil
}

// GroupExists reports whether a group with the given id exists.
func (r *Repository) GroupExists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}

	return exists, nil
}

// GroupMembers returns the members of a group, or ErrGroupNotFound.
func (r *Repository) GroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	exists, err := r.GroupExists(ctx, groupID)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, ErrGroupNotFound
	}

	query := `
		SELECT user_id
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at;
    `

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		members = append(members, id)
	}

	return members, rows.Err()
}

// IsGroupMember reports whether userID belongs to groupID.
func (r *Repository) IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2);`

	var member bool
	if err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check group membership: %w", err)
	}

	return member, nil
}
