package postgres

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Table and column names follow the web application's schema.
const (
	sqlSelectGroupAvailability = `
		SELECT a."id", a."userId", a."startDateTime", a."endDateTime", COALESCE(a."notes", '')
		FROM "Availability" a
		WHERE a."groupId" = $1
		  AND ($2::timestamp IS NULL OR a."endDateTime" >= $2)
		  AND ($3::timestamp IS NULL OR a."startDateTime" <= $3)
		ORDER BY a."startDateTime", a."id"
	`
	sqlSelectGroupMembers = `
		SELECT u."id", COALESCE(u."name", ''), u."email", COALESCE(u."image", '')
		FROM "Membership" m
		JOIN "User" u ON u."id" = m."userId"
		WHERE m."groupId" = $1
		ORDER BY u."id"
	`
)

// AvailabilityRepo reads a group's members and their availability.
type AvailabilityRepo struct {
	pool *pgxpool.Pool
}

func NewAvailabilityRepo(pool *pgxpool.Pool) *AvailabilityRepo {
	return &AvailabilityRepo{pool: pool}
}

// ListGroupAvailability returns the group's availability rows touching
// [from, to]. Zero bounds are open. Timestamps are stored as UTC.
func (r *AvailabilityRepo) ListGroupAvailability(ctx context.Context, groupID string, from, to time.Time) ([]*models.Block, error) {
	rows, err := r.pool.Query(ctx, sqlSelectGroupAvailability, groupID, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer rows.Close()

	var blocks []*models.Block
	for rows.Next() {
		b := &models.Block{Source: "postgres:" + groupID}
		if err := rows.Scan(&b.ID, &b.MemberID, &b.Start, &b.End, &b.Title); err != nil {
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		b.Start = b.Start.UTC()
		b.End = b.End.UTC()
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// ListGroupMembers returns the display data of every member of the group.
func (r *AvailabilityRepo) ListGroupMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	rows, err := r.pool.Query(ctx, sqlSelectGroupMembers, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Image); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
