package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/timetable-api/internal/models"
)

// RoomRepository provides persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns rooms, optionally restricted to a course or a minimum
// capacity. Rooms without a course restriction match every course filter.
func (r *RoomRepository) List(ctx context.Context, courseID string, minCapacity int) ([]models.Room, error) {
	base := "SELECT id, name, capacity, course_id, created_at, updated_at FROM rooms WHERE 1=1"
	var conditions []string
	var args []interface{}

	if courseID != "" {
		conditions = append(conditions, fmt.Sprintf("(course_id IS NULL OR course_id = $%d)", len(args)+1))
		args = append(args, courseID)
	}
	if minCapacity > 0 {
		conditions = append(conditions, fmt.Sprintf("capacity >= $%d", len(args)+1))
		args = append(args, minCapacity)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY name ASC"

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, base, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID loads a room by id.
func (r *RoomRepository) FindByID(ctx context.Context, id string) (*models.Room, error) {
	const query = `SELECT id, name, capacity, course_id, created_at, updated_at FROM rooms WHERE id = $1`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// FindByIDs loads the given rooms, preserving no particular order.
func (r *RoomRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT id, name, capacity, course_id, created_at, updated_at FROM rooms WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build rooms query: %w", err)
	}
	query = r.db.Rebind(query)

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("find rooms by ids: %w", err)
	}
	return rooms, nil
}

// Create stores a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, name, capacity, course_id, created_at, updated_at) VALUES (:id, :name, :capacity, :course_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies a room record.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET name = :name, capacity = :capacity, course_id = :course_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// Delete removes a room record.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM rooms WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}
