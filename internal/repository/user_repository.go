package repository

import (
	"database/sql"
	"fmt"

	"github.com/shakirjon803-cell/obmen/internal/database"
	"github.com/shakirjon803-cell/obmen/internal/models"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = fmt.Errorf("not found")

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	query := `
		SELECT id, nickname, name, avatar_url, created_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.QueryRow(query, id).Scan(
		&user.ID,
		&user.Nickname,
		&user.Name,
		&user.AvatarURL,
		&user.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Create inserts a user. Used by seeding and tests; registration itself lives
// in the auth service.
func (r *UserRepository) Create(user *models.User) error {
	query := `
		INSERT INTO users (nickname, name, avatar_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		query,
		user.Nickname,
		user.Name,
		user.AvatarURL,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}
