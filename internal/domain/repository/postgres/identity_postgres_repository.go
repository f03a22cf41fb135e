package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/realmforge/token-service/internal/domain/errors"
	"github.com/realmforge/token-service/internal/domain/models"
)

// IdentityStorePostgres is the read-only identity projection backed by the
// users / roles / user_roles tables owned by the identity service.
type IdentityStorePostgres struct {
	pool *pgxpool.Pool
}

// NewIdentityStorePostgres creates a new IdentityStorePostgres.
func NewIdentityStorePostgres(pool *pgxpool.Pool) *IdentityStorePostgres {
	return &IdentityStorePostgres{pool: pool}
}

// FindRoles returns the user's current role names.
func (r *IdentityStorePostgres) FindRoles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("find roles for user: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role name: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// FindByEmail looks a user up by email.
func (r *IdentityStorePostgres) FindByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	return r.findBy(ctx, "email", email)
}

// FindByPhone looks a user up by phone number.
func (r *IdentityStorePostgres) FindByPhone(ctx context.Context, phone string) (*models.UserRecord, error) {
	return r.findBy(ctx, "phone", phone)
}

func (r *IdentityStorePostgres) findBy(ctx context.Context, column, value string) (*models.UserRecord, error) {
	query := fmt.Sprintf(`SELECT id, email, phone, password_hash FROM users WHERE %s = $1`, column)
	user := &models.UserRecord{}
	err := r.pool.QueryRow(ctx, query, value).Scan(&user.ID, &user.Email, &user.Phone, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by %s: %w", column, err)
	}
	return user, nil
}
