package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store using the provided database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, matricule, full_name, email, hashed_password, role, clearance_level, is_active, last_login, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_users (id, matricule, full_name, email, hashed_password, role, clearance_level, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, user.ID, user.Matricule, user.FullName, user.Email, user.HashedPassword, user.Role, user.ClearanceLevel, user.IsActive, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM auth_users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByMatricule(ctx context.Context, matricule string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM auth_users
		WHERE matricule = $1
	`, matricule)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user User) (User, error) {
	existing, err := s.GetUser(ctx, user.ID)
	if err != nil {
		return User{}, err
	}

	user.Matricule = existing.Matricule
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE auth_users
		SET full_name = $2, email = $3, hashed_password = $4, role = $5, clearance_level = $6, is_active = $7, updated_at = $8
		WHERE id = $1
	`, user.ID, user.FullName, user.Email, user.HashedPassword, user.Role, user.ClearanceLevel, user.IsActive, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicate
		}
		return User{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_users WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	where, args := buildUserFilter(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM auth_users` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM auth_users%s ORDER BY matricule LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE auth_users SET last_login = $2 WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func buildUserFilter(filter ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Role != "" {
		add("role = $%d", filter.Role)
	}
	if filter.Clearance != "" {
		add("clearance_level = $%d", filter.Clearance)
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}
	if filter.Search != "" {
		add("(matricule ILIKE $%[1]d OR full_name ILIKE $%[1]d OR email ILIKE $%[1]d)", "%"+filter.Search+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		user      User
		lastLogin sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Matricule, &user.FullName, &user.Email, &user.HashedPassword,
		&user.Role, &user.ClearanceLevel, &user.IsActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time.UTC()
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
