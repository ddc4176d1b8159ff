package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	"github.com/oksasatya/healthcare-storefront/internal/domain/repository"
)

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, password_salt, password_scheme, status,
		first_name, last_name, calendar_refresh_token, created_at, updated_at`

type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.Status == "" {
		u.Status = entity.StatusActive
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, password_salt, password_scheme, status, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, u.Email, u.PasswordHash, nullText(u.PasswordSalt), u.PasswordScheme, string(u.Status), u.FirstName, u.LastName)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND status <> 'deleted'
	`, id)
	return scanUser(row)
}

// FindByNormalizedEmail loads the credential projection for a login.
func (r *UserRepository) FindByNormalizedEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND status <> 'deleted'
	`, email)
	return scanUser(row)
}

// UpdateCredential replaces hash, salt and scheme in one statement. With
// ExpectedHash set, zero affected rows on an existing account means the
// stored hash moved on and repository.ErrCredentialChanged is returned.
func (r *UserRepository) UpdateCredential(ctx context.Context, userID string, c entity.CredentialUpdate) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if c.ExpectedHash == "" {
		tag, err = r.db.Exec(ctx, `
			UPDATE users
			SET password_hash = $1, password_salt = $2, password_scheme = $3, updated_at = now()
			WHERE id = $4 AND status <> 'deleted'
		`, c.Hash, nullText(c.Salt), c.Scheme, userID)
	} else {
		tag, err = r.db.Exec(ctx, `
			UPDATE users
			SET password_hash = $1, password_salt = $2, password_scheme = $3, updated_at = now()
			WHERE id = $4 AND status <> 'deleted' AND password_hash = $5
		`, c.Hash, nullText(c.Salt), c.Scheme, userID, c.ExpectedHash)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if c.ExpectedHash != "" {
			return repository.ErrCredentialChanged
		}
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u *entity.User) error {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, updated_at = now()
		WHERE id = $3 AND status <> 'deleted'
		RETURNING updated_at
	`, u.FirstName, u.LastName, u.ID)

	if err := row.Scan(&u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	return nil
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	var (
		salt     pgtype.Text
		scheme   pgtype.Text
		status   string
		calendar pgtype.Text
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &salt, &scheme, &status,
		&u.FirstName, &u.LastName, &calendar, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.PasswordSalt = salt.String
	u.PasswordScheme = scheme.String
	u.Status = entity.AccountStatus(status)
	u.CalendarRefreshToken = calendar.String
	return u, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

var _ repository.UserRepository = (*UserRepository)(nil)
