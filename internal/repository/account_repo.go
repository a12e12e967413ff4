package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sketchlab/internal/domain"
)

// Errores de persistencia que el servicio traduce a errores de negocio.
// Los duplicados provienen de los unique index de Postgres: la carrera
// find-or-create se resuelve en la base, no con locks de aplicacion.
var (
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrDuplicateLink  = errors.New("duplicate provider link")
)

// AccountRepository define el contrato de persistencia para cuentas.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByProvider(ctx context.Context, provider, providerID string) (domain.Account, error)
	AddProviderLink(ctx context.Context, accountID string, link domain.ProviderLink) error
	RefreshProviderToken(ctx context.Context, accountID, provider, accessToken string) error
	UpdateProfile(ctx context.Context, id string, fullName, email, avatarURL string, verified bool) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetResetCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
}

// PgAccountRepository implementa AccountRepository usando pgxpool.
type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

const accountColumns = `
	id, email, full_name, phone, profile_picture, password_hash,
	is_verified, reset_code_hash, reset_expires_at, last_login_at,
	created_at, updated_at
`

func (r *PgAccountRepository) Create(ctx context.Context, account domain.Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertAccount = `
		INSERT INTO accounts (id, email, full_name, phone, profile_picture, password_hash,
			is_verified, created_at, updated_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $8)
	`
	if _, err := tx.Exec(ctx, insertAccount,
		account.ID,
		account.Email,
		account.FullName,
		account.Phone,
		account.ProfilePicture,
		account.PasswordHash,
		account.IsVerified,
		account.CreatedAt,
	); err != nil {
		return mapUniqueViolation(err)
	}

	const insertLink = `
		INSERT INTO account_providers (account_id, provider, provider_id, access_token)
		VALUES ($1, $2, $3, $4)
	`
	for _, link := range account.Providers {
		if _, err := tx.Exec(ctx, insertLink, account.ID, link.Provider, link.ProviderID, link.AccessToken); err != nil {
			return mapUniqueViolation(err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgAccountRepository) GetByID(ctx context.Context, id string) (domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.fetchOne(ctx, query, id)
}

func (r *PgAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = lower($1)`
	return r.fetchOne(ctx, query, email)
}

func (r *PgAccountRepository) GetByProvider(ctx context.Context, provider, providerID string) (domain.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN account_providers p ON p.account_id = a.id
		WHERE p.provider = $1 AND p.provider_id = $2
	`
	return r.fetchOne(ctx, query, provider, providerID)
}

func (r *PgAccountRepository) AddProviderLink(ctx context.Context, accountID string, link domain.ProviderLink) error {
	const query = `
		INSERT INTO account_providers (account_id, provider, provider_id, access_token)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, accountID, link.Provider, link.ProviderID, link.AccessToken)
	return mapUniqueViolation(err)
}

func (r *PgAccountRepository) RefreshProviderToken(ctx context.Context, accountID, provider, accessToken string) error {
	const query = `
		UPDATE account_providers SET access_token = $3
		WHERE account_id = $1 AND provider = $2
	`
	tag, err := r.pool.Exec(ctx, query, accountID, provider, accessToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAccountRepository) UpdateProfile(ctx context.Context, id string, fullName, email, avatarURL string, verified bool) error {
	const query = `
		UPDATE accounts
		SET full_name = $2, email = lower($3), profile_picture = $4, is_verified = $5, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, fullName, email, avatarURL, verified)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAccountRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE accounts SET last_login_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgAccountRepository) SetResetCode(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts SET reset_code_hash = $2, reset_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, codeHash, expiresAt)
	return err
}

// ResetPassword reemplaza el hash y limpia digest y expiry en la misma
// sentencia: nunca queda uno sin el otro.
func (r *PgAccountRepository) ResetPassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE accounts
		SET password_hash = $2, reset_code_hash = '', reset_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAccountRepository) fetchOne(ctx context.Context, query string, args ...any) (domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.FullName,
		&a.Phone,
		&a.ProfilePicture,
		&a.PasswordHash,
		&a.IsVerified,
		&a.ResetCodeHash,
		&a.ResetExpiresAt,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	if err := r.loadLinks(ctx, &a); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (r *PgAccountRepository) loadLinks(ctx context.Context, a *domain.Account) error {
	const query = `
		SELECT provider, provider_id, access_token
		FROM account_providers
		WHERE account_id = $1
		ORDER BY provider
	`
	rows, err := r.pool.Query(ctx, query, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.ProviderLink
		if err := rows.Scan(&l.Provider, &l.ProviderID, &l.AccessToken); err != nil {
			return err
		}
		a.Providers = append(a.Providers, l)
	}
	return rows.Err()
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "account_providers_account_id_provider_key" ||
			pgErr.ConstraintName == "account_providers_provider_provider_id_key" {
			return ErrDuplicateLink
		}
		return ErrDuplicateEmail
	}
	return err
}
