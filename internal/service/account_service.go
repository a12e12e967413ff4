package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"sketchlab/internal/domain"
	"sketchlab/internal/email"
	"sketchlab/internal/repository"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateEmail       = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired reset code")
	ErrIdentityConflict     = errors.New("provider identity conflict")
	ErrOAuthInvalid         = errors.New("oauth assertion invalid")
	ErrPasswordTooShort     = errors.New("password too short")
)

const (
	resetCodeTTL      = 10 * time.Minute
	minPasswordLength = 6
)

// AccountService coordina reglas de negocio para cuentas: alta y login
// local, reconciliacion OAuth y el protocolo de reset de password.
type AccountService struct {
	logger      *zap.Logger
	accounts    repository.AccountRepository
	emailSender email.Sender
}

func NewAccountService(logger *zap.Logger, accounts repository.AccountRepository, emailSender email.Sender) *AccountService {
	return &AccountService{
		logger:      logger,
		accounts:    accounts,
		emailSender: emailSender,
	}
}

type RegisterInput struct {
	FullName string
	Email    string
	Phone    string
	Password string
}

// Register crea una cuenta local. El duplicado se detecta en el unique
// index de email, no con un lookup previo.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.Account{}, ErrInvalidEmail
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return domain.Account{}, err
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		FullName:     strings.TrimSpace(input.FullName),
		Phone:        strings.TrimSpace(input.Phone),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return domain.Account{}, ErrDuplicateEmail
		}
		return domain.Account{}, err
	}
	return account, nil
}

// Authenticate valida credenciales locales. Cuenta inexistente, cuenta
// solo-OAuth y password incorrecto responden identico.
func (s *AccountService) Authenticate(ctx context.Context, emailAddr, password string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidCredentials
		}
		return domain.Account{}, err
	}
	if account.PasswordHash == "" {
		return domain.Account{}, ErrInvalidCredentials
	}
	if !CheckPassword(password, account.PasswordHash) {
		return domain.Account{}, ErrInvalidCredentials
	}
	s.touchLastLogin(ctx, &account)
	return account, nil
}

// GetAccount busca una cuenta por id.
func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrAccountNotFound
		}
		return domain.Account{}, err
	}
	return account, nil
}

// ReconcileOAuth encuentra-o-crea la cuenta para una asercion OAuth.
// Orden de busqueda: (provider, providerId) primero, email despues.
// Un hit por providerId es autoritativo aunque el email difiera.
func (s *AccountService) ReconcileOAuth(ctx context.Context, assertion domain.OAuthAssertion) (domain.Account, error) {
	assertion.Provider = strings.ToLower(strings.TrimSpace(assertion.Provider))
	assertion.ProviderID = strings.TrimSpace(assertion.ProviderID)
	assertion.Email = normalizeEmail(assertion.Email)
	if !domain.KnownProvider(assertion.Provider) || assertion.ProviderID == "" {
		return domain.Account{}, ErrOAuthInvalid
	}

	account, err := s.reconcileOnce(ctx, assertion)
	if errors.Is(err, repository.ErrDuplicateEmail) || errors.Is(err, repository.ErrDuplicateLink) {
		// Otra request concurrente gano la carrera del primer login:
		// se reintenta como lookup-then-merge.
		account, err = s.reconcileOnce(ctx, assertion)
	}
	return account, err
}

func (s *AccountService) reconcileOnce(ctx context.Context, assertion domain.OAuthAssertion) (domain.Account, error) {
	account, err := s.accounts.GetByProvider(ctx, assertion.Provider, assertion.ProviderID)
	if err == nil {
		if rerr := s.accounts.RefreshProviderToken(ctx, account.ID, assertion.Provider, assertion.AccessToken); rerr != nil {
			return domain.Account{}, rerr
		}
		return s.refreshProfile(ctx, account, assertion)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, err
	}

	if assertion.Email != "" {
		existing, err := s.accounts.GetByEmail(ctx, assertion.Email)
		if err == nil {
			if link, ok := existing.LinkFor(assertion.Provider); ok {
				// El proveedor ya esta vinculado a otro providerId.
				// No se auto-resuelve.
				if link.ProviderID != assertion.ProviderID {
					return domain.Account{}, ErrIdentityConflict
				}
				// Link ya existente (otra request lo creo entre los dos
				// lookups): el access token se refresca igual.
				if err := s.accounts.RefreshProviderToken(ctx, existing.ID, assertion.Provider, assertion.AccessToken); err != nil {
					return domain.Account{}, err
				}
			} else if err := s.accounts.AddProviderLink(ctx, existing.ID, domain.ProviderLink{
				Provider:    assertion.Provider,
				ProviderID:  assertion.ProviderID,
				AccessToken: assertion.AccessToken,
			}); err != nil {
				return domain.Account{}, err
			}
			return s.refreshProfile(ctx, existing, assertion)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, err
		}
	}

	now := time.Now().UTC()
	account = domain.Account{
		ID:             uuid.NewString(),
		Email:          assertion.Email,
		FullName:       assertion.FullName,
		ProfilePicture: assertion.AvatarURL,
		IsVerified:     assertion.EmailVerified,
		Providers: []domain.ProviderLink{{
			Provider:    assertion.Provider,
			ProviderID:  assertion.ProviderID,
			AccessToken: assertion.AccessToken,
		}},
		LastLoginAt: &now,
		CreatedAt:   now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

// refreshProfile aplica los campos de display de la ultima asercion
// (last-write-wins) y marca el login.
func (s *AccountService) refreshProfile(ctx context.Context, account domain.Account, assertion domain.OAuthAssertion) (domain.Account, error) {
	fullName := assertion.FullName
	if fullName == "" {
		fullName = account.FullName
	}
	emailAddr := assertion.Email
	if emailAddr == "" {
		emailAddr = account.Email
	}
	avatar := assertion.AvatarURL
	if avatar == "" {
		avatar = account.ProfilePicture
	}
	// is_verified sigue la ultima asercion igual que el resto de los
	// campos de display: una asercion sin verificar degrada la cuenta.
	verified := assertion.EmailVerified

	if err := s.accounts.UpdateProfile(ctx, account.ID, fullName, emailAddr, avatar, verified); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// El email del proveedor cambio y ahora choca con otra
			// cuenta: se reporta, no se fusiona.
			return domain.Account{}, ErrIdentityConflict
		}
		return domain.Account{}, err
	}

	account.FullName = fullName
	account.Email = emailAddr
	account.ProfilePicture = avatar
	account.IsVerified = verified
	if link, ok := account.LinkFor(assertion.Provider); ok {
		link.AccessToken = assertion.AccessToken
		for i := range account.Providers {
			if account.Providers[i].Provider == assertion.Provider {
				account.Providers[i] = link
			}
		}
	} else {
		account.Providers = append(account.Providers, domain.ProviderLink{
			Provider:    assertion.Provider,
			ProviderID:  assertion.ProviderID,
			AccessToken: assertion.AccessToken,
		})
	}
	s.touchLastLogin(ctx, &account)
	return account, nil
}

// RequestPasswordReset inicia el protocolo de reset. La respuesta es
// identica exista o no la cuenta; si el envio del correo falla, el
// digest ya persistido no se revierte (un nuevo request lo pisa).
func (s *AccountService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	code, digest, err := GenerateResetCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().UTC().Add(resetCodeTTL)
	if err := s.accounts.SetResetCode(ctx, account.ID, digest, expiresAt); err != nil {
		return err
	}

	if s.emailSender == nil {
		return nil
	}
	if err := s.emailSender.SendPasswordResetCode(ctx, emailAddr, code, expiresAt); err != nil {
		s.logger.Warn("send reset code failed", zap.Error(err), zap.String("email", emailAddr))
	}
	return nil
}

// VerifyResetCode valida (email, code) contra el digest almacenado.
// Digest incorrecto y codigo vencido responden identico. El digest no
// se limpia aqui: solo el reset completado lo consume.
func (s *AccountService) VerifyResetCode(ctx context.Context, emailAddr, code string) (domain.Account, error) {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" || !isValidResetCode(code) {
		return domain.Account{}, ErrInvalidOrExpiredCode
	}

	account, err := s.accounts.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, ErrInvalidOrExpiredCode
		}
		return domain.Account{}, err
	}
	if account.ResetCodeHash == "" || account.ResetExpiresAt == nil {
		return domain.Account{}, ErrInvalidOrExpiredCode
	}
	if time.Now().UTC().After(*account.ResetExpiresAt) {
		return domain.Account{}, ErrInvalidOrExpiredCode
	}
	if !MatchResetCode(code, account.ResetCodeHash) {
		return domain.Account{}, ErrInvalidOrExpiredCode
	}
	return account, nil
}

// ResetPassword reemplaza el password de la cuenta y limpia digest y
// expiry juntos. Las sesiones ya emitidas siguen vivas hasta vencer.
func (s *AccountService) ResetPassword(ctx context.Context, accountID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return err
	}
	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.accounts.ResetPassword(ctx, accountID, passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (s *AccountService) touchLastLogin(ctx context.Context, account *domain.Account) {
	now := time.Now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("touch last login failed", zap.Error(err), zap.String("account_id", account.ID))
		return
	}
	account.LastLoginAt = &now
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
