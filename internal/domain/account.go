package domain

import "time"

// Proveedores OAuth soportados. El conjunto es cerrado.
const (
	ProviderGoogle = "google"
	ProviderGithub = "github"
)

// KnownProvider indica si el proveedor pertenece al conjunto soportado.
func KnownProvider(provider string) bool {
	return provider == ProviderGoogle || provider == ProviderGithub
}

// Account es el registro durable de identidad. Un email (case-insensitive)
// corresponde a exactamente una cuenta; una cuenta puede tener password,
// provider links, o ambos.
type Account struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	FullName       string         `json:"full_name"`
	Phone          string         `json:"phone,omitempty"`
	ProfilePicture string         `json:"profile_picture,omitempty"`
	PasswordHash   string         `json:"-"`
	Providers      []ProviderLink `json:"providers,omitempty"`
	IsVerified     bool           `json:"is_verified"`
	ResetCodeHash  string         `json:"-"`
	ResetExpiresAt *time.Time     `json:"-"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ProviderLink vincula una identidad OAuth externa a una cuenta.
// ProviderID es inmutable una vez vinculado; AccessToken se refresca
// en cada login con ese proveedor.
type ProviderLink struct {
	Provider    string `json:"provider"`
	ProviderID  string `json:"-"`
	AccessToken string `json:"-"`
}

// LinkFor devuelve el provider link para un proveedor, si existe.
func (a Account) LinkFor(provider string) (ProviderLink, bool) {
	for _, l := range a.Providers {
		if l.Provider == provider {
			return l, true
		}
	}
	return ProviderLink{}, false
}
