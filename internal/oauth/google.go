package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"sketchlab/internal/domain"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider canjea codigos contra Google y normaliza el perfil.
type GoogleProvider struct {
	baseProvider
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{baseProvider{
		name: domain.ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		userInfoURL: googleUserInfoURL,
	}}
}

// WithUserInfoURL redirige el fetch de perfil, para tests.
func (p *GoogleProvider) WithUserInfoURL(url string, client *http.Client) *GoogleProvider {
	p.userInfoURL = url
	p.httpClient = client
	return p
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) FetchProfile(ctx context.Context, code string) (domain.OAuthAssertion, error) {
	token, err := p.exchange(ctx, code)
	if err != nil {
		return domain.OAuthAssertion{}, err
	}
	var info googleUserInfo
	if err := p.fetchUserInfo(ctx, token, &info); err != nil {
		return domain.OAuthAssertion{}, err
	}

	fullName := info.Name
	if fullName == "" {
		fullName = "Unnamed"
	}
	emailAddr := info.Email
	if emailAddr == "" {
		emailAddr = "noemail@google.com"
	}
	return domain.OAuthAssertion{
		Provider:      domain.ProviderGoogle,
		ProviderID:    info.ID,
		Email:         emailAddr,
		FullName:      fullName,
		AvatarURL:     info.Picture,
		EmailVerified: info.VerifiedEmail,
		AccessToken:   token.AccessToken,
	}, nil
}
