package oauth

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"sketchlab/internal/domain"
)

const githubUserInfoURL = "https://api.github.com/user"

// GithubProvider canjea codigos contra GitHub y normaliza el perfil.
// GitHub puede no exponer email publico: en ese caso se sintetiza
// <login>@github.com y la cuenta queda sin verificar.
type GithubProvider struct {
	baseProvider
}

func NewGithubProvider(clientID, clientSecret, callbackURL string) *GithubProvider {
	return &GithubProvider{baseProvider{
		name: domain.ProviderGithub,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		},
		userInfoURL: githubUserInfoURL,
	}}
}

// WithUserInfoURL redirige el fetch de perfil, para tests.
func (p *GithubProvider) WithUserInfoURL(url string, client *http.Client) *GithubProvider {
	p.userInfoURL = url
	p.httpClient = client
	return p
}

type githubUserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func (p *GithubProvider) FetchProfile(ctx context.Context, code string) (domain.OAuthAssertion, error) {
	token, err := p.exchange(ctx, code)
	if err != nil {
		return domain.OAuthAssertion{}, err
	}
	var info githubUserInfo
	if err := p.fetchUserInfo(ctx, token, &info); err != nil {
		return domain.OAuthAssertion{}, err
	}

	fullName := info.Name
	if fullName == "" {
		fullName = info.Login
	}
	if fullName == "" {
		fullName = "Unnamed GitHub User"
	}
	emailAddr := info.Email
	verified := emailAddr != ""
	if emailAddr == "" {
		emailAddr = info.Login + "@github.com"
	}
	return domain.OAuthAssertion{
		Provider:      domain.ProviderGithub,
		ProviderID:    fmt.Sprintf("%d", info.ID),
		Email:         emailAddr,
		FullName:      fullName,
		AvatarURL:     info.AvatarURL,
		EmailVerified: verified,
		AccessToken:   token.AccessToken,
	}, nil
}
