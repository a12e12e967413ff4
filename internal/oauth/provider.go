package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"sketchlab/internal/domain"
)

var ErrExchangeFailed = errors.New("oauth code exchange failed")

// Provider expone la capacidad minima de un proveedor OAuth: construir
// la URL de consentimiento y canjear un codigo por un perfil verificado.
// El conjunto de proveedores es cerrado: Google y GitHub.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	FetchProfile(ctx context.Context, code string) (domain.OAuthAssertion, error)
}

type baseProvider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func (p *baseProvider) Name() string {
	return p.name
}

func (p *baseProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// WithEndpoint reemplaza las URLs de autorizacion y token, para tests.
func (p *baseProvider) WithEndpoint(authURL, tokenURL string) {
	p.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
}

func (p *baseProvider) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return token, nil
}

func (p *baseProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	client := p.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch user info: status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, out)
}
