package domain

// OAuthAssertion es el perfil verificado que entrega un proveedor
// tras el intercambio de codigo. Es la entrada del reconciliador.
type OAuthAssertion struct {
	Provider      string
	ProviderID    string
	Email         string
	FullName      string
	AvatarURL     string
	EmailVerified bool
	AccessToken   string
}
