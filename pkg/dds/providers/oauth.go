package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

// DefaultEndpoints are the OAuth endpoints of the supported providers.
var DefaultEndpoints = map[string]oauth2.Endpoint{
	ddsTypes.PROVIDER_GITHUB:          github.Endpoint,
	ddsTypes.PROVIDER_GOOGLE_CONTACTS: google.Endpoint,
	ddsTypes.PROVIDER_FITBIT:          endpoints.Fitbit,
	ddsTypes.PROVIDER_INSTAGRAM:       endpoints.Instagram,
}

// OAuthManager runs the respondent consent flow and token refreshes for the OAuth providers.
// Client IDs, scopes and redirect URLs come from the project's data connection; client
// secrets are deployment configuration.
type OAuthManager struct {
	Endpoints     map[string]oauth2.Endpoint
	ClientSecrets map[string]string
	// HTTPClient is used for token requests if set.
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewOAuthManager(clientSecrets map[string]string) *OAuthManager {
	eps := make(map[string]oauth2.Endpoint, len(DefaultEndpoints))
	for k, v := range DefaultEndpoints {
		eps[k] = v
	}
	return &OAuthManager{
		Endpoints:     eps,
		ClientSecrets: clientSecrets,
	}
}

func (m *OAuthManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *OAuthManager) context(ctx context.Context) context.Context {
	if m.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.HTTPClient)
}

// Config builds the OAuth client configuration of a data connection.
func (m *OAuthManager) Config(conn ddsTypes.DataConnection) (*oauth2.Config, error) {
	endpoint, ok := m.Endpoints[conn.Provider]
	if !ok {
		return nil, ddsTypes.NewConfigurationError(fmt.Sprintf("provider %q has no OAuth endpoint", conn.Provider), nil)
	}
	if conn.ClientID == "" {
		return nil, ddsTypes.NewConfigurationError(fmt.Sprintf("data connection %s/%s has no client ID", conn.ProjectID, conn.Provider), nil)
	}
	return &oauth2.Config{
		ClientID:     conn.ClientID,
		ClientSecret: m.ClientSecrets[conn.Provider],
		Endpoint:     endpoint,
		RedirectURL:  conn.RedirectURL,
		Scopes:       conn.Scopes,
	}, nil
}

// AuthCodeURL returns the consent page URL for a respondent; state must identify the
// respondent, project and provider.
func (m *OAuthManager) AuthCodeURL(conn ddsTypes.DataConnection, state string) (string, error) {
	cfg, err := m.Config(conn)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange turns the consent callback code into a fresh access grant.
func (m *OAuthManager) Exchange(ctx context.Context, conn ddsTypes.DataConnection, respondentID string, code string) (ddsTypes.DataProviderAccess, error) {
	cfg, err := m.Config(conn)
	if err != nil {
		return ddsTypes.DataProviderAccess{}, err
	}
	token, err := cfg.Exchange(m.context(ctx), code)
	if err != nil {
		return ddsTypes.DataProviderAccess{}, tokenError(conn.Provider, err)
	}
	now := m.now()
	access := ddsTypes.DataProviderAccess{
		RespondentID: respondentID,
		ProjectID:    conn.ProjectID,
		Provider:     conn.Provider,
		Scopes:       conn.Scopes,
		GrantedAt:    now,
	}
	applyToken(&access, token)
	return access, nil
}

// Refresh obtains a new access token with the grant's refresh token. It is called at most once
// per run and access grant.
func (m *OAuthManager) Refresh(ctx context.Context, conn ddsTypes.DataConnection, access ddsTypes.DataProviderAccess) (ddsTypes.DataProviderAccess, error) {
	if access.RefreshToken == "" {
		return access, ddsTypes.NewProviderAuthError(access.Provider, 0, errors.New("grant has no refresh token"))
	}
	cfg, err := m.Config(conn)
	if err != nil {
		return access, err
	}
	expired := &oauth2.Token{
		RefreshToken: access.RefreshToken,
		Expiry:       m.now().Add(-time.Minute),
	}
	token, err := cfg.TokenSource(m.context(ctx), expired).Token()
	if err != nil {
		return access, tokenError(access.Provider, err)
	}
	applyToken(&access, token)
	access.RefreshedAt = m.now()
	return access, nil
}

func applyToken(access *ddsTypes.DataProviderAccess, token *oauth2.Token) {
	access.AccessToken = token.AccessToken
	access.TokenType = token.Type()
	access.Expiry = token.Expiry
	if token.RefreshToken != "" {
		access.RefreshToken = token.RefreshToken
	}
}

// tokenError maps token endpoint failures: server errors may be retried, everything else
// means the grant is not usable.
func tokenError(provider string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		if re.Response.StatusCode >= 500 {
			return ddsTypes.NewProviderResponseError(provider, re.Response.StatusCode, err)
		}
		return ddsTypes.NewProviderAuthError(provider, re.Response.StatusCode, err)
	}
	return ddsTypes.NewProviderAuthError(provider, 0, err)
}
