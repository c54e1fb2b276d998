// Package providers fetches raw respondent data from the data provider APIs. Each provider
// implements the same capability interface; the orchestrator composes them through a Registry.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	httpclient "github.com/ddsurveys/dds-backend/pkg/http-client"
)

const DEFAULT_TIMEOUT = 20 * time.Second

type Provider interface {
	Name() string
	// FetchRawData fetches the resources needed for the given categories of the provider.
	FetchRawData(ctx context.Context, creds ddsTypes.Credentials, categories []string) (ddsTypes.RawPayload, error)
}

// APIConfig points a provider adapter at its API. An empty RootURL selects the public API.
type APIConfig struct {
	RootURL string        `yaml:"root_url"`
	Timeout time.Duration `yaml:"timeout"`
}

func (c APIConfig) client(defaultRootURL string, creds ddsTypes.Credentials) httpclient.ClientConfig {
	rootURL := c.RootURL
	if rootURL == "" {
		rootURL = defaultRootURL
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	return httpclient.ClientConfig{
		RootURL:     strings.TrimSuffix(rootURL, "/"),
		BearerToken: creds.AccessToken,
		Timeout:     timeout,
	}
}

// getResource runs a GET and maps failures to the error taxonomy: 401/403 are auth errors,
// transport errors, other non 2xx statuses and non JSON bodies are response errors.
func getResource(ctx context.Context, provider string, client httpclient.ClientConfig, pathname string, query url.Values) (json.RawMessage, int, error) {
	resp, err := client.Do(ctx, http.MethodGet, pathname, query, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, ddsTypes.NewProviderResponseError(provider, 0, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, ddsTypes.NewProviderAuthError(provider, resp.StatusCode, fmt.Errorf("%s: %s", pathname, snippet(resp.Body)))
	case !resp.IsSuccess():
		return nil, resp.StatusCode, ddsTypes.NewProviderResponseError(provider, resp.StatusCode, fmt.Errorf("%s: %s", pathname, snippet(resp.Body)))
	}
	if !json.Valid(resp.Body) {
		return nil, resp.StatusCode, ddsTypes.NewProviderResponseError(provider, resp.StatusCode, fmt.Errorf("%s: response is not JSON", pathname))
	}
	return json.RawMessage(resp.Body), resp.StatusCode, nil
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

func newPayload(provider string) ddsTypes.RawPayload {
	return ddsTypes.RawPayload{
		Provider:  provider,
		Status:    http.StatusOK,
		Resources: map[string]json.RawMessage{},
	}
}

// needs reports whether any category starts with one of the prefixes. No categories means all.
func needs(categories []string, prefixes ...string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		for _, p := range prefixes {
			if strings.HasPrefix(c, p) {
				return true
			}
		}
	}
	return false
}

var ErrUnknownProvider = errors.New("unknown provider")

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry registers all built-in providers. apis overrides the API endpoint per
// provider name; connected backs the DDS provider.
func DefaultRegistry(apis map[string]APIConfig, connected ConnectedProvidersSource) *Registry {
	return NewRegistry(
		&GitHub{Config: apis[ddsTypes.PROVIDER_GITHUB]},
		&Fitbit{Config: apis[ddsTypes.PROVIDER_FITBIT]},
		&Instagram{Config: apis[ddsTypes.PROVIDER_INSTAGRAM]},
		&GoogleContacts{Config: apis[ddsTypes.PROVIDER_GOOGLE_CONTACTS]},
		&DDS{Source: connected},
	)
}
