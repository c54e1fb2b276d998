package providers

import (
	"context"
	"encoding/json"
	"net/url"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const GITHUB_API_URL = "https://api.github.com"

type GitHub struct {
	Config APIConfig
}

func (g *GitHub) Name() string {
	return ddsTypes.PROVIDER_GITHUB
}

// FetchRawData always reads the authenticated user; events are only read for activity
// categories.
func (g *GitHub) FetchRawData(ctx context.Context, creds ddsTypes.Credentials, categories []string) (ddsTypes.RawPayload, error) {
	payload := newPayload(g.Name())
	client := g.Config.client(GITHUB_API_URL, creds)

	user, status, err := getResource(ctx, g.Name(), client, "/user", nil)
	if err != nil {
		return payload, err
	}
	payload.Status = status
	payload.Resources[ddsTypes.RESOURCE_GITHUB_USER] = user

	if !needs(categories, "activities.") {
		return payload, nil
	}
	var u struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(user, &u); err != nil || u.Login == "" {
		return payload, nil
	}
	events, _, err := getResource(ctx, g.Name(), client, "/users/"+url.PathEscape(u.Login)+"/events", url.Values{"per_page": {"100"}})
	if err != nil {
		return payload, err
	}
	payload.Resources[ddsTypes.RESOURCE_GITHUB_EVENTS] = events
	return payload, nil
}
