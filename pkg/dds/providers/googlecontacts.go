package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const (
	GOOGLE_PEOPLE_API_URL = "https://people.googleapis.com"

	googlePersonFields  = "names,birthdays,addresses,emailAddresses,phoneNumbers,biographies,organizations,events,relations,memberships"
	googlePageSize      = "1000"
	googleMaxPagesFetch = 10
)

type GoogleContacts struct {
	Config APIConfig
}

func (g *GoogleContacts) Name() string {
	return ddsTypes.PROVIDER_GOOGLE_CONTACTS
}

// FetchRawData reads all connection pages and stores them as one list. Contacts beyond
// googleMaxPagesFetch pages are dropped with a warning.
func (g *GoogleContacts) FetchRawData(ctx context.Context, creds ddsTypes.Credentials, categories []string) (ddsTypes.RawPayload, error) {
	payload := newPayload(g.Name())
	client := g.Config.client(GOOGLE_PEOPLE_API_URL, creds)

	connections := []json.RawMessage{}
	pageToken := ""
	for page := 0; page < googleMaxPagesFetch; page++ {
		query := url.Values{
			"personFields": {googlePersonFields},
			"pageSize":     {googlePageSize},
		}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		data, status, err := getResource(ctx, g.Name(), client, "/v1/people/me/connections", query)
		if err != nil {
			return payload, err
		}
		payload.Status = status

		var resp struct {
			Connections   []json.RawMessage `json:"connections"`
			NextPageToken string            `json:"nextPageToken"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return payload, ddsTypes.NewProviderResponseError(g.Name(), status, err)
		}
		connections = append(connections, resp.Connections...)
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	if pageToken != "" {
		slog.Warn("contact list truncated",
			slog.String("provider", g.Name()),
			slog.String("instanceID", creds.InstanceID),
			slog.String("respondentID", creds.RespondentID),
			slog.Int("pages", googleMaxPagesFetch),
			slog.Int("connections", len(connections)),
		)
	}

	merged, err := json.Marshal(connections)
	if err != nil {
		return payload, ddsTypes.NewProviderResponseError(g.Name(), payload.Status, err)
	}
	payload.Resources[ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS] = merged
	return payload, nil
}
