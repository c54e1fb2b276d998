package providers

import (
	"context"
	"net/url"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const INSTAGRAM_API_URL = "https://graph.instagram.com"

type Instagram struct {
	Config APIConfig
}

func (i *Instagram) Name() string {
	return ddsTypes.PROVIDER_INSTAGRAM
}

// FetchRawData reads the profile and, for post and caption categories, the latest media page.
// The Graph API takes the token as query parameter.
func (i *Instagram) FetchRawData(ctx context.Context, creds ddsTypes.Credentials, categories []string) (ddsTypes.RawPayload, error) {
	payload := newPayload(i.Name())
	client := i.Config.client(INSTAGRAM_API_URL, creds)
	client.BearerToken = ""

	profile, status, err := getResource(ctx, i.Name(), client, "/me", url.Values{
		"fields":       {"id,username,media_count"},
		"access_token": {creds.AccessToken},
	})
	if err != nil {
		return payload, err
	}
	payload.Status = status
	payload.Resources[ddsTypes.RESOURCE_INSTAGRAM_PROFILE] = profile

	if !needs(categories, "posts.", "captions.") {
		return payload, nil
	}
	media, _, err := getResource(ctx, i.Name(), client, "/me/media", url.Values{
		"fields":       {"id,caption,media_type,timestamp"},
		"limit":        {"100"},
		"access_token": {creds.AccessToken},
	})
	if err != nil {
		return payload, err
	}
	payload.Resources[ddsTypes.RESOURCE_INSTAGRAM_MEDIA] = media
	return payload, nil
}
