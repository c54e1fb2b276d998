package providers

import (
	"context"
	"encoding/json"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

// ConnectedProvidersSource lists the providers a respondent granted access to in a project.
type ConnectedProvidersSource interface {
	GetConnectedProviders(instanceID string, projectID string, respondentID string) ([]string, error)
}

// DDS serves the platform's own data about the respondent. It needs no credentials.
type DDS struct {
	Source ConnectedProvidersSource
}

func (d *DDS) Name() string {
	return ddsTypes.PROVIDER_DDS
}

func (d *DDS) FetchRawData(ctx context.Context, creds ddsTypes.Credentials, categories []string) (ddsTypes.RawPayload, error) {
	payload := newPayload(d.Name())
	if err := ctx.Err(); err != nil {
		return payload, err
	}
	providers, err := d.Source.GetConnectedProviders(creds.InstanceID, creds.ProjectID, creds.RespondentID)
	if err != nil {
		return payload, ddsTypes.NewProviderResponseError(d.Name(), 0, err)
	}
	if providers == nil {
		providers = []string{}
	}
	data, err := json.Marshal(providers)
	if err != nil {
		return payload, ddsTypes.NewProviderResponseError(d.Name(), 0, err)
	}
	payload.Resources[ddsTypes.RESOURCE_DDS_CONNECTED_PROVIDERS] = data
	return payload, nil
}
