package providers

import (
	"context"
	"net/url"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

const FITBIT_API_URL = "https://api.fitbit.com"

type Fitbit struct {
	Config APIConfig
	// Now is used for the activity log window; time.Now if nil.
	Now func() time.Time
}

func (f *Fitbit) Name() string {
	return ddsTypes.PROVIDER_FITBIT
}

func (f *Fitbit) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *Fitbit) FetchRawData(ctx context.Context, creds ddsTypes.Credentials, categories []string) (ddsTypes.RawPayload, error) {
	payload := newPayload(f.Name())
	client := f.Config.client(FITBIT_API_URL, creds)

	type resource struct {
		name     string
		prefixes []string
		path     string
		query    url.Values
	}
	resources := []resource{
		{ddsTypes.RESOURCE_FITBIT_PROFILE, []string{"account."}, "/1/user/-/profile.json", nil},
		{ddsTypes.RESOURCE_FITBIT_STEPS, []string{"steps."}, "/1/user/-/activities/steps/date/today/1m.json", nil},
		{ddsTypes.RESOURCE_FITBIT_ACTIVITIES, []string{"activities."}, "/1/user/-/activities/list.json", url.Values{
			"beforeDate": {f.now().UTC().AddDate(0, 0, 1).Format("2006-01-02")},
			"sort":       {"desc"},
			"limit":      {"100"},
			"offset":     {"0"},
		}},
	}
	for _, r := range resources {
		if !needs(categories, r.prefixes...) {
			continue
		}
		data, status, err := getResource(ctx, f.Name(), client, r.path, r.query)
		if err != nil {
			return payload, err
		}
		payload.Status = status
		payload.Resources[r.name] = data
	}
	return payload, nil
}
