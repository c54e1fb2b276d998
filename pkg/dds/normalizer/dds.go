package normalizer

import (
	"sort"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

// NormalizeDDS maps the platform's own data about the respondent.
func NormalizeDDS(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error) {
	record := emptyRecord(ddsTypes.PROVIDER_DDS)

	var providers []string
	found, err := decodeResource(raw, ddsTypes.RESOURCE_DDS_CONNECTED_PROVIDERS, &providers)
	if err != nil {
		return record, err
	}
	if found {
		sorted := append([]string{}, providers...)
		sort.Strings(sorted)
		record.ConnectedProviders = ddsTypes.Available(sorted)
	}
	return record, nil
}
