package types

import "encoding/json"

// RawPayload holds the undecoded API responses a provider adapter fetched for one respondent,
// keyed by resource name.
type RawPayload struct {
	Provider  string
	Status    int
	Resources map[string]json.RawMessage
}

// Resource names per provider.
const (
	RESOURCE_GITHUB_USER   = "user"
	RESOURCE_GITHUB_EVENTS = "events"

	RESOURCE_FITBIT_PROFILE    = "profile"
	RESOURCE_FITBIT_STEPS      = "steps"
	RESOURCE_FITBIT_ACTIVITIES = "activities"

	RESOURCE_INSTAGRAM_PROFILE = "profile"
	RESOURCE_INSTAGRAM_MEDIA   = "media"

	RESOURCE_GOOGLE_CONTACTS_CONNECTIONS = "connections"

	RESOURCE_DDS_CONNECTED_PROVIDERS = "connectedProviders"
)

// Resource returns the named resource and whether it is present and not null.
func (p RawPayload) Resource(name string) (json.RawMessage, bool) {
	r, ok := p.Resources[name]
	if !ok || len(r) == 0 || string(r) == "null" {
		return nil, false
	}
	return r, true
}
