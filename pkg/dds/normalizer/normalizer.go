// Package normalizer maps raw provider API payloads to the provider independent record the
// custom variables are computed from. All functions are pure.
package normalizer

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

type NormalizeFunc func(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error)

var normalizers = map[string]NormalizeFunc{
	ddsTypes.PROVIDER_GITHUB:          NormalizeGitHub,
	ddsTypes.PROVIDER_FITBIT:          NormalizeFitbit,
	ddsTypes.PROVIDER_INSTAGRAM:       NormalizeInstagram,
	ddsTypes.PROVIDER_GOOGLE_CONTACTS: NormalizeGoogleContacts,
	ddsTypes.PROVIDER_DDS:             NormalizeDDS,
}

// Normalize dispatches on the payload's provider. Undecodable payloads are reported as
// ProviderResponseError carrying the payload status.
func Normalize(raw ddsTypes.RawPayload) (ddsTypes.NormalizedRecord, error) {
	fn, ok := normalizers[raw.Provider]
	if !ok {
		return ddsTypes.NormalizedRecord{}, ddsTypes.NewConfigurationError(fmt.Sprintf("no normalizer for provider %q", raw.Provider), nil)
	}
	record, err := fn(raw)
	if err != nil {
		return ddsTypes.NormalizedRecord{}, ddsTypes.NewProviderResponseError(raw.Provider, raw.Status, err)
	}
	return record, nil
}

func emptyRecord(provider string) ddsTypes.NormalizedRecord {
	return ddsTypes.NormalizedRecord{
		Provider: provider,
		Account: ddsTypes.Account{
			ID:          ddsTypes.Unavailable[string](),
			Username:    ddsTypes.Unavailable[string](),
			DisplayName: ddsTypes.Unavailable[string](),
			CreatedAt:   ddsTypes.Unavailable[time.Time](),
			Biography:   ddsTypes.Unavailable[string](),
			Followers:   ddsTypes.Unavailable[int](),
			Following:   ddsTypes.Unavailable[int](),
			PublicRepos: ddsTypes.Unavailable[int](),
			MediaCount:  ddsTypes.Unavailable[int](),
		},
		Contacts:              ddsTypes.Unavailable[[]ddsTypes.Contact](),
		Activities:            ddsTypes.Unavailable[[]ddsTypes.Activity](),
		ActivitiesByFrequency: ddsTypes.Unavailable[[]string](),
		WeeklyActivityCounts:  ddsTypes.Unavailable[[]float64](),
		DailySteps:            ddsTypes.Unavailable[[]float64](),
		Posts:                 ddsTypes.Unavailable[[]ddsTypes.Post](),
		ConnectedProviders:    ddsTypes.Unavailable[[]string](),
	}
}

// decodeResource decodes an optional resource into target. It returns false if the resource
// is absent.
func decodeResource(raw ddsTypes.RawPayload, name string, target any) (bool, error) {
	data, ok := raw.Resource(name)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}
	return true, nil
}

func maybeInt(v *int) ddsTypes.Maybe[int] {
	if v == nil {
		return ddsTypes.Unavailable[int]()
	}
	return ddsTypes.Available(*v)
}

func maybeString(v *string) ddsTypes.Maybe[string] {
	if v == nil {
		return ddsTypes.Unavailable[string]()
	}
	return ddsTypes.AvailableString(*v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func maybeTime(v *string) ddsTypes.Maybe[time.Time] {
	if v == nil {
		return ddsTypes.Unavailable[time.Time]()
	}
	t, ok := parseTime(*v)
	if !ok {
		return ddsTypes.Unavailable[time.Time]()
	}
	return ddsTypes.Available(t)
}

// byFrequency orders values by descending count, ties alphabetical.
func byFrequency(values []string) []string {
	counts := map[string]int{}
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// weeklyCounts buckets activities into Monday based weeks between the oldest and newest one.
func weeklyCounts(activities []ddsTypes.Activity) []float64 {
	if len(activities) == 0 {
		return nil
	}
	first := weekStart(activities[0].Timestamp)
	last := first
	for _, a := range activities {
		w := weekStart(a.Timestamp)
		if w.Before(first) {
			first = w
		}
		if w.After(last) {
			last = w
		}
	}
	weeks := int(last.Sub(first).Hours()/(24*7)) + 1
	counts := make([]float64, weeks)
	for _, a := range activities {
		i := int(weekStart(a.Timestamp).Sub(first).Hours() / (24 * 7))
		counts[i]++
	}
	return counts
}

func activityStats(record *ddsTypes.NormalizedRecord, activities []ddsTypes.Activity) {
	record.Activities = ddsTypes.Available(activities)
	types := make([]string, len(activities))
	for i, a := range activities {
		types[i] = a.Type
	}
	record.ActivitiesByFrequency = ddsTypes.AvailableList(byFrequency(types))

	dated := make([]ddsTypes.Activity, 0, len(activities))
	for _, a := range activities {
		if !a.Timestamp.IsZero() {
			dated = append(dated, a)
		}
	}
	record.WeeklyActivityCounts = ddsTypes.AvailableList(weeklyCounts(dated))
}
