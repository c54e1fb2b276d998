package evaluator

import (
	"errors"
	"testing"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/dds/catalog"
	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

func def(provider string, category string, vt ddsTypes.VariableType) ddsTypes.CustomVariable {
	return ddsTypes.CustomVariable{
		ProjectID:    "p1",
		Provider:     provider,
		Category:     category,
		VariableType: vt,
	}
}

func emptyRecord(provider string) *ddsTypes.NormalizedRecord {
	return &ddsTypes.NormalizedRecord{Provider: provider}
}

func TestEveryCatalogCategoryHasAnExtractor(t *testing.T) {
	e := NewEvaluator(catalog.Default())
	if missing := e.MissingExtractors(); len(missing) > 0 {
		t.Errorf("categories without extraction: %v", missing)
	}
}

func TestGitHubWeeklyActivityAverage(t *testing.T) {
	e := NewEvaluator(catalog.Default())
	record := emptyRecord(ddsTypes.PROVIDER_GITHUB)
	record.WeeklyActivityCounts = ddsTypes.Available([]float64{40, 45, 43, 44, 41})

	r := e.Evaluate(def(ddsTypes.PROVIDER_GITHUB, "activities.average", ddsTypes.VARIABLE_TYPE_SCALE), &Source{Record: record})
	if r.State != STATE_SUCCEEDED {
		t.Fatalf("unexpected state: %s (%v)", r.State, r.Err)
	}
	if r.Value != "43" {
		t.Errorf("expected 43, got %s", r.Value)
	}
	if r.Field != "dds.github.activities.average" {
		t.Errorf("unexpected field: %s", r.Field)
	}
	want := []State{STATE_PENDING, STATE_FETCHED, STATE_COMPUTED, STATE_SUCCEEDED}
	if len(r.Trace) != len(want) {
		t.Fatalf("unexpected trace: %v", r.Trace)
	}
	for i := range want {
		if r.Trace[i] != want[i] {
			t.Errorf("unexpected trace: %v", r.Trace)
		}
	}

	precise := e.Evaluate(def(ddsTypes.PROVIDER_GITHUB, "activities.average_precise", ddsTypes.VARIABLE_TYPE_SCALE), &Source{Record: record})
	if precise.Value != "42.6" {
		t.Errorf("expected 42.6, got %s", precise.Value)
	}
}

func TestFitbitWithoutAccess(t *testing.T) {
	e := NewEvaluator(catalog.Default())
	results := e.EvaluateAll([]ddsTypes.CustomVariable{
		def(ddsTypes.PROVIDER_FITBIT, "steps.average", ddsTypes.VARIABLE_TYPE_SCALE),
	}, map[string]Source{})

	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	r := results[0]
	if r.State != STATE_UNAVAILABLE {
		t.Errorf("unexpected state: %s", r.State)
	}
	if r.Value != UNAVAILABLE_PLACEHOLDER {
		t.Errorf("unexpected value: %q", r.Value)
	}
	if r.Field != "dds.fitbit.steps.average" {
		t.Errorf("unexpected field: %s", r.Field)
	}
	if r.ErrorKind() != ddsTypes.ERROR_KIND_UNAVAILABLE_DATA {
		t.Errorf("unexpected error kind: %s", r.ErrorKind())
	}
}

func TestEvaluateStates(t *testing.T) {
	e := NewEvaluator(catalog.Default())
	githubRecord := emptyRecord(ddsTypes.PROVIDER_GITHUB)
	githubRecord.ActivitiesByFrequency = ddsTypes.Available([]string{"PushEvent"})
	githubRecord.Account.CreatedAt = ddsTypes.Available(time.Date(2015, 3, 4, 23, 30, 0, 0, time.FixedZone("", -2*3600)))
	githubRecord.Account.Username = ddsTypes.Available("octocat")

	tests := []struct {
		name      string
		def       ddsTypes.CustomVariable
		source    *Source
		wantState State
		wantValue string
		wantKind  ddsTypes.ErrorKind
	}{
		{
			name:      "index in range",
			def:       def(ddsTypes.PROVIDER_GITHUB, "activities.most_frequent", ddsTypes.VARIABLE_TYPE_STRING),
			source:    &Source{Record: githubRecord},
			wantState: STATE_SUCCEEDED,
			wantValue: "PushEvent",
		},
		{
			name:      "index out of range",
			def:       def(ddsTypes.PROVIDER_GITHUB, "activities.second_most_frequent", ddsTypes.VARIABLE_TYPE_STRING),
			source:    &Source{Record: githubRecord},
			wantState: STATE_UNAVAILABLE,
			wantKind:  ddsTypes.ERROR_KIND_UNAVAILABLE_DATA,
		},
		{
			name:      "date in UTC",
			def:       def(ddsTypes.PROVIDER_GITHUB, "account.created_date", ddsTypes.VARIABLE_TYPE_DATE),
			source:    &Source{Record: githubRecord},
			wantState: STATE_SUCCEEDED,
			wantValue: "2015-03-05",
		},
		{
			name:      "provider call failed",
			def:       def(ddsTypes.PROVIDER_GITHUB, "account.username", ddsTypes.VARIABLE_TYPE_STRING),
			source:    &Source{Err: ddsTypes.NewProviderResponseError(ddsTypes.PROVIDER_GITHUB, 502, errors.New("bad gateway"))},
			wantState: STATE_FAILED,
			wantKind:  ddsTypes.ERROR_KIND_PROVIDER_RESPONSE,
		},
		{
			name:      "auth failed",
			def:       def(ddsTypes.PROVIDER_GITHUB, "account.username", ddsTypes.VARIABLE_TYPE_STRING),
			source:    &Source{Err: ddsTypes.NewProviderAuthError(ddsTypes.PROVIDER_GITHUB, 401, nil)},
			wantState: STATE_FAILED,
			wantKind:  ddsTypes.ERROR_KIND_PROVIDER_AUTH,
		},
		{
			name:      "unavailable data error from source",
			def:       def(ddsTypes.PROVIDER_GITHUB, "account.username", ddsTypes.VARIABLE_TYPE_STRING),
			source:    &Source{Err: ddsTypes.NewUnavailableDataError(ddsTypes.PROVIDER_GITHUB, "", "no data")},
			wantState: STATE_UNAVAILABLE,
			wantKind:  ddsTypes.ERROR_KIND_UNAVAILABLE_DATA,
		},
		{
			name:      "unknown category",
			def:       def(ddsTypes.PROVIDER_GITHUB, "stars.count", ddsTypes.VARIABLE_TYPE_SCALE),
			source:    &Source{Record: githubRecord},
			wantState: STATE_FAILED,
			wantKind:  ddsTypes.ERROR_KIND_CONFIGURATION,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Evaluate(tt.def, tt.source)
			if r.State != tt.wantState {
				t.Errorf("expected state %s, got %s (%v)", tt.wantState, r.State, r.Err)
			}
			if r.Value != tt.wantValue {
				t.Errorf("expected value %q, got %q", tt.wantValue, r.Value)
			}
			if r.ErrorKind() != tt.wantKind {
				t.Errorf("expected error kind %q, got %q", tt.wantKind, r.ErrorKind())
			}
			if !r.State.IsTerminal() {
				t.Errorf("state should be terminal")
			}
		})
	}
}

func TestEvaluateAllIsolatesFailures(t *testing.T) {
	e := NewEvaluator(catalog.Default())
	fitbit := emptyRecord(ddsTypes.PROVIDER_FITBIT)
	fitbit.DailySteps = ddsTypes.Available([]float64{1000, 2000, 3001})

	results := e.EvaluateAll([]ddsTypes.CustomVariable{
		def(ddsTypes.PROVIDER_GITHUB, "followers.count", ddsTypes.VARIABLE_TYPE_SCALE),
		def(ddsTypes.PROVIDER_FITBIT, "steps.average", ddsTypes.VARIABLE_TYPE_SCALE),
		def(ddsTypes.PROVIDER_FITBIT, "steps.total", ddsTypes.VARIABLE_TYPE_SCALE),
	}, map[string]Source{
		ddsTypes.PROVIDER_GITHUB: {Err: ddsTypes.NewProviderResponseError(ddsTypes.PROVIDER_GITHUB, 500, nil)},
		ddsTypes.PROVIDER_FITBIT: {Record: fitbit},
	})

	if results[0].State != STATE_FAILED {
		t.Errorf("github should fail: %s", results[0].State)
	}
	if results[1].State != STATE_SUCCEEDED || results[1].Value != "2000" {
		t.Errorf("unexpected steps average: %s %q", results[1].State, results[1].Value)
	}
	if results[2].Value != "6001" {
		t.Errorf("unexpected steps total: %q", results[2].Value)
	}
}

func TestTextCategories(t *testing.T) {
	e := NewEvaluator(catalog.Default())
	instagram := emptyRecord(ddsTypes.PROVIDER_INSTAGRAM)
	instagram.Posts = ddsTypes.Available([]ddsTypes.Post{
		{Caption: "Sunny day. At the beach!", MediaType: "IMAGE", Timestamp: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{Caption: "one\n\ntwo", MediaType: "VIDEO", Timestamp: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)},
		{Caption: "", MediaType: "IMAGE"},
	})
	contacts := emptyRecord(ddsTypes.PROVIDER_GOOGLE_CONTACTS)
	contacts.Contacts = ddsTypes.Available([]ddsTypes.Contact{
		{Biography: ddsTypes.Available("met at work"), Birthday: ddsTypes.Available(ddsTypes.Date{Month: 1, Day: 2})},
		{Biography: ddsTypes.Available("neighbour"), Emails: ddsTypes.Available([]string{"a@example.com"})},
		{Emails: ddsTypes.Available([]string{})},
	})
	sources := map[string]Source{
		ddsTypes.PROVIDER_INSTAGRAM:       {Record: instagram},
		ddsTypes.PROVIDER_GOOGLE_CONTACTS: {Record: contacts},
	}

	tests := []struct {
		def  ddsTypes.CustomVariable
		want string
	}{
		{def(ddsTypes.PROVIDER_INSTAGRAM, "captions.words.average", ddsTypes.VARIABLE_TYPE_SCALE), "4"},
		{def(ddsTypes.PROVIDER_INSTAGRAM, "captions.sentences.average", ddsTypes.VARIABLE_TYPE_SCALE), "1"},
		{def(ddsTypes.PROVIDER_INSTAGRAM, "captions.paragraphs.average", ddsTypes.VARIABLE_TYPE_SCALE), "2"},
		{def(ddsTypes.PROVIDER_INSTAGRAM, "posts.count", ddsTypes.VARIABLE_TYPE_SCALE), "3"},
		{def(ddsTypes.PROVIDER_INSTAGRAM, "posts.latest_date", ddsTypes.VARIABLE_TYPE_DATE), "2024-06-02"},
		{def(ddsTypes.PROVIDER_INSTAGRAM, "posts.most_frequent_type", ddsTypes.VARIABLE_TYPE_STRING), "IMAGE"},
		{def(ddsTypes.PROVIDER_GOOGLE_CONTACTS, "contacts.count", ddsTypes.VARIABLE_TYPE_SCALE), "3"},
		{def(ddsTypes.PROVIDER_GOOGLE_CONTACTS, "contacts.birthdays.count", ddsTypes.VARIABLE_TYPE_SCALE), "1"},
		{def(ddsTypes.PROVIDER_GOOGLE_CONTACTS, "contacts.emails.count", ddsTypes.VARIABLE_TYPE_SCALE), "1"},
		{def(ddsTypes.PROVIDER_GOOGLE_CONTACTS, "contacts.biographies.words.average", ddsTypes.VARIABLE_TYPE_SCALE), "2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.def.Field(), func(t *testing.T) {
			r := e.EvaluateAll([]ddsTypes.CustomVariable{tt.def}, sources)[0]
			if r.State != STATE_SUCCEEDED || r.Value != tt.want {
				t.Errorf("expected %q, got %s %q (%v)", tt.want, r.State, r.Value, r.Err)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		cat     catalog.Category
		want    string
		wantErr bool
	}{
		{"round half up", 2.5, catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_SCALE}, "3", false},
		{"round down", 42.4, catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_SCALE}, "42", false},
		{"negative", -2.5, catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_SCALE}, "-3", false},
		{"fractional", 1.0 / 3, catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_SCALE, Fractional: true, Precision: 2}, "0.33", false},
		{"date without year", ddsTypes.Date{Month: 12, Day: 24}, catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_DATE}, "--12-24", false},
		{"string for scale", "7", catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_SCALE}, "", true},
		{"number for date", 7.0, catalog.Category{VariableType: ddsTypes.VARIABLE_TYPE_DATE}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := format(tt.value, tt.cat)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestInvalidTransitionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	r := newResult(def(ddsTypes.PROVIDER_GITHUB, "account.username", ddsTypes.VARIABLE_TYPE_STRING))
	r.advance(STATE_SUCCEEDED)
}
