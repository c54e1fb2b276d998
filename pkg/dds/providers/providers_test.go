package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
)

var testCreds = ddsTypes.Credentials{InstanceID: "test", RespondentID: "r1", ProjectID: "p1", AccessToken: "token-1"}

func newTestServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *[]string) {
	t.Helper()
	calls := []string{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		h, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func jsonHandler(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestGitHubFetch(t *testing.T) {
	var authHeader string
	ts, calls := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/user": func(w http.ResponseWriter, r *http.Request) {
			authHeader = r.Header.Get("Authorization")
			jsonHandler(`{"login": "octocat", "followers": 3}`)(w, r)
		},
		"/users/octocat/events": jsonHandler(`[{"type": "PushEvent", "created_at": "2024-01-01T10:00:00Z"}]`),
	})
	g := &GitHub{Config: APIConfig{RootURL: ts.URL}}

	t.Run("with activities", func(t *testing.T) {
		payload, err := g.FetchRawData(context.Background(), testCreds, []string{"activities.average", "followers.count"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if authHeader != "Bearer token-1" {
			t.Errorf("unexpected auth header: %s", authHeader)
		}
		if _, ok := payload.Resource(ddsTypes.RESOURCE_GITHUB_EVENTS); !ok {
			t.Error("events should be fetched")
		}
		if payload.Status != http.StatusOK || payload.Provider != ddsTypes.PROVIDER_GITHUB {
			t.Errorf("unexpected payload: %+v", payload)
		}
	})

	t.Run("without activities", func(t *testing.T) {
		*calls = nil
		payload, err := g.FetchRawData(context.Background(), testCreds, []string{"followers.count"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := payload.Resource(ddsTypes.RESOURCE_GITHUB_EVENTS); ok {
			t.Error("events should not be fetched")
		}
		if len(*calls) != 1 {
			t.Errorf("unexpected calls: %v", *calls)
		}
	})
}

func TestFetchErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(w http.ResponseWriter, r *http.Request)
		wantKind   ddsTypes.ErrorKind
		wantStatus int
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }, ddsTypes.ERROR_KIND_PROVIDER_AUTH, 401},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }, ddsTypes.ERROR_KIND_PROVIDER_AUTH, 403},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }, ddsTypes.ERROR_KIND_PROVIDER_RESPONSE, 502},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }, ddsTypes.ERROR_KIND_PROVIDER_RESPONSE, 429},
		{"not json", jsonHandler(`<html>`), ddsTypes.ERROR_KIND_PROVIDER_RESPONSE, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){"/user": tt.handler})
			g := &GitHub{Config: APIConfig{RootURL: ts.URL}}
			_, err := g.FetchRawData(context.Background(), testCreds, nil)
			var e *ddsTypes.Error
			if !errors.As(err, &e) {
				t.Fatalf("expected pipeline error, got %v", err)
			}
			if e.Kind != tt.wantKind || e.Status != tt.wantStatus || e.Provider != ddsTypes.PROVIDER_GITHUB {
				t.Errorf("unexpected error: %+v", e)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()
		g := &GitHub{Config: APIConfig{RootURL: ts.URL}}
		_, err := g.FetchRawData(context.Background(), testCreds, nil)
		if !ddsTypes.IsKind(err, ddsTypes.ERROR_KIND_PROVIDER_RESPONSE) {
			t.Errorf("expected response error, got %v", err)
		}
	})
}

func TestFitbitFetch(t *testing.T) {
	var beforeDate string
	ts, calls := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/1/user/-/profile.json":                       jsonHandler(`{"user": {}}`),
		"/1/user/-/activities/steps/date/today/1m.json": jsonHandler(`{"activities-steps": []}`),
		"/1/user/-/activities/list.json": func(w http.ResponseWriter, r *http.Request) {
			beforeDate = r.URL.Query().Get("beforeDate")
			jsonHandler(`{"activities": []}`)(w, r)
		},
	})
	f := &Fitbit{
		Config: APIConfig{RootURL: ts.URL},
		Now:    func() time.Time { return time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC) },
	}

	payload, err := f.FetchRawData(context.Background(), testCreds, []string{"steps.average"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 1 || len(payload.Resources) != 1 {
		t.Errorf("only steps should be fetched: %v", *calls)
	}

	*calls = nil
	if _, err := f.FetchRawData(context.Background(), testCreds, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 3 {
		t.Errorf("all resources should be fetched: %v", *calls)
	}
	if beforeDate != "2024-02-29" {
		t.Errorf("unexpected beforeDate: %s", beforeDate)
	}
}

func TestInstagramFetch(t *testing.T) {
	var token, auth string
	ts, _ := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/me": func(w http.ResponseWriter, r *http.Request) {
			token = r.URL.Query().Get("access_token")
			auth = r.Header.Get("Authorization")
			jsonHandler(`{"id": "1", "username": "pic"}`)(w, r)
		},
		"/me/media": jsonHandler(`{"data": []}`),
	})
	i := &Instagram{Config: APIConfig{RootURL: ts.URL}}
	payload, err := i.FetchRawData(context.Background(), testCreds, []string{"captions.words.average"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "token-1" || auth != "" {
		t.Errorf("token should be passed as query parameter only: %q %q", token, auth)
	}
	if _, ok := payload.Resource(ddsTypes.RESOURCE_INSTAGRAM_MEDIA); !ok {
		t.Error("media should be fetched")
	}
}

func TestGoogleContactsPaging(t *testing.T) {
	ts, calls := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
		"/v1/people/me/connections": func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.URL.Query().Get("personFields"), "birthdays") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			switch r.URL.Query().Get("pageToken") {
			case "":
				jsonHandler(`{"connections": [{"resourceName": "people/1"}], "nextPageToken": "p2"}`)(w, r)
			case "p2":
				jsonHandler(`{"connections": [{"resourceName": "people/2"}]}`)(w, r)
			}
		},
	})
	g := &GoogleContacts{Config: APIConfig{RootURL: ts.URL}}
	payload, err := g.FetchRawData(context.Background(), testCreds, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*calls) != 2 {
		t.Errorf("expected two pages, got %v", *calls)
	}
	data, _ := payload.Resource(ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS)
	var people []map[string]any
	if err := json.Unmarshal(data, &people); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(people) != 2 || people[1]["resourceName"] != "people/2" {
		t.Errorf("unexpected connections: %s", data)
	}

	t.Run("page limit", func(t *testing.T) {
		tests := []struct {
			name      string
			pages     int
			wantCalls int
			truncated bool
		}{
			{name: "last page within limit", pages: googleMaxPagesFetch, wantCalls: googleMaxPagesFetch, truncated: false},
			{name: "more pages than limit", pages: googleMaxPagesFetch + 3, wantCalls: googleMaxPagesFetch, truncated: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ts, calls := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
					"/v1/people/me/connections": func(w http.ResponseWriter, r *http.Request) {
						page := 1
						if token := r.URL.Query().Get("pageToken"); token != "" {
							fmt.Sscanf(token, "p%d", &page)
						}
						next := ""
						if page < tt.pages {
							next = fmt.Sprintf("p%d", page+1)
						}
						jsonHandler(fmt.Sprintf(`{"connections": [{"resourceName": "people/%d"}], "nextPageToken": %q}`, page, next))(w, r)
					},
				})

				var logs bytes.Buffer
				previous := slog.Default()
				slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
				t.Cleanup(func() { slog.SetDefault(previous) })

				g := &GoogleContacts{Config: APIConfig{RootURL: ts.URL}}
				payload, err := g.FetchRawData(context.Background(), testCreds, nil)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(*calls) != tt.wantCalls {
					t.Errorf("expected %d calls, got %d", tt.wantCalls, len(*calls))
				}
				var people []map[string]any
				if err := json.Unmarshal(payload.Resources[ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS], &people); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(people) != tt.wantCalls {
					t.Errorf("expected %d connections, got %d", tt.wantCalls, len(people))
				}
				if got := strings.Contains(logs.String(), "contact list truncated"); got != tt.truncated {
					t.Errorf("truncation warning logged: %v, want %v (logs: %s)", got, tt.truncated, logs.String())
				}
			})
		}
	})

	t.Run("no contacts", func(t *testing.T) {
		ts, _ := newTestServer(t, map[string]func(w http.ResponseWriter, r *http.Request){
			"/v1/people/me/connections": jsonHandler(`{"totalItems": 0}`),
		})
		g := &GoogleContacts{Config: APIConfig{RootURL: ts.URL}}
		payload, err := g.FetchRawData(context.Background(), testCreds, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(payload.Resources[ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS]) != "[]" {
			t.Errorf("unexpected connections: %s", payload.Resources[ddsTypes.RESOURCE_GOOGLE_CONTACTS_CONNECTIONS])
		}
	})
}

type fakeConnectedProviders struct {
	providers []string
	err       error
}

func (f fakeConnectedProviders) GetConnectedProviders(instanceID string, projectID string, respondentID string) ([]string, error) {
	return f.providers, f.err
}

func TestDDSFetch(t *testing.T) {
	d := &DDS{Source: fakeConnectedProviders{providers: []string{"github", "fitbit"}}}
	payload, err := d.FetchRawData(context.Background(), testCreds, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload.Resources[ddsTypes.RESOURCE_DDS_CONNECTED_PROVIDERS]) != `["github","fitbit"]` {
		t.Errorf("unexpected payload: %s", payload.Resources[ddsTypes.RESOURCE_DDS_CONNECTED_PROVIDERS])
	}

	d = &DDS{Source: fakeConnectedProviders{err: errors.New("db down")}}
	if _, err := d.FetchRawData(context.Background(), testCreds, nil); !ddsTypes.IsKind(err, ddsTypes.ERROR_KIND_PROVIDER_RESPONSE) {
		t.Errorf("expected response error, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&GitHub{}, &Fitbit{}, &DDS{})
	if names := r.Names(); strings.Join(names, ",") != "dds,fitbit,github" {
		t.Errorf("unexpected names: %v", names)
	}
	if _, err := r.Get("fitbit"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Get("myspace"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected unknown provider error, got %v", err)
	}

	t.Run("default registry", func(t *testing.T) {
		r := DefaultRegistry(map[string]APIConfig{ddsTypes.PROVIDER_GITHUB: {RootURL: "http://localhost"}}, nil)
		if names := r.Names(); strings.Join(names, ",") != "dds,fitbit,github,googlecontacts,instagram" {
			t.Errorf("unexpected names: %v", names)
		}
		p, err := r.Get(ddsTypes.PROVIDER_GITHUB)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.(*GitHub).Config.RootURL != "http://localhost" {
			t.Errorf("api config should be applied: %+v", p)
		}
	})
}
