// Package qualtrics reads and replaces survey flows through the survey platform's REST API.
package qualtrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	ddsTypes "github.com/ddsurveys/dds-backend/pkg/dds/types"
	httpclient "github.com/ddsurveys/dds-backend/pkg/http-client"
)

const (
	apiTokenHeader  = "X-API-TOKEN"
	defaultTimeout  = 30 * time.Second
	surveyFlowPath  = "/survey-definitions/%s/flow"
	responseSnippet = 200
)

type Config struct {
	// BaseURL of the API, e.g. https://<datacenter>.qualtrics.com/API/v3
	BaseURL  string        `yaml:"base_url"`
	APIToken string        `yaml:"api_token"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Client struct {
	http httpclient.ClientConfig
}

func NewClient(conf Config) *Client {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: httpclient.ClientConfig{
			RootURL:      strings.TrimSuffix(conf.BaseURL, "/"),
			APIKey:       conf.APIToken,
			APIKeyHeader: apiTokenHeader,
			Timeout:      timeout,
		},
	}
}

func flowPath(surveyID string) string {
	return fmt.Sprintf(surveyFlowPath, url.PathEscape(surveyID))
}

// GetFlow returns the raw flow of a survey. Failures are FlowLookupErrors.
func (c *Client) GetFlow(ctx context.Context, surveyID string) ([]byte, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, flowPath(surveyID), nil, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ddsTypes.NewFlowLookupError("reading flow of survey "+surveyID, err)
	}
	if !resp.IsSuccess() {
		slog.Error("survey flow could not be read", slog.String("surveyID", surveyID), slog.Int("status", resp.StatusCode))
		return nil, ddsTypes.NewFlowLookupError(fmt.Sprintf("reading flow of survey %s: status %d: %s", surveyID, resp.StatusCode, snippet(resp.Body)), nil)
	}

	var body struct {
		Result json.RawMessage `json:"result"`
	}
	if err := resp.DecodeJSON(&body); err != nil || len(body.Result) == 0 || string(body.Result) == "null" {
		return nil, ddsTypes.NewFlowLookupError("survey "+surveyID+" returned no flow", err)
	}
	return body.Result, nil
}

// UpdateFlow replaces the whole flow of a survey. Failures are retryable FlowWriteErrors.
func (c *Client) UpdateFlow(ctx context.Context, surveyID string, flow []byte) error {
	if !json.Valid(flow) {
		return ddsTypes.NewFlowWriteError("flow of survey "+surveyID+" is not valid JSON", 0, nil)
	}
	resp, err := c.http.Do(ctx, http.MethodPut, flowPath(surveyID), nil, json.RawMessage(flow))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ddsTypes.NewFlowWriteError("writing flow of survey "+surveyID, 0, err)
	}
	if !resp.IsSuccess() {
		slog.Error("survey flow update rejected", slog.String("surveyID", surveyID), slog.Int("status", resp.StatusCode))
		return ddsTypes.NewFlowWriteError(fmt.Sprintf("writing flow of survey %s: %s", surveyID, snippet(resp.Body)), resp.StatusCode, nil)
	}
	return nil
}

func snippet(body []byte) string {
	if len(body) > responseSnippet {
		return string(body[:responseSnippet]) + "..."
	}
	return string(body)
}
