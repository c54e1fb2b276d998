package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ddsurveys/dds-backend/pkg/apihelpers"
)

const maxResponseBodySize = 32 << 20

type ClientConfig struct {
	RootURL string
	// APIKey is sent in APIKeyHeader ("Api-Key" if empty).
	APIKey               string
	APIKeyHeader         string
	BearerToken          string
	MTLSCertificatePaths *apihelpers.CertificatePaths
	Timeout              time.Duration
	// Client, if set, is used as is (mTLS and Timeout are ignored).
	Client *http.Client
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DecodeJSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// Do runs one request against RootURL + pathname. A non-nil payload is sent as JSON. Non 2xx
// responses are returned without error; transport failures are returned as error.
func (cConfig ClientConfig) Do(ctx context.Context, method string, pathname string, query url.Values, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonData)
	}

	client, err := cConfig.httpClient()
	if err != nil {
		slog.Error("Error creating transport with mTLS config", slog.String("error", err.Error()))
		return nil, err
	}

	reqURL := cConfig.RootURL + pathname
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		slog.Error("unexpected error in preparing http request", slog.String("error", err.Error()))
		return nil, err
	}
	if cConfig.APIKey != "" {
		header := cConfig.APIKeyHeader
		if header == "" {
			header = "Api-Key"
		}
		req.Header.Set(header, cConfig.APIKey)
	}
	if cConfig.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+cConfig.BearerToken)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Debug("http call failed", slog.String("url", cConfig.RootURL+pathname), slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		slog.Error("Error reading response", slog.String("error", err.Error()))
		return nil, err
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (cConfig ClientConfig) httpClient() (*http.Client, error) {
	if cConfig.Client != nil {
		return cConfig.Client, nil
	}
	transport, err := getTransportWithMTLSConfig(cConfig.MTLSCertificatePaths)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Timeout: cConfig.Timeout,
	}
	if transport != nil {
		client.Transport = transport
	}
	return client, nil
}

func getTransportWithMTLSConfig(mTLSCertificatePaths *apihelpers.CertificatePaths) (*http.Transport, error) {
	if mTLSCertificatePaths == nil {
		return nil, nil
	}

	tlsConfig, err := apihelpers.LoadClientTLSConfig(*mTLSCertificatePaths)
	if err != nil {
		return nil, err
	}

	return &http.Transport{
		TLSClientConfig: tlsConfig,
	}, nil
}
