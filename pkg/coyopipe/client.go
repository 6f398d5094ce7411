// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package coyopipe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is the Hugging Face datasets-server base URL.
// Override via Settings.Endpoint for mirrors or tests.
const DefaultEndpoint = "https://datasets-server.huggingface.co"

const userAgent = "coyopipe/1"

// getEndpoint returns the endpoint to use, falling back to default if empty.
func getEndpoint(endpoint string) string {
	if endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// buildHTTPClient creates an HTTP client with sensible defaults.
// Per-request deadlines come from request contexts, not the client.
func buildHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr}
}

// addAuth adds authentication and user-agent headers to a request.
func addAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", userAgent)
}

// sizeResponse is the /size answer; only the row count is used.
type sizeResponse struct {
	Size struct {
		Config struct {
			NumRows int64 `json:"num_rows"`
		} `json:"config"`
	} `json:"size"`
}

// rowsResponse is one /rows page.
type rowsResponse struct {
	Rows []struct {
		RowIdx int64           `json:"row_idx"`
		Row    json.RawMessage `json:"row"`
	} `json:"rows"`
}

// datasetSize fetches the total row count of a dataset split.
func datasetSize(ctx context.Context, httpc *http.Client, cfg Settings) (int64, error) {
	u := fmt.Sprintf("%s/size?dataset=%s&config=%s&split=%s",
		getEndpoint(cfg.Endpoint),
		url.QueryEscape(cfg.Dataset), url.QueryEscape(cfg.Config), url.QueryEscape(cfg.Split))

	var out sizeResponse
	if err := getJSON(ctx, httpc, cfg.Token, u, &out); err != nil {
		return 0, err
	}
	if out.Size.Config.NumRows <= 0 {
		return 0, fmt.Errorf("datasets-server reported no rows for %s", cfg.Dataset)
	}
	return out.Size.Config.NumRows, nil
}

// fetchRows fetches one page of rows starting at offset.
func fetchRows(ctx context.Context, httpc *http.Client, cfg Settings, offset, length int64) (*rowsResponse, error) {
	u := fmt.Sprintf("%s/rows?dataset=%s&config=%s&split=%s&offset=%d&length=%d",
		getEndpoint(cfg.Endpoint),
		url.QueryEscape(cfg.Dataset), url.QueryEscape(cfg.Config), url.QueryEscape(cfg.Split),
		offset, length)

	var out rowsResponse
	if err := getJSON(ctx, httpc, cfg.Token, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs a GET and decodes the JSON body into dst.
func getJSON(ctx context.Context, httpc *http.Client, token, urlStr string, dst any) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return err
	}
	addAuth(req, token)

	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, URL: urlStr}
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
