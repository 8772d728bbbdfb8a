// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

// Package fmclient is a typed HTTP wrapper over the FileMaker Server Data
// API. It owns no session state: callers supply a connection profile and,
// where the endpoint needs one, a session token. Authorization rejections
// (HTTP 401 or FileMaker error 952) surface as UnauthorizedError so the
// session layer can re-authenticate and replay.
package fmclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
)

const (
	// DefaultTimeout is the default Data API request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseSize caps response bodies at 20MB.
	DefaultMaxResponseSize = 20 * 1024 * 1024

	userAgent = "fm-dapi-gateway/1.0"
)

// Options configures a Client.
type Options struct {
	Timeout         time.Duration
	MaxResponseSize int64

	// TLSSkipVerify disables certificate verification for servers with
	// self-signed certificates. Off by default.
	TLSSkipVerify bool
}

// Client talks to one or more FileMaker Servers. It is safe for concurrent
// use; all per-database state lives in the profile passed to each call.
type Client struct {
	httpClient      *http.Client
	logger          *log.Logger
	maxResponseSize int64
}

// New creates a Data API client with pooled connections and TLS 1.2+.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	maxSize := opts.MaxResponseSize
	if maxSize <= 0 {
		maxSize = DefaultMaxResponseSize
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.TLSSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		TLSClientConfig: tlsConfig,
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:          log.New(os.Stderr, "[FM_CLIENT] ", log.LstdFlags),
		maxResponseSize: maxSize,
	}

	if opts.TLSSkipVerify {
		c.logger.Printf("WARNING: TLS certificate verification disabled")
	}

	return c
}

// serverURL returns the API root for a profile:
// https://{server}/fmi/data/{version}. A profile server without a scheme
// defaults to https.
func serverURL(p connections.Profile) string {
	server := strings.TrimSuffix(p.Server, "/")
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	return server + "/fmi/data/" + p.APIVersion()
}

// databaseURL returns the API root scoped to the profile's database.
func databaseURL(p connections.Profile) string {
	return serverURL(p) + "/databases/" + url.PathEscape(p.Database)
}

// Login opens a Data API session and returns its token. Sessions idle out
// after 15 minutes on the server side.
func (c *Client) Login(ctx context.Context, p connections.Profile) (string, error) {
	endpoint := databaseURL(p) + "/sessions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}
	req.SetBasicAuth(p.User, p.Password)
	req.Header.Set("Content-Type", "application/json")

	body, _, err := c.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}

	c.logger.Printf("Opened session for %s/%s as %s", p.Server, p.Database, p.User)
	return resp.Token, nil
}

// Logout closes a Data API session on the server.
func (c *Client) Logout(ctx context.Context, p connections.Profile, token string) error {
	endpoint := databaseURL(p) + "/sessions/" + url.PathEscape(token)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create logout request: %w", err)
	}

	if _, _, err := c.do(req); err != nil {
		return err
	}

	c.logger.Printf("Closed session for %s/%s", p.Server, p.Database)
	return nil
}

// ListDatabases returns the databases the profile's credentials can see.
// This endpoint authenticates with Basic credentials, not a session token.
func (c *Client) ListDatabases(ctx context.Context, p connections.Profile) ([]string, error) {
	endpoint := serverURL(p) + "/databases"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(p.User, p.Password)

	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Databases []struct {
			Name string `json:"name"`
		} `json:"databases"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse databases response: %w", err)
	}

	names := make([]string, 0, len(resp.Databases))
	for _, db := range resp.Databases {
		names = append(names, db.Name)
	}
	return names, nil
}

// ProductInfo returns server product metadata. No authentication required.
func (c *Client) ProductInfo(ctx context.Context, p connections.Profile) (*ProductInfo, error) {
	endpoint := serverURL(p) + "/productInfo"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ProductInfo ProductInfo `json:"productInfo"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse product info: %w", err)
	}
	return &resp.ProductInfo, nil
}

// ListLayouts returns the database's layout tree.
func (c *Client) ListLayouts(ctx context.Context, p connections.Profile, token string) ([]LayoutName, error) {
	body, err := c.get(ctx, token, databaseURL(p)+"/layouts")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Layouts []LayoutName `json:"layouts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse layouts response: %w", err)
	}
	return resp.Layouts, nil
}

// ListScripts returns the database's script tree.
func (c *Client) ListScripts(ctx context.Context, p connections.Profile, token string) ([]ScriptName, error) {
	body, err := c.get(ctx, token, databaseURL(p)+"/scripts")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Scripts []ScriptName `json:"scripts"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse scripts response: %w", err)
	}
	return resp.Scripts, nil
}

// LayoutMetadata returns field and portal metadata for a layout.
func (c *Client) LayoutMetadata(ctx context.Context, p connections.Profile, token, layout string) (*LayoutMetadata, error) {
	body, err := c.get(ctx, token, databaseURL(p)+"/layouts/"+url.PathEscape(layout))
	if err != nil {
		return nil, err
	}

	var meta LayoutMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse layout metadata: %w", err)
	}
	return &meta, nil
}

// GetRecords returns a page of records from a layout.
func (c *Client) GetRecords(ctx context.Context, p connections.Profile, token, layout string, opts ListOptions) (*RecordSet, error) {
	endpoint, err := url.Parse(databaseURL(p) + "/layouts/" + url.PathEscape(layout) + "/records")
	if err != nil {
		return nil, fmt.Errorf("invalid layout name: %w", err)
	}

	params := url.Values{}
	if opts.Offset > 0 {
		params.Set("_offset", strconv.Itoa(opts.Offset))
	}
	if opts.Limit > 0 {
		params.Set("_limit", strconv.Itoa(opts.Limit))
	}
	if opts.SortField != "" {
		order := opts.SortOrder
		if order == "" {
			order = "ascend"
		}
		sort, err := json.Marshal([]SortSpec{{FieldName: opts.SortField, SortOrder: order}})
		if err != nil {
			return nil, fmt.Errorf("failed to encode sort: %w", err)
		}
		params.Set("_sort", string(sort))
	}
	endpoint.RawQuery = params.Encode()

	body, err := c.get(ctx, token, endpoint.String())
	if err != nil {
		return nil, err
	}

	var set RecordSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse records response: %w", err)
	}
	return &set, nil
}

// GetRecord returns a single record by its internal record ID.
func (c *Client) GetRecord(ctx context.Context, p connections.Profile, token, layout, recordID string) (*RecordSet, error) {
	body, err := c.get(ctx, token, recordURL(p, layout, recordID))
	if err != nil {
		return nil, err
	}

	var set RecordSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse record response: %w", err)
	}
	return &set, nil
}

// CreateRecord creates a record and returns its record ID.
func (c *Client) CreateRecord(ctx context.Context, p connections.Profile, token, layout string, fieldData map[string]any) (string, error) {
	payload := map[string]any{"fieldData": fieldData}
	body, err := c.send(ctx, token, http.MethodPost,
		databaseURL(p)+"/layouts/"+url.PathEscape(layout)+"/records", payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		RecordID string `json:"recordId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse create response: %w", err)
	}
	return resp.RecordID, nil
}

// EditRecord replaces fields on a record and returns the new modification ID.
func (c *Client) EditRecord(ctx context.Context, p connections.Profile, token, layout, recordID string, fieldData map[string]any) (string, error) {
	payload := map[string]any{"fieldData": fieldData}
	body, err := c.send(ctx, token, http.MethodPatch, recordURL(p, layout, recordID), payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		ModID string `json:"modId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse edit response: %w", err)
	}
	return resp.ModID, nil
}

// DeleteRecord deletes a record by its internal record ID.
func (c *Client) DeleteRecord(ctx context.Context, p connections.Profile, token, layout, recordID string) error {
	_, err := c.send(ctx, token, http.MethodDelete, recordURL(p, layout, recordID), nil)
	return err
}

// DuplicateRecord duplicates a record and returns the new record's ID.
func (c *Client) DuplicateRecord(ctx context.Context, p connections.Profile, token, layout, recordID string) (string, error) {
	body, err := c.send(ctx, token, http.MethodPost, recordURL(p, layout, recordID), nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		RecordID string `json:"recordId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse duplicate response: %w", err)
	}
	return resp.RecordID, nil
}

// Find runs a find request against a layout. FileMaker reports an empty
// found set as error 401 ("no records match") with HTTP 404; that surfaces
// here as an APIError for the caller to interpret.
func (c *Client) Find(ctx context.Context, p connections.Profile, token, layout string, find FindRequest) (*RecordSet, error) {
	body, err := c.send(ctx, token, http.MethodPost,
		databaseURL(p)+"/layouts/"+url.PathEscape(layout)+"/_find", find)
	if err != nil {
		return nil, err
	}

	var set RecordSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse find response: %w", err)
	}
	return &set, nil
}

// RunScript executes a script in the context of a layout.
func (c *Client) RunScript(ctx context.Context, p connections.Profile, token, layout, script, param string) (*ScriptResult, error) {
	endpoint, err := url.Parse(databaseURL(p) + "/layouts/" + url.PathEscape(layout) +
		"/script/" + url.PathEscape(script))
	if err != nil {
		return nil, fmt.Errorf("invalid script name: %w", err)
	}
	if param != "" {
		params := url.Values{}
		params.Set("script.param", param)
		endpoint.RawQuery = params.Encode()
	}

	body, err := c.get(ctx, token, endpoint.String())
	if err != nil {
		return nil, err
	}

	var result ScriptResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse script response: %w", err)
	}
	return &result, nil
}

// SetGlobals sets global field values for the session. Keys must be fully
// qualified ("table::field").
func (c *Client) SetGlobals(ctx context.Context, p connections.Profile, token string, globals map[string]string) error {
	payload := map[string]any{"globalFields": globals}
	_, err := c.send(ctx, token, http.MethodPatch, databaseURL(p)+"/globals", payload)
	return err
}

func recordURL(p connections.Profile, layout, recordID string) string {
	return databaseURL(p) + "/layouts/" + url.PathEscape(layout) + "/records/" + url.PathEscape(recordID)
}

// get performs a token-authenticated GET.
func (c *Client) get(ctx context.Context, token, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, _, err := c.do(req)
	return body, err
}

// send performs a token-authenticated request with an optional JSON body.
func (c *Client) send(ctx context.Context, token, method, endpoint string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, _, err := c.do(req)
	return body, err
}

// do executes a request, enforces the response size limit, unwraps the Data
// API envelope, and classifies failures. It returns the raw `response`
// payload for the caller to decode.
func (c *Client) do(req *http.Request) ([]byte, []Message, error) {
	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-Id", requestID)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("filemaker request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(raw)) > c.maxResponseSize {
		return nil, nil, fmt.Errorf("response size exceeds limit of %d bytes", c.maxResponseSize)
	}

	c.logger.Printf("%s %s: status=%d, %v (request %s)",
		req.Method, req.URL.Path, resp.StatusCode, time.Since(start), requestID)

	var env envelope
	code, message := "", ""
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Messages) > 0 {
		code = env.Messages[0].Code
		message = env.Messages[0].Message
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: code, Message: message}
		if resp.StatusCode == http.StatusUnauthorized || code == codeInvalidToken {
			return nil, nil, &UnauthorizedError{Cause: apiErr}
		}
		return nil, nil, apiErr
	}

	// A 2xx with a non-zero FileMaker code is still a failure.
	if code != "" && code != "0" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: code, Message: message}
		if code == codeInvalidToken {
			return nil, nil, &UnauthorizedError{Cause: apiErr}
		}
		return nil, nil, apiErr
	}

	return env.Response, env.Messages, nil
}
