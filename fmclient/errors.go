// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package fmclient

import (
	"errors"
	"fmt"
)

// FileMaker error code reported when a Data API session token is missing,
// invalid, or expired.
const codeInvalidToken = "952"

// APIError is a non-2xx response from the Data API, carrying the FileMaker
// error code and message from the response envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("filemaker error %s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("filemaker request failed: HTTP %d", e.StatusCode)
}

// UnauthorizedError is the one failure class the session layer retries:
// the Data API rejected the session token or credentials.
type UnauthorizedError struct {
	Cause *APIError
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Cause.Error()
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Cause
}

// IsUnauthorized reports whether err is, or wraps, an authorization
// rejection from the Data API.
func IsUnauthorized(err error) bool {
	var unauthorized *UnauthorizedError
	return errors.As(err, &unauthorized)
}
