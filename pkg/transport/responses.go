package transport

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// Synthetic response bodies. These are fabricated by the interceptor rather
// than received from the network; status codes carry the failure signal so
// that callers never see a thrown error for an auth or validation failure.
const (
	bodyAuthRequired  = `{"error":"Authentication required"}`
	bodyRequestFailed = `{"error":"Request failed"}`
	bodyEmptyResult   = `{"value":[]}`
)

// syntheticResponse fabricates a *http.Response that is indistinguishable,
// structurally, from one produced by a real round trip.
func syntheticResponse(req *http.Request, status int, body string) *http.Response {
	resp := &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: int64(len(body)),
		Request:       req,
	}
	resp.Header.Set("Content-Type", "application/json")
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	return resp
}

// unauthorizedResponse is returned when a targeted request has no valid
// token available.
func unauthorizedResponse(req *http.Request) *http.Response {
	resp := syntheticResponse(req, http.StatusUnauthorized, bodyAuthRequired)
	resp.Header.Set("WWW-Authenticate", "Bearer")
	return resp
}

// internalErrorResponse is returned for validation failures and unexpected
// internal failures. The body is fixed; details go to the (sanitized) log,
// never to the caller.
func internalErrorResponse(req *http.Request) *http.Response {
	return syntheticResponse(req, http.StatusInternalServerError, bodyRequestFailed)
}

// mockResultResponse is the deterministic success returned for mock-token
// setups, keeping unit tests off the network.
func mockResultResponse(req *http.Request) *http.Response {
	resp := syntheticResponse(req, http.StatusOK, bodyEmptyResult)
	resp.Header.Set("OData-Version", ODataVersion)
	return resp
}
