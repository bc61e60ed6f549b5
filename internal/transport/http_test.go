package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type testCodedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *testCodedError) Error() string        { return e.Code }
func (e *testCodedError) CodeValue() string    { return e.Code }
func (e *testCodedError) MessageValue() string { return e.Message }

type testHandler struct {
	method string
	caller common.Address
	err    error
}

func (h *testHandler) Handle(_ context.Context, caller common.Address, method string, params json.RawMessage) (any, error) {
	h.method = method
	h.caller = caller
	if h.err != nil {
		return nil, h.err
	}
	return map[string]string{"method": method}, nil
}

func postRPC(t *testing.T, url, body, authorization string) Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/rpc", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHTTPServer_RPC(t *testing.T) {
	handler := &testHandler{}
	resolver := &testResolver{tokens: map[string]testGrant{"token": {testAlice, "claim"}}}
	server := httptest.NewServer(NewServer(handler, Options{Auth: IdentityMiddleware(resolver)}))
	t.Cleanup(server.Close)

	resp := postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"claim","params":{"mint":"0x01"},"id":1}`, "Signature token")
	require.Nil(t, resp.Error)
	require.Equal(t, "claim", handler.method)
	require.Equal(t, testAlice, handler.caller)

	resp = postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"get_schedule","id":2}`, "")
	require.Nil(t, resp.Error)
	require.Equal(t, common.Address{}, handler.caller)
}

func TestHTTPServer_Errors(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(handler, Options{}))
	t.Cleanup(server.Close)

	resp := postRPC(t, server.URL, `{not json`, "")
	require.Equal(t, ErrParseCode, resp.Error.Code)

	resp = postRPC(t, server.URL, `{"jsonrpc":"1.0","method":"x","id":1}`, "")
	require.Equal(t, ErrInvalidReq, resp.Error.Code)

	handler.err = &testCodedError{Code: "VestingNotStarted", Message: "vesting period has not started yet"}
	resp = postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"claim","id":3}`, "")
	require.Equal(t, ErrDomain, resp.Error.Code)
	require.Equal(t, "vesting period has not started yet", resp.Error.Message)
	data, ok := resp.Error.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "VestingNotStarted", data["code"])

	handler.err = &testCodedError{Code: "METHOD_NOT_FOUND", Message: "unknown method"}
	resp = postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"nope","id":4}`, "")
	require.Equal(t, ErrMethodNotFound, resp.Error.Code)

	handler.err = errors.New("disk on fire")
	resp = postRPC(t, server.URL, `{"jsonrpc":"2.0","method":"claim","id":5}`, "")
	require.Equal(t, ErrInternal, resp.Error.Code)
	require.NotContains(t, resp.Error.Message, "disk")
}

func TestHTTPServer_RejectsBadToken(t *testing.T) {
	resolver := &testResolver{tokens: map[string]testGrant{"token": {testAlice, "get_schedule"}}}
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(handler, Options{Auth: IdentityMiddleware(resolver)}))
	t.Cleanup(server.Close)

	for _, tc := range []struct{ header, method string }{
		{"Signature forged", "claim"},
		{"Signature token", "withdraw_unclaimed"},
	} {
		body := `{"jsonrpc":"2.0","method":"` + tc.method + `","id":1}`
		req, err := http.NewRequest(http.MethodPost, server.URL+"/rpc", bytes.NewBufferString(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", tc.header)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, tc.method)
	}
	require.Empty(t, handler.method)
}

func TestHTTPServer_Health(t *testing.T) {
	server := httptest.NewServer(NewServer(&testHandler{}, Options{}))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
