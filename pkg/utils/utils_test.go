package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Origin string `json:"origin"`
}

type echoResponse struct {
	Signature string `json:"signature"`
}

func TestMakeJSONRequest(t *testing.T) {
	tests := []struct {
		name             string
		serverStatusCode int
		serverBody       string
		expectedError    bool
		errorContains    string
		expectHTTPError  bool
	}{
		{
			name:             "success",
			serverStatusCode: http.StatusOK,
			serverBody:       `{"signature":"0x01"}`,
		},
		{
			name:             "server error with json body",
			serverStatusCode: http.StatusInternalServerError,
			serverBody:       `{"error":"internal","message":"node down"}`,
			expectedError:    true,
			errorContains:    "HTTP 500: internal - node down",
			expectHTTPError:  true,
		},
		{
			name:             "bad request with text body",
			serverStatusCode: http.StatusBadRequest,
			serverBody:       "nope",
			expectedError:    true,
			errorContains:    "nope",
			expectHTTPError:  true,
		},
		{
			name:             "malformed response",
			serverStatusCode: http.StatusOK,
			serverBody:       "{",
			expectedError:    true,
			errorContains:    "failed to decode sponsor response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req echoRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "0xabc", req.Origin)

				w.WriteHeader(tt.serverStatusCode)
				_, _ = w.Write([]byte(tt.serverBody))
			}))
			defer server.Close()

			resp, err := MakeJSONRequest[echoResponse](context.Background(), server.Client(), http.MethodPost, server.URL, echoRequest{Origin: "0xabc"}, "sponsor")
			if tt.expectedError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				var httpErr *HTTPError
				assert.Equal(t, tt.expectHTTPError, errors.As(err, &httpErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0x01", resp.Signature)
		})
	}
}

func TestMakeJSONRequest_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := MakeJSONRequest[echoResponse](ctx, server.Client(), http.MethodGet, server.URL, nil, "rates")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCreateHTTPClientWithTimeouts_NoRedirects(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirect must not be followed")
	}))
	defer target.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer server.Close()

	resp, err := CreateHTTPClientWithTimeouts().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestDecodeSignature(t *testing.T) {
	valid := "0x" + strings.Repeat("ab", 65)
	tests := []struct {
		name    string
		sig     string
		wantErr string
	}{
		{name: "valid", sig: valid},
		{name: "empty", sig: "", wantErr: "empty signature"},
		{name: "no prefix", sig: strings.Repeat("ab", 65), wantErr: "invalid signature encoding"},
		{name: "short", sig: "0xabcd", wantErr: "length mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeSignature(tt.sig, 65)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, out, 65)
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://d.io/api/v1/rates", JoinURL("https://d.io/", "/api/v1/rates"))
	assert.Equal(t, "https://d.io/api/v1/rates", JoinURL("https://d.io", "api/v1/rates"))
}

func TestLowerAddress(t *testing.T) {
	addr := common.HexToAddress("0x5EF79995FE8A89E0812330E4378EB2660CEDE699")
	assert.Equal(t, "0x5ef79995fe8a89e0812330e4378eb2660cede699", LowerAddress(addr))
}
