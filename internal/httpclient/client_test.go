package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]string{"echo": in["value"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := PostJSON(context.Background(), NewDefaultHTTPClient(time.Second), srv.URL, map[string]string{"value": "x"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "x", out["echo"])
}

func TestPostJSON_StatusError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"error field", `{"error": "Prompt is required"}`, "Prompt is required"},
		{"no error field", `oops`, "API request failed with status 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := PostJSON(context.Background(), NewDefaultHTTPClient(time.Second), srv.URL, struct{}{}, nil)
			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
			assert.Equal(t, tt.message, statusErr.Message)
		})
	}
}
