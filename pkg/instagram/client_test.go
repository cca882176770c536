package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagsync/pkg/auth"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/logger"
	"tagsync/pkg/ratelimit"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(ClientOptions{Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	assert.Equal(t, BaseURL, c.BaseURL())
	assert.False(t, c.HasSession())

	_, err = NewClient(ClientOptions{BaseURL: "not a url", Logger: logger.NewNopLogger()})
	assert.Equal(t, errs.ErrorTypeConfig, errs.TypeOf(err))
}

func TestClientStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType errs.ErrorType
		wantCode int
	}{
		{name: "ok", status: http.StatusOK, body: `{"status":"ok"}`},
		{name: "unauthorized", status: http.StatusUnauthorized, wantType: errs.ErrorTypeSessionExpired},
		{name: "forbidden", status: http.StatusForbidden, wantType: errs.ErrorTypeSessionExpired},
		{name: "rate limited", status: http.StatusTooManyRequests, wantType: errs.ErrorTypeNetwork},
		{name: "server error", status: http.StatusBadGateway, wantType: errs.ErrorTypeNetwork},
		{name: "not found", status: http.StatusNotFound, wantCode: http.StatusNotFound},
		{name: "login required body", status: http.StatusOK, body: `{"message":"login_required","status":"fail"}`, wantType: errs.ErrorTypeSessionExpired},
		{name: "failed status body", status: http.StatusOK, body: `{"message":"please wait","status":"fail"}`, wantType: errs.ErrorTypeNetwork},
		{name: "malformed body", status: http.StatusOK, body: `<html>`, wantType: errs.ErrorTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, err := NewClient(ClientOptions{BaseURL: server.URL, Logger: logger.NewNopLogger()})
			require.NoError(t, err)

			var out map[string]interface{}
			err = c.getJSON(context.Background(), "/api/", nil, &out)
			switch {
			case tt.wantCode != 0:
				var status *StatusError
				require.ErrorAs(t, err, &status)
				assert.Equal(t, tt.wantCode, status.Code)
			case tt.wantType != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantType, errs.TypeOf(err))
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestClientSendsSession(t *testing.T) {
	var gotCookie, gotCSRF, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(auth.SessionCookie); err == nil {
			gotCookie = c.Value
		}
		gotCSRF = r.Header.Get("X-CSRFToken")
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c, err := NewClient(ClientOptions{BaseURL: server.URL, Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	c.SetSession(&auth.SessionState{Username: "ops", SessionID: "sid-1", CSRFToken: "tok", UserAgent: "Agent/2"})
	assert.True(t, c.HasSession())

	var out map[string]interface{}
	require.NoError(t, c.getJSON(context.Background(), "/api/", nil, &out))
	assert.Equal(t, "sid-1", gotCookie)
	assert.Equal(t, "tok", gotCSRF)
	assert.Equal(t, "Agent/2", gotAgent)
}

func TestClientLogsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	c, err := NewClient(ClientOptions{BaseURL: server.URL, Logger: log})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, c.getJSON(context.Background(), "/ok/", nil, &out))
	msg, ok := log.Find("HTTP request completed")
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, msg.Fields["status_code"])
	assert.Equal(t, "instagram", msg.Fields["component"])

	_ = c.getJSON(context.Background(), "/missing/", nil, &out)
	assert.True(t, log.HasMessage("HTTP request failed"))
}

func TestClientHonoursLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	c, err := NewClient(ClientOptions{
		BaseURL: server.URL,
		Limiter: ratelimit.NewTokenBucket(1, time.Hour),
		Logger:  logger.NewNopLogger(),
	})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, c.getJSON(context.Background(), "/a/", nil, &out))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.getJSON(ctx, "/b/", nil, &out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
