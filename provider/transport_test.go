package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransportDo(t *testing.T) {
	t.Run("posts json with bearer auth", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
			assert.Equal(t, "custom", r.Header.Get("X-Extra"))
			w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		tr := NewHTTPTransport("test", srv.URL, "sk-test", time.Minute)
		tr.Headers = map[string]string{"X-Extra": "custom"}

		raw, err := tr.Do(context.Background(), []byte(`{"model":"m"}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(raw))
	})

	t.Run("non-2xx status becomes transport error with payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key"}}`))
		}))
		defer srv.Close()

		tr := NewHTTPTransport("test", srv.URL, "", time.Minute)
		_, err := tr.Do(context.Background(), []byte(`{}`))

		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusUnauthorized, terr.StatusCode)
		assert.Contains(t, string(terr.Payload), "bad key")
	})
}

func TestHTTPTransportStream(t *testing.T) {
	t.Run("decodes data lines and swallows DONE", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "text/event-stream")
			w.Write([]byte("event: message\n"))
			w.Write([]byte("data: {\"n\":1}\n\n"))
			w.Write([]byte(": keepalive comment\n"))
			w.Write([]byte("data: {\"n\":2}\n\n"))
			w.Write([]byte("data: [DONE]\n\n"))
		}))
		defer srv.Close()

		tr := NewHTTPTransport("test", srv.URL, "", time.Minute)
		var events []string
		err := tr.Stream(context.Background(), []byte(`{}`), func(ev json.RawMessage) error {
			events = append(events, string(ev))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, events)
	})

	t.Run("handler error aborts the stream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("data: {\"n\":1}\n\ndata: {\"n\":2}\n\n"))
		}))
		defer srv.Close()

		tr := NewHTTPTransport("test", srv.URL, "", time.Minute)
		seen := 0
		err := tr.Stream(context.Background(), []byte(`{}`), func(ev json.RawMessage) error {
			seen++
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, 1, seen)
	})

	t.Run("non-2xx status fails before events", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		tr := NewHTTPTransport("test", srv.URL, "", time.Minute)
		err := tr.Stream(context.Background(), []byte(`{}`), func(json.RawMessage) error {
			t.Fatal("no event expected")
			return nil
		})
		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusTooManyRequests, terr.StatusCode)
	})
}
