package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/soundprint-app/soundprint/internal/shared"
)

func TestOAuthHandler(t *testing.T) {
	newServer := func(t *testing.T, state string) (*OAuthHandler, *httptest.Server) {
		t.Helper()

		handler := NewOAuthHandler(state)
		router := NewBasicRouter()
		router.Use(RequestLogger(shared.NewLogger(io.Discard)))
		router.Handler(handler)

		server := httptest.NewServer(router)
		t.Cleanup(server.Close)
		return handler, server
	}

	callback := func(t *testing.T, server *httptest.Server, params url.Values) *http.Response {
		t.Helper()

		resp, err := http.Get(server.URL + "/callback?" + params.Encode())
		if err != nil {
			t.Fatalf("callback request failed: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	t.Run("Delivers The Authorization Code", func(t *testing.T) {
		handler, server := newServer(t, "state-1")

		resp := callback(t, server, url.Values{"state": {"state-1"}, "code": {"auth-code"}})
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		result := <-handler.Result()
		if err := result.Error(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Code != "auth-code" {
			t.Errorf("expected code auth-code, got %s", result.Code)
		}
	})

	t.Run("Rejects A State Mismatch", func(t *testing.T) {
		handler, server := newServer(t, "state-1")

		resp := callback(t, server, url.Values{"state": {"forged"}, "code": {"auth-code"}})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}

		result := <-handler.Result()
		if result.Error() == nil {
			t.Error("expected an error for a forged state")
		}
	})

	t.Run("Surfaces The Provider Error", func(t *testing.T) {
		handler, server := newServer(t, "state-1")

		resp := callback(t, server, url.Values{
			"state": {"state-1"}, "error": {"access_denied"}, "error_description": {"User declined"},
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}

		result := <-handler.Result()
		if result.Error() == nil {
			t.Error("expected an error when authorization is denied")
		}
	})

	t.Run("Processes Only The First Callback", func(t *testing.T) {
		handler, server := newServer(t, "state-1")

		first := callback(t, server, url.Values{"state": {"state-1"}, "code": {"code-1"}})
		if first.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on the first callback, got %d", first.StatusCode)
		}

		second := callback(t, server, url.Values{"state": {"state-1"}, "code": {"code-2"}})
		if second.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 on a replayed callback, got %d", second.StatusCode)
		}

		result := <-handler.Result()
		if result.Code != "code-1" {
			t.Errorf("expected the first code to win, got %s", result.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	t.Run("Wait Honors The Context", func(t *testing.T) {
		server := NewCallbackServer("127.0.0.1:0", "state-1", shared.NewLogger(io.Discard))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if _, err := server.Wait(ctx); err != context.DeadlineExceeded {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
