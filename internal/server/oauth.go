package server

import (
	"fmt"
	"net/http"
	"sync"
)

// CallbackResult is the outcome of one authorization redirect: either the
// one-time authorization code or the provider's error.
type CallbackResult struct {
	Code string
	err  error
}

func (r CallbackResult) Error() error {
	return r.err
}

// OAuthHandler captures the authorization-code redirect of the OAuth flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	state       string
	resultChan  chan CallbackResult
	once        sync.Once
	mu          sync.Mutex
	callbackHit bool
}

// NewOAuthHandler creates an OAuthHandler expecting the given state token.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(state string) *OAuthHandler {
	return &OAuthHandler{
		state:      state,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the authorization redirect. The state parameter is
// validated and the code forwarded through the result channel; only the
// first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	if state := r.URL.Query().Get("state"); state != h.state {
		h.send(CallbackResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.send(CallbackResult{err: fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.send(CallbackResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// send delivers the result exactly once and closes the channel.
func (h *OAuthHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel carrying the single callback outcome.
func (h *OAuthHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Account Connected</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center;
               height: 100vh; margin: 0; background: #f5f5f5; }
        .card { text-align: center; background: white; padding: 2rem;
                border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>&#10003; Account Connected</h1>
        <p>Your listening history will sync shortly. You can close this window.</p>
    </div>
</body>
</html>
`
