package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Prompt runs the user-facing part of an authorization code flow. authURL
// builds the provider's consent URL for the redirect the prompt listens on.
type Prompt interface {
	Authorize(ctx context.Context, state string, authURL func(redirectURL string) string) (code string, redirectURL string, err error)
}

// LoopbackPrompt receives the authorization code on a short-lived local HTTP
// server. Open is called with the consent URL; when nil the URL is logged.
type LoopbackPrompt struct {
	ListenAddr string
	Timeout    time.Duration
	Open       func(url string) error
}

type callbackResult struct {
	code string
	err  error
}

func (p *LoopbackPrompt) Authorize(ctx context.Context, state string, authURL func(string) string) (string, string, error) {
	listener, err := p.listen()
	if err != nil {
		return "", "", err
	}

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/", port)

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:      callbackHandler(state, results),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(results, callbackResult{err: fmt.Errorf("callback server error: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	consentURL := authURL(redirectURL)
	if p.Open != nil {
		if err := p.Open(consentURL); err != nil {
			log.Warnf("Could not open the browser (%v), visit the URL manually", err)
			log.Infof("Sign in at: %s", consentURL)
		}
	} else {
		log.Infof("Sign in at: %s", consentURL)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-results:
		if result.err != nil {
			return "", "", result.err
		}
		return result.code, redirectURL, nil
	case <-timer.C:
		return "", "", fmt.Errorf("%w: no response within %s", ErrUserCancelled, timeout)
	case <-ctx.Done():
		return "", "", fmt.Errorf("%w: %w", ErrUserCancelled, ctx.Err())
	}
}

func (p *LoopbackPrompt) listen() (net.Listener, error) {
	addr := p.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, nil
	}
	log.Warnf("Could not listen on %s (%v), falling back to a random port", addr, err)
	listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	return listener, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "<html><body><h1>Invalid sign-in state</h1></body></html>")
			return
		}
		if errCode := query.Get("error"); errCode != "" {
			fmt.Fprintf(w, "<html><body><h1>Sign-in failed</h1><p>%s</p></body></html>", html.EscapeString(errCode))
			if errCode == "access_denied" {
				deliver(results, callbackResult{err: fmt.Errorf("%w: %s", ErrUserCancelled, query.Get("error_description"))})
			} else {
				deliver(results, callbackResult{err: fmt.Errorf("authorization error: %s: %s", errCode, query.Get("error_description"))})
			}
			return
		}
		code := query.Get("code")
		if code == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, "<html><body><h1>No authorization code received</h1></body></html>")
			return
		}
		fmt.Fprint(w, "<html><body><h1>Signed in</h1><p>You can close this window.</p></body></html>")
		deliver(results, callbackResult{code: code})
	})
}

// deliver keeps only the first outcome; later callbacks are dropped.
func deliver(results chan<- callbackResult, result callbackResult) {
	select {
	case results <- result:
	default:
	}
}
