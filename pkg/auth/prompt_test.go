package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browserOpen simulates the browser following the consent URL straight back to the callback.
func browserOpen(t *testing.T) func(string) error {
	return func(url string) error {
		resp, err := http.Get(url)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
}

func TestLoopbackPrompt_Authorize(t *testing.T) {
	ctx := context.Background()

	t.Run("should receive the authorization code", func(t *testing.T) {
		prompt := &LoopbackPrompt{ListenAddr: "127.0.0.1:0", Timeout: 5 * time.Second, Open: browserOpen(t)}

		code, redirectURL, err := prompt.Authorize(ctx, "state-1", func(redirect string) string {
			return redirect + "?code=abc&state=state-1"
		})

		require.NoError(t, err)
		assert.Equal(t, "abc", code)
		assert.Contains(t, redirectURL, "http://127.0.0.1:")
	})

	t.Run("should map access_denied to a cancellation", func(t *testing.T) {
		prompt := &LoopbackPrompt{Timeout: 5 * time.Second, Open: browserOpen(t)}

		_, _, err := prompt.Authorize(ctx, "state-2", func(redirect string) string {
			return redirect + "?error=access_denied&state=state-2"
		})

		assert.ErrorIs(t, err, ErrUserCancelled)
	})

	t.Run("should give up after the timeout", func(t *testing.T) {
		prompt := &LoopbackPrompt{Timeout: 50 * time.Millisecond, Open: func(string) error { return nil }}

		_, _, err := prompt.Authorize(ctx, "state-3", func(redirect string) string { return redirect })

		assert.ErrorIs(t, err, ErrUserCancelled)
	})

	t.Run("should stop waiting when the context is cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		prompt := &LoopbackPrompt{Timeout: time.Minute, Open: func(string) error {
			cancel()
			return nil
		}}

		_, _, err := prompt.Authorize(cancelled, "state-4", func(redirect string) string { return redirect })

		assert.ErrorIs(t, err, ErrUserCancelled)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCallbackHandler(t *testing.T) {
	t.Run("should reject a foreign state", func(t *testing.T) {
		results := make(chan callbackResult, 1)
		req := httptest.NewRequest(http.MethodGet, "/?code=abc&state=other", nil)
		rr := httptest.NewRecorder()

		callbackHandler("expected", results).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, results)
	})

	t.Run("should keep only the first outcome", func(t *testing.T) {
		results := make(chan callbackResult, 1)
		handler := callbackHandler("s", results)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?code=first&state=s", nil))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/?code=second&state=s", nil))

		result := <-results
		assert.Equal(t, "first", result.code)
	})

	t.Run("should escape the reported error", func(t *testing.T) {
		results := make(chan callbackResult, 1)
		req := httptest.NewRequest(http.MethodGet, "/?state=s&error=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
		rr := httptest.NewRecorder()

		callbackHandler("s", results).ServeHTTP(rr, req)

		assert.NotContains(t, rr.Body.String(), "<script>")
		assert.Contains(t, rr.Body.String(), "&lt;script&gt;")
		result := <-results
		assert.Error(t, result.err)
	})
}
