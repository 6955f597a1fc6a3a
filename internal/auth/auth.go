// Package auth wraps the runner's worker-facing HTTP handlers with Basic
// Auth, checked against store.VerifyWorkerCredential.
package auth

import (
	"context"
	"net/http"

	"github.com/janitor-project/janitord/internal/store"
)

// workerNameKey is the context key the middleware stores the
// authenticated worker's username under.
type workerNameKey struct{}

// Verifier is the subset of *store.Store the middleware needs.
type Verifier interface {
	VerifyWorkerCredential(ctx context.Context, username, password string) (bool, error)
}

var _ Verifier = (*store.Store)(nil)

// RequireWorkerCredential returns middleware that rejects any request
// lacking valid Basic Auth worker credentials, and otherwise stores the
// authenticated worker name in the request context for handlers to read
// via WorkerName.
func RequireWorkerCredential(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				challenge(w)
				return
			}
			valid, err := verifier.VerifyWorkerCredential(r.Context(), username, password)
			if err != nil {
				http.Error(w, "verifying credential", http.StatusInternalServerError)
				return
			}
			if !valid {
				challenge(w)
				return
			}
			ctx := context.WithValue(r.Context(), workerNameKey{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="janitor-worker"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// WorkerName returns the worker name authenticated by
// RequireWorkerCredential for this request, or "" if the request was not
// authenticated through that middleware.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerNameKey{}).(string)
	return name
}
