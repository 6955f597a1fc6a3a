package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	valid map[string]string
	err   error
}

func (f *fakeVerifier) VerifyWorkerCredential(ctx context.Context, username, password string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	want, ok := f.valid[username]
	return ok && want == password, nil
}

func handlerEchoingWorkerName() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(WorkerName(r.Context())))
	})
}

func TestRequireWorkerCredentialRejectsMissingAuth(t *testing.T) {
	mw := RequireWorkerCredential(&fakeVerifier{valid: map[string]string{"worker1": "secret"}})
	req := httptest.NewRequest(http.MethodPost, "/active-runs", nil)
	rec := httptest.NewRecorder()

	mw(handlerEchoingWorkerName()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestRequireWorkerCredentialRejectsBadPassword(t *testing.T) {
	mw := RequireWorkerCredential(&fakeVerifier{valid: map[string]string{"worker1": "secret"}})
	req := httptest.NewRequest(http.MethodPost, "/active-runs", nil)
	req.SetBasicAuth("worker1", "wrong")
	rec := httptest.NewRecorder()

	mw(handlerEchoingWorkerName()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireWorkerCredentialAllowsValidAuthAndSetsWorkerName(t *testing.T) {
	mw := RequireWorkerCredential(&fakeVerifier{valid: map[string]string{"worker1": "secret"}})
	req := httptest.NewRequest(http.MethodPost, "/active-runs", nil)
	req.SetBasicAuth("worker1", "secret")
	rec := httptest.NewRecorder()

	mw(handlerEchoingWorkerName()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "worker1", rec.Body.String())
}

func TestRequireWorkerCredentialSurfacesVerifierErrorAs500(t *testing.T) {
	mw := RequireWorkerCredential(&fakeVerifier{err: assertError("db down")})
	req := httptest.NewRequest(http.MethodPost, "/active-runs", nil)
	req.SetBasicAuth("worker1", "secret")
	rec := httptest.NewRecorder()

	mw(handlerEchoingWorkerName()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type assertError string

func (e assertError) Error() string { return string(e) }
