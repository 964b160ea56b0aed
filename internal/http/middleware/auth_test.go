// README: Tests for the auth, role and request id middleware.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workshop/internal/http/middleware"
	"workshop/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(zap.NewNop()), middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uid":  middleware.CallerUID(c),
			"id":   middleware.CallerID(c),
			"role": middleware.CallerRole(c),
		})
	})
	r.GET("/admin", middleware.RequireRole("ADMIN"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return r
}

func get(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "1"}})
	if w := get(r, "/test", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "1"}})
	if w := get(r, "/test", "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := get(r, "/test", "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_IDAndRolePopulated(t *testing.T) {
	token := &infra.FirebaseToken{
		UID:    "firebase-abc",
		Claims: map[string]interface{}{"user_id": float64(42), "role": "mechanic"},
	}
	r := newTestRouter(&stubVerifier{token: token})
	w := get(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`"uid":"firebase-abc"`, `"id":42`, `"role":"MECHANIC"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in body, got %s", want, body)
		}
	}
	if w.Header().Get(middleware.HeaderRequestID) == "" {
		t.Error("expected a generated request id header")
	}
}

func TestAuth_NumericUIDWithoutUserIDClaim(t *testing.T) {
	token := &infra.FirebaseToken{UID: "7", Claims: map[string]interface{}{}}
	r := newTestRouter(&stubVerifier{token: token})
	w := get(r, "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"id":7`) {
		t.Errorf("expected id 7 in body, got %s", w.Body.String())
	}
}

func TestAuth_FractionalUserIDClaim(t *testing.T) {
	for _, id := range []float64{1.5, -3, 0} {
		token := &infra.FirebaseToken{UID: "1", Claims: map[string]interface{}{"user_id": id, "role": "ADMIN"}}
		r := newTestRouter(&stubVerifier{token: token})
		if w := get(r, "/test", "Bearer validtoken"); w.Code != http.StatusUnauthorized {
			t.Errorf("user_id %v: expected 401, got %d", id, w.Code)
		}
	}
}

func TestAuth_NonNumericIdentity(t *testing.T) {
	token := &infra.FirebaseToken{UID: "passenger456", Claims: map[string]interface{}{}}
	r := newTestRouter(&stubVerifier{token: token})
	if w := get(r, "/test", "Bearer validtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_DevVerifier(t *testing.T) {
	r := newTestRouter(infra.NewDevVerifier())
	w := get(r, "/test", "Bearer 3:cashier")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"role":"CASHIER"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if w := get(r, "/test", "Bearer nocolon"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for malformed dev token, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	r := newTestRouter(infra.NewDevVerifier())
	if w := get(r, "/admin", "Bearer 1:admin"); w.Code != http.StatusNoContent {
		t.Errorf("admin: expected 204, got %d", w.Code)
	}
	if w := get(r, "/admin", "Bearer 2:mechanic"); w.Code != http.StatusForbidden {
		t.Errorf("mechanic: expected 403, got %d", w.Code)
	}
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(infra.NewDevVerifier())
	if w := get(r, "/panic", "Bearer 1:admin"); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
