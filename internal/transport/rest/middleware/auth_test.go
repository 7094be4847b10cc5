package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"livepoll/internal/model"
	"livepoll/internal/service"
)

func TestRequireTeacher(t *testing.T) {
	authSvc := service.NewAuthService("secret", "hunter2")
	mw := NewAuthMiddleware(authSvc)

	var seenRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRole = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := mw.RequireTeacher(next)

	resp, err := authSvc.Login("hunter2")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + resp.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seenRole = ""
			req := httptest.NewRequest("GET", "/v1/polls/p1", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && seenRole != model.RoleTeacher {
				t.Fatalf("role in context %q, want %q", seenRole, model.RoleTeacher)
			}
		})
	}
}
