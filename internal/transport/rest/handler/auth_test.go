package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"livepoll/internal/model"
	"livepoll/internal/service"
)

func TestLoginHandler(t *testing.T) {
	authSvc := service.NewAuthService("secret", "hunter2")
	h := NewAuthHandler(authSvc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"correct password", `{"password":"hunter2"}`, http.StatusOK},
		{"wrong password", `{"password":"nope"}`, http.StatusUnauthorized},
		{"empty body", `{}`, http.StatusUnauthorized},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/auth/teacher/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.Login(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp model.LoginResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if !authSvc.IsTeacher(resp.Token) {
				t.Fatal("issued token not accepted as teacher")
			}
		})
	}
}
