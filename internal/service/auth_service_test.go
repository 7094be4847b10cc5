package service

import (
	"errors"
	"testing"

	"livepoll/internal/model"
)

func TestLogin(t *testing.T) {
	svc := NewAuthService("secret", "hunter2")

	if _, err := svc.Login("wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	resp, err := svc.Login("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}

	claims, err := svc.ValidateTeacherToken(resp.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != model.RoleTeacher {
		t.Fatalf("role %q, want %q", claims.Role, model.RoleTeacher)
	}
	if !svc.IsTeacher(resp.Token) {
		t.Fatal("IsTeacher rejected a valid token")
	}
}

func TestValidateTeacherTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService("secret", "hunter2")

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.ValidateTeacherToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestValidateTeacherTokenWrongSecret(t *testing.T) {
	issuer := NewAuthService("secret-a", "hunter2")
	verifier := NewAuthService("secret-b", "hunter2")

	resp, err := issuer.Login("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ValidateTeacherToken(resp.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if verifier.IsTeacher(resp.Token) {
		t.Fatal("token signed with a different secret accepted")
	}
}
