package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"livepoll/internal/model"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// AuthService handles teacher authentication. Students are anonymous; the
// only credential in the system is the shared teacher password exchanged
// for a role-bearing JWT.
type AuthService struct {
	teacherPassword string
	jwtSecret       []byte
}

// NewAuthService creates a new auth service.
func NewAuthService(jwtSecret, teacherPassword string) *AuthService {
	return &AuthService{
		teacherPassword: teacherPassword,
		jwtSecret:       []byte(jwtSecret),
	}
}

// Login validates the teacher password and returns a 24h token.
func (s *AuthService) Login(password string) (*model.LoginResponse, error) {
	if password != s.teacherPassword {
		return nil, ErrInvalidPassword
	}

	claims := &model.TeacherClaims{
		Role: model.RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{Token: tokenString}, nil
}

// ValidateTeacherToken validates a teacher JWT and returns its claims.
func (s *AuthService) ValidateTeacherToken(tokenString string) (*model.TeacherClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.TeacherClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.TeacherClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != model.RoleTeacher {
		return nil, ErrNotTeacher
	}

	return claims, nil
}

// IsTeacher reports whether the credential belongs to a teacher.
func (s *AuthService) IsTeacher(tokenString string) bool {
	_, err := s.ValidateTeacherToken(tokenString)
	return err == nil
}
