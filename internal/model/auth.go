package model

import "github.com/golang-jwt/jwt/v5"

// Participant roles. Authorization is binary: teacher or student.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// TeacherClaims are JWT claims for teacher authentication.
type TeacherClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for teacher login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
}
