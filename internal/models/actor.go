package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the closed role set recognised by the authorization layer.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleVPAA    UserRole = "VPAA"
	RoleDI      UserRole = "DI"
	RoleDean    UserRole = "DEAN"
	RoleChair   UserRole = "CHAIR"
	RoleFaculty UserRole = "FACULTY"
)

// ActorContext identifies who is driving a workflow call. The core never
// reads ambient session state; callers construct this explicitly.
type ActorContext struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	DepartmentID string   `json:"department_id"`
	CollegeID    string   `json:"college_id"`
}

// CanReview reports whether the actor may resolve approval transitions.
func (a ActorContext) CanReview() bool {
	switch a.Role {
	case RoleAdmin, RoleVPAA, RoleDean, RoleChair:
		return true
	}
	return false
}

// JWTClaims is the access-token payload the middleware turns into an
// ActorContext.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	DepartmentID string   `json:"department_id"`
	CollegeID    string   `json:"college_id"`
	FullName     string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor converts claims into the explicit context the services consume.
func (c *JWTClaims) Actor() ActorContext {
	if c == nil {
		return ActorContext{}
	}
	return ActorContext{
		UserID:       c.UserID,
		Role:         c.Role,
		DepartmentID: c.DepartmentID,
		CollegeID:    c.CollegeID,
	}
}
