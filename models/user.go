package models

import "strings"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleParent  Role = "parent"
	RoleTeacher Role = "teacher"
)

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type Child struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ParentID  string `json:"parent_id"`
}

func (c Child) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
