// Package domain contains core concepts of the messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleBusiness Role = "business"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// ValidID reports whether id can be used in store keys, which use ':' as
// their separator.
func ValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ": \t\n")
}

// User is a directory entry. The messaging core only reads it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"userType"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Business is a listing owned by a user with the business role.
type Business struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Name    string `json:"businessName"`
	Type    string `json:"businessType"`
}

// Identity is what the identity gate yields for an authenticated caller.
type Identity struct {
	UserID string
	Role   Role
	Name   string
}

// UserSummary is the sender card attached to delivered messages.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	UserType Role   `json:"userType"`
}

func (i Identity) Summary() UserSummary {
	return UserSummary{ID: i.UserID, Name: i.Name, UserType: i.Role}
}
