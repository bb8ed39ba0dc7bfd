package models

import (
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is the identity record moderated by the admin console. Documents are
// keyed by the auth provider UID.
type User struct {
	ID          string `json:"id" bson:"_id" firestore:"-"`
	Email       string `json:"email" bson:"email,omitempty" firestore:"email,omitempty"`
	DisplayName string `json:"displayName" bson:"display_name,omitempty" firestore:"displayName,omitempty"`
	Role        string `json:"role" bson:"role,omitempty" firestore:"role,omitempty"`
	IsAdmin     bool   `json:"isAdmin" bson:"is_admin" firestore:"isAdmin"`

	IsBanned      bool       `json:"isBanned" bson:"is_banned" firestore:"isBanned"`
	BanReason     *string    `json:"banReason" bson:"ban_reason" firestore:"banReason"`
	BannedAt      *time.Time `json:"bannedAt" bson:"banned_at" firestore:"bannedAt"`
	BannedBy      *string    `json:"bannedBy" bson:"banned_by" firestore:"bannedBy"`
	BannedByEmail *string    `json:"bannedByEmail" bson:"banned_by_email" firestore:"bannedByEmail"`
	AutoBanned    bool       `json:"autoBanned" bson:"auto_banned" firestore:"autoBanned"`

	// Revision is bumped by every moderation write and compared before the
	// next one is committed.
	Revision  int64     `json:"revision" bson:"revision" firestore:"revision"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at" firestore:"updatedAt"`
}

// HasAdminFlag reports whether the stored record marks the user as an admin,
// either through the flag or the role. Configured admin e-mails are resolved
// by the services layer.
func (u *User) HasAdminFlag() bool {
	return u.IsAdmin || strings.EqualFold(u.Role, RoleAdmin)
}

// Actor identifies who performed a moderation action.
type Actor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SystemActor is used for sweeps triggered without a signed-in admin.
var SystemActor = Actor{ID: "system"}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Actor Actor  `json:"actor"`
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}
