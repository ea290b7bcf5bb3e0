package scopeauth

import "time"

// Profile is the identity resolved from the profile endpoint. It is derived
// state: it may lag the server and is cleared whenever resolution fails.
type Profile struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	FirstName  string    `json:"first_name"`
	FamilyName string    `json:"family_name"`
	LoginType  string    `json:"login_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionInfo is a point-in-time copy of the session visible to callers.
// The refresh token is deliberately absent: it is never handed out and only
// travels to the rotation endpoint.
type SessionInfo struct {
	AccessToken      string
	IssuedAt         time.Time
	RequiresPassword bool
	User             *Profile
}

// UpdateProfileInput describes a profile update. Zero-value fields are left
// unchanged server-side. CurrentPassword is required when changing the
// password of an account that already has one.
type UpdateProfileInput struct {
	Name            string `json:"name,omitempty"`
	Password        string `json:"password,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
}

// tokenResponse is the wire shape shared by the login and rotation endpoints.
// RequiresPassword is a pointer so that an absent field preserves the current
// flag instead of resetting it.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	Email            string `json:"email"`
	RequiresPassword *bool  `json:"requires_password"`
}

type rotationRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type apiErrorBody struct {
	Detail string `json:"detail"`
}
