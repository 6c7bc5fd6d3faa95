package authsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON error body. Client code should use APIError.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ============================================================================
// Token Types
// ============================================================================

// LoginRequest is the body of POST /v1/auth/login. Either Username or Email
// identifies the user.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	// AccessToken is the JWT used to authenticate API requests
	AccessToken string `json:"access_token"`

	// RefreshToken exchanges for a new token pair
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// UniqueID is the stable user identifier
	UniqueID string `json:"uniqueId,omitempty"`
}

// ============================================================================
// Identity Types
// ============================================================================

// MeResponse describes the authenticated caller.
type MeResponse struct {
	Subject   string    `json:"sub"`
	Issuer    string    `json:"issuer"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
	UniqueID  string    `json:"uniqueId"`
}

// AdminPingResponse is returned by GET /v1/admin/ping.
type AdminPingResponse struct {
	Status  string `json:"status"`
	Subject string `json:"sub"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes Checks).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks maps dependency names to "ok" or an error summary.
	Checks map[string]string `json:"checks,omitempty"`
}
