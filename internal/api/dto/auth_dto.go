package dto

// SignupRequest payload for account registration.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest payload for authentication.
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshTokenRequest payload for minting a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthenticationResponse is returned by signup and signin. Signup
// carries no tokens and expiresIn zero.
type AuthenticationResponse struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
	Message      string `json:"message"`
}

// RefreshTokenResponse is returned by refresh.
type RefreshTokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	Message     string `json:"message"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}
