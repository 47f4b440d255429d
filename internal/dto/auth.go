package dto

// RefreshTokenRequest exchanges a still-valid token for a fresh one.
type RefreshTokenRequest struct {
	AccessToken string `json:"accessToken" validate:"required"`
}
