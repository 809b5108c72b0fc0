package api

import "encoding/json"

// envelope is the wrapper used by every v3 endpoint.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Status  int             `json:"status"`
}

// errorData is the data payload of a failed v3 response.
type errorData struct {
	Error   json.RawMessage `json:"error"`
	Request string          `json:"request,omitempty"`
	Method  string          `json:"method,omitempty"`
}

// oauthError is the body shape of a failed token request.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ImageData describes one hosted image.
type ImageData struct {
	ID         string `json:"id"`
	Link       string `json:"link"`
	DeleteHash string `json:"deletehash"`
	Type       string `json:"type,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Size       int64  `json:"size,omitempty"`
}

// TokenResponse is returned by the token endpoint for both the pin and the
// refresh_token grants.
type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	TokenType       string `json:"token_type,omitempty"`
	ExpiresIn       int64  `json:"expires_in,omitempty"`
	AccountUsername string `json:"account_username,omitempty"`
}
