package api

type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token,omitempty"` // for clients that do not keep cookies
}

type LogoutResponse struct {
	Message string `json:"message"`
}
