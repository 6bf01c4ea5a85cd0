package request_models

type SignUpRequest struct {
	Username       string `json:"username" binding:"required,min=3,max=32,alphanum"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	FirstName      string `json:"first_name" binding:"required,max=64"`
	LastName       string `json:"last_name" binding:"required,max=64"`
	Phone          string `json:"phone" binding:"omitempty,max=32"`
	Membership     string `json:"membership" binding:"required,oneof=monthly annual"`
	WaiverAccepted bool   `json:"waiver_accepted" binding:"required"`
	WaiverVersion  string `json:"waiver_version"`
}

// LoginRequest accepts a username or an email in Username.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RequestForgotPassword struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name" binding:"omitempty,max=64"`
	LastName     *string `json:"last_name" binding:"omitempty,max=64"`
	Phone        *string `json:"phone" binding:"omitempty,max=32"`
	ProfilePhoto *string `json:"profile_photo" binding:"omitempty,url"`
}
