package request_models

type RSVPRequest struct {
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=32"`
}

type CreatePostRequest struct {
	Title string `json:"title" binding:"required,max=200"`
	Body  string `json:"body" binding:"required"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}
