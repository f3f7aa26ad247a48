package httpHandler

import (
	"errors"
	"io"
	"net/http"

	"grocery-sync/usecases"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves the unauthenticated account routes.
type AuthHandler struct {
	useCase *usecases.UserUseCase
}

func NewAuthHandler(useCase *usecases.UserUseCase) *AuthHandler {
	return &AuthHandler{useCase: useCase}
}

type SignupRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Type     string `json:"type" form:"type"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Signup handles POST /v1/user/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if !bind(c, &req) {
		return
	}

	if _, err := h.useCase.Signup(c.Request.Context(), req.Email, req.Password, req.Type); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Successful created new user."})
}

// Authenticate handles POST /v1/user/authenticate and returns a signed token
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	token, user, err := h.useCase.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"msg":     "Authentication successful.",
		"token":   token,
		"user":    user,
	})
}

// bind decodes a JSON or form body into req. An empty body is not an error so
// that missing fields get their descriptive message from the use case.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBind(req); err != nil && !errors.Is(err, io.EOF) {
		respondInvalidBody(c, err)
		return false
	}
	return true
}
