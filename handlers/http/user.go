package httpHandler

import (
	"net/http"

	"grocery-sync/usecases"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	useCase *usecases.UserUseCase
}

func NewUserHandler(useCase *usecases.UserUseCase) *UserHandler {
	return &UserHandler{useCase: useCase}
}

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" form:"latitude"`
	Longitude *float64 `json:"longitude" form:"longitude"`
}

type FindUserRequest struct {
	Email string `json:"email" form:"email"`
}

// UpdateLocation handles POST /v1/user/updatelocation
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	id, _ := IdentityFrom(c)

	var req LocationRequest
	if !bind(c, &req) {
		return
	}

	if _, err := h.useCase.UpdateLocation(c.Request.Context(), id.UserID, req.Latitude, req.Longitude); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Successful updated user location."})
}

// Find handles POST /v1/user/find
func (h *UserHandler) Find(c *gin.Context) {
	var req FindUserRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.useCase.Find(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "User found!", "user": user})
}

// FindAll handles GET /v1/user/findall
func (h *UserHandler) FindAll(c *gin.Context) {
	users, err := h.useCase.FindAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "User found!", "user": users})
}

// Friends handles GET /v1/user/friends
func (h *UserHandler) Friends(c *gin.Context) {
	id, _ := IdentityFrom(c)

	users, err := h.useCase.Friends(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Friends found!", "list": users})
}
