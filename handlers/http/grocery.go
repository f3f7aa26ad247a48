package httpHandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"grocery-sync/usecases"

	"github.com/gin-gonic/gin"
)

type GroceryHandler struct {
	useCase *usecases.GroceryUseCase
}

func NewGroceryHandler(useCase *usecases.GroceryUseCase) *GroceryHandler {
	return &GroceryHandler{useCase: useCase}
}

type AddItemRequest struct {
	Name string `json:"name" form:"name"`
}

type UpdateItemRequest struct {
	ID        string         `json:"id" form:"id"`
	Completed *CompletedFlag `json:"completed" form:"completed"`
	Name      *string        `json:"name" form:"name"`
}

// CompletedFlag is a completion state sent as 0/1, true/false or their string forms.
// Out of range integers are kept so the use case can reject them.
type CompletedFlag int

func (f *CompletedFlag) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case bool:
		*f = boolFlag(v)
	case float64:
		if v != float64(int(v)) {
			return fmt.Errorf("completed: %v is not an integer", v)
		}
		*f = CompletedFlag(v)
	case string:
		return f.UnmarshalParam(v)
	default:
		return fmt.Errorf("completed: unsupported value %s", b)
	}
	return nil
}

// UnmarshalParam decodes form and query values.
func (f *CompletedFlag) UnmarshalParam(param string) error {
	s := strings.ToLower(strings.TrimSpace(param))
	switch s {
	case "true":
		*f = 1
		return nil
	case "false":
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("completed: %q is not a flag", param)
	}
	*f = CompletedFlag(n)
	return nil
}

func (f *CompletedFlag) intPtr() *int {
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func boolFlag(b bool) CompletedFlag {
	if b {
		return 1
	}
	return 0
}

type DeleteItemRequest struct {
	ID string `json:"id" form:"id"`
}

// Add handles POST /v1/grocery/add
func (h *GroceryHandler) Add(c *gin.Context) {
	id, _ := IdentityFrom(c)

	var req AddItemRequest
	if !bind(c, &req) {
		return
	}

	item, err := h.useCase.Add(c.Request.Context(), id.UserID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Added the item to your list.", "list": item})
}

// Update handles POST /v1/grocery/update
func (h *GroceryHandler) Update(c *gin.Context) {
	id, _ := IdentityFrom(c)

	var req UpdateItemRequest
	if !bind(c, &req) {
		return
	}

	item, err := h.useCase.Update(c.Request.Context(), id.UserID, req.ID, req.Completed.intPtr(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Successful updated grocery item.", "list": item})
}

// Delete handles POST /v1/grocery/delete
func (h *GroceryHandler) Delete(c *gin.Context) {
	id, _ := IdentityFrom(c)

	var req DeleteItemRequest
	if !bind(c, &req) {
		return
	}

	item, err := h.useCase.Delete(c.Request.Context(), id.UserID, req.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Successful deleted grocery item.", "list": item})
}

// List handles GET /v1/grocery/list
func (h *GroceryHandler) List(c *gin.Context) {
	id, _ := IdentityFrom(c)

	items, err := h.useCase.List(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "msg": "Lists found!", "list": items})
}
