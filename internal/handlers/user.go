package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterUserRoutes registers user-related routes. Static paths go before
// /:username so they are not captured by it.
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("", h.GetAllUsers)
	g.GET("/me", h.GetCurrentUser)
	g.GET("/suggestions", h.GetSuggestions)
	g.GET("/active", h.GetActiveUsers)
	g.GET("/search", h.SearchUsers)
	g.PUT("/profile", h.UpdateProfile)
	g.GET("/:username", h.GetPublicProfile)
}

// GetCurrentUser returns the authenticated user's freshest record
func (h *UserHandler) GetCurrentUser(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	fresh, err := h.userService.GetCurrentUser(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fresh)
}

func (h *UserHandler) GetSuggestions(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	suggestions, err := h.userService.GetSuggestions(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestions)
}

func (h *UserHandler) GetPublicProfile(c echo.Context) error {
	profile, err := h.userService.GetPublicProfile(c.Request().Context(), c.Param("username"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) GetAllUsers(c echo.Context) error {
	users, err := h.userService.GetAllUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// GetActiveUsers lists users seen within the active window
func (h *UserHandler) GetActiveUsers(c echo.Context) error {
	users, err := h.userService.GetActiveUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateProfile updates the authenticated user's profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.userService.UpdateProfile(c.Request().Context(), user.ID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// SearchUsers searches for users by name or username
func (h *UserHandler) SearchUsers(c echo.Context) error {
	users, err := h.userService.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}
