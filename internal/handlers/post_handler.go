package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to posts, their likes and comments
type PostHandler struct {
	postService services.PostService
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postService services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("", h.GetFeed)
	g.POST("/create", h.CreatePost)
	g.GET("/user/:username", h.GetPostsByUser)
	g.GET("/:id", h.GetPost)
	g.DELETE("/delete/:id", h.DeletePost)
	g.POST("/:id/like", h.like(models.LikeToggle))
	g.PUT("/:id/like", h.like(models.LikeAdd))
	g.DELETE("/:id/like", h.like(models.LikeRemove))
	g.POST("/:id/comment", h.AddComment)
}

// GetFeed returns the user's and their connections' posts, newest first.
// The total is sent in X-Total-Count.
func (h *PostHandler) GetFeed(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	posts, total, err := h.postService.GetFeed(c.Request().Context(), user, page, limit)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	return c.JSON(http.StatusOK, posts)
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.postService.CreatePost(c.Request().Context(), user.ID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	post, err := h.postService.GetPost(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) GetPostsByUser(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c)

	posts, err := h.postService.GetPostsByUser(c.Request().Context(), user.ID, c.Param("username"), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, posts)
}

// DeletePost deletes a post owned by the current user
func (h *PostHandler) DeletePost(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.postService.DeletePost(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Post deleted successfully"})
}

// like returns a handler for one like action. POST toggles, PUT likes and
// DELETE unlikes; PUT and DELETE are safe to retry.
func (h *PostHandler) like(action models.LikeAction) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := currentUser(c)
		if err != nil {
			return err
		}
		post, err := h.postService.Like(c.Request().Context(), user.ID, c.Param("id"), action)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, post)
	}
}

func (h *PostHandler) AddComment(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.postService.AddComment(c.Request().Context(), user.ID, c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func pagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return page, limit
}
