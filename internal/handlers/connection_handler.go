package handlers

import (
	"net/http"

	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ConnectionHandler handles HTTP requests related to connections
type ConnectionHandler struct {
	connectionService services.ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connectionService services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connectionService: connectionService}
}

// RegisterConnectionRoutes registers connection-related routes
func (h *ConnectionHandler) RegisterConnectionRoutes(g *echo.Group) {
	g.POST("/request/:userId", h.SendConnectionRequest)
	g.GET("/requests", h.GetConnectionRequests)
	g.PUT("/accept/:requestId", h.AcceptConnectionRequest)
	g.PUT("/reject/:requestId", h.RejectConnectionRequest)
	g.GET("", h.GetConnections)
	g.DELETE("/:userId", h.RemoveConnection)
}

// SendConnectionRequest handles sending a connection request
func (h *ConnectionHandler) SendConnectionRequest(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	req, err := h.connectionService.SendRequest(c.Request().Context(), user.ID, c.Param("userId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, req)
}

// GetConnectionRequests lists pending requests sent to the current user
func (h *ConnectionHandler) GetConnectionRequests(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	requests, err := h.connectionService.ListPending(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, requests)
}

func (h *ConnectionHandler) AcceptConnectionRequest(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.connectionService.Accept(c.Request().Context(), user.ID, c.Param("requestId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Connection accepted successfully"})
}

func (h *ConnectionHandler) RejectConnectionRequest(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.connectionService.Reject(c.Request().Context(), user.ID, c.Param("requestId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Connection request rejected"})
}

// GetConnections lists the current user's connections
func (h *ConnectionHandler) GetConnections(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	connections, err := h.connectionService.ListConnections(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, connections)
}

// RemoveConnection removes a connection in both directions
func (h *ConnectionHandler) RemoveConnection(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.connectionService.Remove(c.Request().Context(), user.ID, c.Param("userId")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Connection removed successfully"})
}
