package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/middlewares"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
)

// Admin-only operations for the caller's own business.
func registerAdminRoutes(api *gin.RouterGroup) {
	g := api.Group("/admin", middlewares.RequireAdmin())
	g.POST("/users", createUserHandler)
	g.POST("/outbox/:id/replay", outboxReplayHandler)
}

type newUserRequest struct {
	Username string          `json:"username" binding:"required"`
	Name     string          `json:"name" binding:"required"`
	Password string          `json:"password" binding:"required,min=8"`
	Role     models.UserRole `json:"role"`
}

func createUserHandler(c *gin.Context) {
	var req newUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	businessId, _ := utils.GetBusinessIdFromContext(c.Request.Context())
	user, err := models.CreateUser(c.Request.Context(), &models.NewUser{
		BusinessId: businessId,
		Username:   req.Username,
		Name:       req.Name,
		Password:   req.Password,
		Role:       req.Role,
	})
	if err != nil {
		respondError(c, "createUserHandler", err)
		return
	}
	respondCreated(c, user)
}

func outboxReplayHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	record, err := models.ReplayOutboxRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, "outboxReplayHandler", err)
		return
	}
	respondOK(c, record)
}
