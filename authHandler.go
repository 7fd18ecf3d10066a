package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/models"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	info, err := models.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, "loginHandler", err)
		return
	}
	respondOK(c, info)
}

func logoutHandler(c *gin.Context) {
	ok, err := models.Logout(c.Request.Context())
	if err != nil {
		respondError(c, "logoutHandler", err)
		return
	}
	respondOK(c, gin.H{"logged_out": ok})
}
