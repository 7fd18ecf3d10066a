package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
)

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func respondPage(c *gin.Context, data any, page models.PageInfo) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "pagination": page})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// respondBindError answers a request whose body or query failed binding.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "invalid request",
		"errors":  utils.ProcessValidationErrors(err),
	})
}

// respondError maps domain errors onto status codes. Only unexpected errors
// are logged; their text never reaches the client.
func respondError(c *gin.Context, funcName string, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		respondMessage(c, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		respondMessage(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, utils.ErrBusinessIdRequired):
		respondMessage(c, http.StatusUnauthorized, "unauthorized")
	case utils.IsValidationError(err), errors.Is(err, utils.ErrConcurrentModification):
		respondMessage(c, http.StatusBadRequest, err.Error())
	case utils.IsDuplicateKeyErr(err):
		respondMessage(c, http.StatusBadRequest, "duplicate record")
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "server", funcName, c.FullPath(), gin.H{"correlation_id": cid}, err)
		respondMessage(c, http.StatusInternalServerError, "internal server error")
	}
}

// idParam reads a positive integer path parameter, answering 400 otherwise.
func idParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondMessage(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
