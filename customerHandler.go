package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/models"
)

func registerCustomerRoutes(api *gin.RouterGroup) {
	g := api.Group("/customers")
	g.GET("", listCustomersHandler)
	g.POST("", createCustomerHandler)
	g.GET("/:id", getCustomerHandler)
	g.PUT("/:id", updateCustomerHandler)
	g.DELETE("/:id", deleteCustomerHandler)
	g.GET("/:id/chit-stats", customerChitStatsHandler)
}

func listCustomersHandler(c *gin.Context) {
	var filter models.CustomerFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	customers, page, err := models.GetCustomers(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listCustomersHandler", err)
		return
	}
	respondPage(c, customers, page)
}

func createCustomerHandler(c *gin.Context) {
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createCustomerHandler", err)
		return
	}
	respondCreated(c, customer)
}

func getCustomerHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	customer, err := models.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getCustomerHandler", err)
		return
	}
	respondOK(c, customer)
}

func updateCustomerHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewCustomer
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateCustomerHandler", err)
		return
	}
	respondOK(c, customer)
}

func deleteCustomerHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	customer, err := models.DeleteCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deleteCustomerHandler", err)
		return
	}
	respondOK(c, customer)
}

func customerChitStatsHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := models.GetCustomerChitStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, "customerChitStatsHandler", err)
		return
	}
	respondOK(c, stats)
}
