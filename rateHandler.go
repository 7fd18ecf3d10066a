package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/models"
)

func registerRateRoutes(api *gin.RouterGroup) {
	g := api.Group("/rates")
	g.GET("", listRatesHandler)
	g.POST("", setRateHandler)
	g.GET("/:metal", getRateHandler)
}

func listRatesHandler(c *gin.Context) {
	rates, err := models.GetRates(c.Request.Context())
	if err != nil {
		respondError(c, "listRatesHandler", err)
		return
	}
	respondOK(c, rates)
}

func setRateHandler(c *gin.Context) {
	var input models.NewRate
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := models.SetRate(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "setRateHandler", err)
		return
	}
	respondOK(c, result)
}

// getRateHandler reads ?purity= for gold; silver has none.
func getRateHandler(c *gin.Context) {
	metal := models.Metal(strings.ToLower(strings.TrimSpace(c.Param("metal"))))
	if !metal.IsValid() {
		respondMessage(c, http.StatusBadRequest, "invalid metal")
		return
	}
	var purity *string
	if p := strings.TrimSpace(c.Query("purity")); p != "" {
		purity = &p
	}
	rate, err := models.GetRate(c.Request.Context(), metal, purity)
	if err != nil {
		respondError(c, "getRateHandler", err)
		return
	}
	respondOK(c, rate)
}
