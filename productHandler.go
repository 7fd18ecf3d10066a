package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/models"
)

func registerProductRoutes(api *gin.RouterGroup) {
	g := api.Group("/products")
	g.GET("", listProductsHandler)
	g.POST("", createProductHandler)
	g.GET("/:id", getProductHandler)
	g.PUT("/:id", updateProductHandler)
	g.DELETE("/:id", deleteProductHandler)
}

func listProductsHandler(c *gin.Context) {
	var filter models.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	products, page, err := models.GetProducts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listProductsHandler", err)
		return
	}
	respondPage(c, products, page)
}

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createProductHandler", err)
		return
	}
	respondCreated(c, product)
}

func getProductHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getProductHandler", err)
		return
	}
	respondOK(c, product)
}

func updateProductHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateProductHandler", err)
		return
	}
	respondOK(c, product)
}

func deleteProductHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	product, err := models.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deleteProductHandler", err)
		return
	}
	respondOK(c, product)
}
