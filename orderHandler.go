package main

import (
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/middlewares"
	"github.com/mmdatafocus/jewelry_pos/models"
)

func registerOrderRoutes(api *gin.RouterGroup) {
	g := api.Group("/orders")
	g.GET("", listOrdersHandler)
	g.POST("", createOrderHandler)
	g.GET("/:id", getOrderHandler)
	g.POST("/:id/cancel", cancelOrderHandler)
}

type orderItemResponse struct {
	models.OrderItem
	Product *models.Product `json:"product,omitempty"`
}

type orderResponse struct {
	*models.Order
	Items []orderItemResponse `json:"items"`
}

func listOrdersHandler(c *gin.Context) {
	var filter models.OrderFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	orders, page, err := models.GetOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listOrdersHandler", err)
		return
	}
	respondPage(c, orders, page)
}

func createOrderHandler(c *gin.Context) {
	var input models.NewOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := models.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createOrderHandler", err)
		return
	}
	respondCreated(c, order)
}

// getOrderHandler returns the order with each line's current product.
func getOrderHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	order, err := models.GetOrder(ctx, id)
	if err != nil {
		respondError(c, "getOrderHandler", err)
		return
	}

	ids := make([]int, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductId
	}
	products, errs := middlewares.GetProducts(ctx, ids)
	resp := orderResponse{Order: order, Items: make([]orderItemResponse, len(order.Items))}
	for i, item := range order.Items {
		resp.Items[i] = orderItemResponse{OrderItem: item}
		if i < len(products) && (len(errs) <= i || errs[i] == nil) {
			resp.Items[i].Product = products[i]
		}
	}
	respondOK(c, resp)
}

func cancelOrderHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := models.CancelOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, "cancelOrderHandler", err)
		return
	}
	respondOK(c, order)
}
