package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/models/reports"
	"github.com/mmdatafocus/jewelry_pos/utils"
)

func registerChitPaymentRoutes(api *gin.RouterGroup) {
	g := api.Group("/chit-payments")
	g.POST("", createChitPaymentHandler)
	g.GET("", listChitPaymentsHandler)
	g.GET("/chit/:chitId", chitPaymentsByChitHandler)
	g.GET("/chit/:chitId/export", exportChitPaymentsHandler)
	g.GET("/receipt/:receiptNumber", chitPaymentByReceiptHandler)
	g.GET("/:id", getChitPaymentHandler)
	g.PATCH("/:id/status", updateChitPaymentStatusHandler)
}

type chitPaymentQuery struct {
	models.Pagination
	ChitId        int    `form:"chit_id"`
	PaymentMethod string `form:"payment_method"`
	Status        string `form:"status"`
	From          string `form:"from"`
	To            string `form:"to"`
}

func (q chitPaymentQuery) filter() (models.ChitPaymentFilter, error) {
	filter := models.ChitPaymentFilter{
		Pagination:    q.Pagination,
		ChitId:        q.ChitId,
		PaymentMethod: q.PaymentMethod,
		Status:        q.Status,
	}
	if q.From != "" {
		from, err := utils.ParseDateParam(q.From)
		if err != nil {
			return filter, utils.NewValidationError("invalid from date")
		}
		filter.FromDate = &from
	}
	if q.To != "" {
		to, err := utils.ParseDateParam(q.To)
		if err != nil {
			return filter, utils.NewValidationError("invalid to date")
		}
		// a bare date covers the whole day
		if len(q.To) == len("2006-01-02") {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.ToDate = &to
	}
	return filter, nil
}

func createChitPaymentHandler(c *gin.Context) {
	var input models.NewChitPayment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	if input.ChitId <= 0 {
		respondMessage(c, http.StatusBadRequest, "chit_id is required")
		return
	}
	recordPayment(c, &input)
}

func listChitPaymentsHandler(c *gin.Context) {
	var q chitPaymentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	filter, err := q.filter()
	if err != nil {
		respondError(c, "listChitPaymentsHandler", err)
		return
	}
	payments, page, err := models.GetChitPayments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listChitPaymentsHandler", err)
		return
	}
	respondPage(c, payments, page)
}

func chitPaymentsByChitHandler(c *gin.Context) {
	chitId, ok := idParam(c, "chitId")
	if !ok {
		return
	}
	var page models.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBindError(c, err)
		return
	}
	payments, info, err := models.GetChitPaymentsByChit(c.Request.Context(), chitId, page)
	if err != nil {
		respondError(c, "chitPaymentsByChitHandler", err)
		return
	}
	respondPage(c, payments, info)
}

func exportChitPaymentsHandler(c *gin.Context) {
	chitId, ok := idParam(c, "chitId")
	if !ok {
		return
	}
	f, err := reports.ChitPaymentHistoryWorkbook(c.Request.Context(), chitId)
	if err != nil {
		respondError(c, "exportChitPaymentsHandler", err)
		return
	}
	defer f.Close()
	if err := reports.WriteWorkbook(c.Writer, f, fmt.Sprintf("chit-%d-payments.xlsx", chitId)); err != nil {
		respondError(c, "exportChitPaymentsHandler", err)
	}
}

func chitPaymentByReceiptHandler(c *gin.Context) {
	payment, err := models.GetChitPaymentByReceipt(c.Request.Context(), c.Param("receiptNumber"))
	if err != nil {
		respondError(c, "chitPaymentByReceiptHandler", err)
		return
	}
	respondOK(c, payment)
}

func getChitPaymentHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	payment, err := models.GetChitPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, "getChitPaymentHandler", err)
		return
	}
	respondOK(c, payment)
}

func updateChitPaymentStatusHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	payment, err := models.UpdateChitPaymentStatus(c.Request.Context(), id, models.ChitPaymentStatus(req.Status))
	if err != nil {
		respondError(c, "updateChitPaymentStatusHandler", err)
		return
	}
	respondOK(c, payment)
}
