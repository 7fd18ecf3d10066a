package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/jewelry_pos/middlewares"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/models/reports"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func registerChitRoutes(api *gin.RouterGroup) {
	g := api.Group("/chits")
	g.POST("", createChitHandler)
	g.GET("", listChitsHandler)
	g.GET("/overdue", overdueChitsHandler)
	g.GET("/stats/summary", chitStatsHandler)
	g.GET("/export", exportChitsHandler)
	g.GET("/customer/:customerId", customerChitsHandler)
	g.GET("/:id", getChitHandler)
	g.PUT("/:id", updateChitHandler)
	g.DELETE("/:id", deleteChitHandler)
	g.GET("/:id/schedule", chitScheduleHandler)
	g.POST("/:id/payment", recordChitPaymentHandler)
	g.POST("/:id/settle", settleChitHandler)
	g.POST("/:id/settle-purchase", settlePurchaseHandler)
	g.PATCH("/:id/status", updateChitStatusHandler)
	g.PATCH("/:id/settlement-status", updateSettlementStatusHandler)
}

type chitResponse struct {
	models.ChitWithSummary
	Customer *models.Customer `json:"customer,omitempty"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// withSummaries values each chit at the board rate for its purity and
// batch-loads the customers.
func withSummaries(ctx context.Context, chits []*models.Chit) ([]chitResponse, error) {
	if len(chits) == 0 {
		return []chitResponse{}, nil
	}
	now := time.Now().UTC()
	rates := map[string]decimal.Decimal{}
	ids := make([]int, 0, len(chits))
	for _, chit := range chits {
		if _, ok := rates[chit.Purity]; !ok {
			rate, err := models.CurrentGoldRate(ctx, chit.Purity)
			if err != nil {
				return nil, err
			}
			rates[chit.Purity] = rate
		}
		ids = append(ids, chit.CustomerId)
	}
	customers, errs := middlewares.GetCustomers(ctx, ids)

	out := make([]chitResponse, 0, len(chits))
	for i, chit := range chits {
		r := chitResponse{ChitWithSummary: chit.WithSummary(now, rates[chit.Purity])}
		if i < len(customers) && (len(errs) <= i || errs[i] == nil) {
			r.Customer = customers[i]
		}
		out = append(out, r)
	}
	return out, nil
}

func withSummary(ctx context.Context, chit *models.Chit) (chitResponse, error) {
	list, err := withSummaries(ctx, []*models.Chit{chit})
	if err != nil {
		return chitResponse{}, err
	}
	return list[0], nil
}

func createChitHandler(c *gin.Context) {
	var input models.NewChit
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	chit, err := models.CreateChit(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createChitHandler", err)
		return
	}
	respondCreated(c, chit)
}

func listChitsHandler(c *gin.Context) {
	var filter models.ChitFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	chits, page, err := models.GetChits(ctx, filter)
	if err != nil {
		respondError(c, "listChitsHandler", err)
		return
	}
	out, err := withSummaries(ctx, chits)
	if err != nil {
		respondError(c, "listChitsHandler", err)
		return
	}
	respondPage(c, out, page)
}

func overdueChitsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	chits, err := models.GetOverdueChits(ctx)
	if err != nil {
		respondError(c, "overdueChitsHandler", err)
		return
	}
	out, err := withSummaries(ctx, chits)
	if err != nil {
		respondError(c, "overdueChitsHandler", err)
		return
	}
	respondOK(c, out)
}

func chitStatsHandler(c *gin.Context) {
	stats, err := reports.ChitStatsReport(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, "chitStatsHandler", err)
		return
	}
	respondOK(c, stats)
}

func exportChitsHandler(c *gin.Context) {
	var filter models.ChitFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}
	f, err := reports.ChitRegisterWorkbook(c.Request.Context(), filter, time.Now().UTC())
	if err != nil {
		respondError(c, "exportChitsHandler", err)
		return
	}
	defer f.Close()
	filename := fmt.Sprintf("chits-%s.xlsx", time.Now().UTC().Format("20060102"))
	if err := reports.WriteWorkbook(c.Writer, f, filename); err != nil {
		respondError(c, "exportChitsHandler", err)
	}
}

func customerChitsHandler(c *gin.Context) {
	customerId, ok := idParam(c, "customerId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	chits, err := models.GetCustomerChits(ctx, customerId)
	if err != nil {
		respondError(c, "customerChitsHandler", err)
		return
	}
	out, err := withSummaries(ctx, chits)
	if err != nil {
		respondError(c, "customerChitsHandler", err)
		return
	}
	respondOK(c, out)
}

func getChitHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	chit, err := models.GetChit(ctx, id)
	if err != nil {
		respondError(c, "getChitHandler", err)
		return
	}
	out, err := withSummary(ctx, chit)
	if err != nil {
		respondError(c, "getChitHandler", err)
		return
	}
	respondOK(c, out)
}

func updateChitHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.UpdateChitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	chit, err := models.UpdateChit(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, "updateChitHandler", err)
		return
	}
	respondOK(c, chit)
}

func deleteChitHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	chit, err := models.DeleteChit(c.Request.Context(), id)
	if err != nil {
		respondError(c, "deleteChitHandler", err)
		return
	}
	respondOK(c, chit)
}

func chitScheduleHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	chit, err := models.GetChit(c.Request.Context(), id)
	if err != nil {
		respondError(c, "chitScheduleHandler", err)
		return
	}
	respondOK(c, chit.Schedule())
}

func recordChitPaymentHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewChitPayment
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	input.ChitId = id
	recordPayment(c, &input)
}

// recordPayment is shared by both payment routes.
func recordPayment(c *gin.Context, input *models.NewChitPayment) {
	ctx, span := tracer.Start(c.Request.Context(), "RecordChitPayment",
		trace.WithAttributes(attribute.Int("chit.id", input.ChitId), attribute.String("payment.method", string(input.PaymentMethod))))
	defer span.End()

	result, err := models.RecordChitPayment(ctx, input.ChitId, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, "recordPayment", err)
		return
	}
	span.SetAttributes(
		attribute.String("payment.receipt", result.Payment.ReceiptNumber),
		attribute.Int("payment.installment", result.Payment.InstallmentNumber),
	)
	respondCreated(c, result)
}

func settleChitHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewChitSettlement
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "SettleChit",
		trace.WithAttributes(attribute.Int("chit.id", id), attribute.String("settlement.type", string(input.SettlementType))))
	defer span.End()

	chit, err := models.SettleChit(ctx, id, &input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, "settleChitHandler", err)
		return
	}
	respondOK(c, chit)
}

func settlePurchaseHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input models.NewPurchaseSettlement
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), "SettlePurchase",
		trace.WithAttributes(attribute.Int("chit.id", id), attribute.String("settlement.invoice", input.InvoiceNumber)))
	defer span.End()

	chit, err := models.SettlePurchase(ctx, id, &input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, "settlePurchaseHandler", err)
		return
	}
	respondOK(c, chit)
}

func updateChitStatusHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	chit, err := models.UpdateChitStatus(c.Request.Context(), id, models.ChitStatus(req.Status))
	if err != nil {
		respondError(c, "updateChitStatusHandler", err)
		return
	}
	respondOK(c, chit)
}

func updateSettlementStatusHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	chit, err := models.UpdateSettlementStatus(c.Request.Context(), id, models.SettlementStatus(req.Status))
	if err != nil {
		respondError(c, "updateSettlementStatusHandler", err)
		return
	}
	respondOK(c, chit)
}
