package reports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/xuri/excelize/v2"
)

const (
	chitRegisterSheet = "Chits"
	chitPaymentSheet  = "Payments"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	excelDateLayout   = "2006-01-02"
)

// ExcelExporter is a row of an exported sheet.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

var chitRegisterHeadings = []string{
	"Chit Number", "Customer", "Phone", "Status",
	"Chit Amount", "Installment Amount", "Paid Installments", "Remaining Installments",
	"Total Paid", "Remaining Amount", "Gold Weight (g)", "Gold Value",
	"Start Date", "Next Due Date", "Overdue Days", "Settlement Type", "Settlement Amount",
}

var chitPaymentHeadings = []string{
	"Installment", "Receipt Number", "Payment Date", "Amount", "Method",
	"Gold Rate", "Gold Weight (g)", "Purity", "Status", "Collected By", "Notes",
}

type chitRegisterRow struct {
	chit    *models.Chit
	summary models.ChitSummary
}

func (r chitRegisterRow) GetCellValues() []interface{} {
	c := r.chit
	settlementType := ""
	if c.SettlementType != nil {
		settlementType = string(*c.SettlementType)
	}
	return []interface{}{
		c.ChitNumber,
		c.CustomerName,
		c.CustomerPhone,
		string(c.Status),
		c.ChitAmount.InexactFloat64(),
		c.InstallmentAmount.InexactFloat64(),
		c.PaidInstallments,
		c.RemainingInstallments,
		r.summary.TotalPaidAmount.InexactFloat64(),
		r.summary.RemainingAmount.InexactFloat64(),
		c.GoldWeight.InexactFloat64(),
		r.summary.GoldValue.InexactFloat64(),
		c.StartDate.Format(excelDateLayout),
		c.NextDueDate.Format(excelDateLayout),
		r.summary.OverdueDays,
		settlementType,
		c.SettlementAmount.InexactFloat64(),
	}
}

type chitPaymentRow struct {
	*models.ChitPayment
}

func (p chitPaymentRow) GetCellValues() []interface{} {
	return []interface{}{
		p.InstallmentNumber,
		p.ReceiptNumber,
		p.PaymentDate.Format(excelDateLayout),
		p.Amount.InexactFloat64(),
		string(p.PaymentMethod),
		p.GoldRate.InexactFloat64(),
		p.GoldWeight.InexactFloat64(),
		p.Purity,
		string(p.Status),
		p.CollectedBy,
		p.Notes,
	}
}

// ChitRegisterWorkbook exports every chit matching filter with its derived
// figures valued at the current 22K rate.
func ChitRegisterWorkbook(ctx context.Context, filter models.ChitFilter, now time.Time) (*excelize.File, error) {
	chits, err := models.AllChits(ctx, filter)
	if err != nil {
		return nil, err
	}
	goldRate, err := models.CurrentGoldRate(ctx, models.Purity22K)
	if err != nil {
		return nil, err
	}

	rows := make([]ExcelExporter, 0, len(chits))
	for _, c := range chits {
		rows = append(rows, chitRegisterRow{chit: c, summary: c.Summarize(now, goldRate)})
	}
	return newWorkbook(chitRegisterSheet, nil, chitRegisterHeadings, rows)
}

// ChitPaymentHistoryWorkbook exports one chit's payments in installment order.
func ChitPaymentHistoryWorkbook(ctx context.Context, chitId int) (*excelize.File, error) {
	chit, err := models.GetChit(ctx, chitId)
	if err != nil {
		return nil, err
	}
	payments, err := models.AllChitPayments(ctx, chit.ID)
	if err != nil {
		return nil, err
	}

	preamble := [][]interface{}{
		{"Chit Number", chit.ChitNumber},
		{"Customer", chit.CustomerName},
		{"Chit Amount", chit.ChitAmount.InexactFloat64()},
		{"Paid Installments", fmt.Sprintf("%d / %d", chit.PaidInstallments, chit.TotalInstallments)},
		{"Gold Weight (g)", chit.GoldWeight.InexactFloat64()},
	}
	rows := make([]ExcelExporter, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, chitPaymentRow{p})
	}
	return newWorkbook(chitPaymentSheet, preamble, chitPaymentHeadings, rows)
}

func newWorkbook(sheetName string, preamble [][]interface{}, headings []string, data []ExcelExporter) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	rowNo := 1
	for _, line := range preamble {
		cell, _ := excelize.CoordinatesToCellName(1, rowNo)
		if err := f.SetSheetRow(sheetName, cell, &line); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, bold); err != nil {
			return nil, err
		}
		rowNo++
	}
	if len(preamble) > 0 {
		rowNo++
	}

	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, rowNo)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, rowNo)
	last, _ := excelize.CoordinatesToCellName(len(headings), rowNo)
	if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
		return nil, err
	}
	rowNo++

	for _, d := range data {
		values := d.GetCellValues()
		cell, _ := excelize.CoordinatesToCellName(1, rowNo)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
		rowNo++
	}
	return f, nil
}

// WriteWorkbook streams f as an attachment.
func WriteWorkbook(w http.ResponseWriter, f *excelize.File, filename string) error {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return f.Write(w)
}
