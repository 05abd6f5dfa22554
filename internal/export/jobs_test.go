package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/example/washops/backend/internal/models"
)

func TestWriteJobsProducesReadableWorkbook(t *testing.T) {
	jobs := []models.Job{
		{
			ID:                   41,
			Customer:             models.Customer{FirstName: "Jane", LastName: "Doe", PhoneNumber: "+251911000111"},
			Car:                  models.Car{Make: "Toyota", Model: "Corolla", PlateNumber: "AA-123-ET"},
			Status:               models.JobStatusPaid,
			PaymentMethod:        models.PaymentCard,
			TransactionReference: "TX-1",
			CreatedAt:            time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC),
			Items: []models.JobItem{
				{Service: models.Service{Name: "Exterior wash"}, Price: decimal.RequireFromString("250.50")},
				{Service: models.Service{Name: "Interior detail"}, Price: decimal.NewFromInt(400)},
			},
		},
		{
			ID:        42,
			Customer:  models.Customer{IsCorporate: true, CompanyName: "Blue Nile Logistics", PhoneNumber: "+251115000000"},
			Status:    models.JobStatusPending,
			CreatedAt: time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := WriteJobs(&buf, jobs); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and two rows, got %d", len(rows))
	}
	if rows[0][0] != "Job ID" || rows[0][9] != "Payment" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[2] != "Jane Doe" || first[4] != "AA-123-ET" || first[5] != "Toyota Corolla" {
		t.Fatalf("unexpected row %v", first)
	}
	if first[6] != "Exterior wash, Interior detail" || first[8] != "PAID" || first[9] != "CARD (TX-1)" {
		t.Fatalf("unexpected row %v", first)
	}
	total, err := f.GetCellValue(SheetName, "H2", excelize.Options{RawCellValue: true})
	if err != nil || total != "650.5" {
		t.Fatalf("unexpected total %q %v", total, err)
	}
	if rows[2][2] != "Blue Nile Logistics" {
		t.Fatalf("unexpected corporate name %v", rows[2])
	}
}

func TestWriteJobsAppliesSheetFormatting(t *testing.T) {
	jobs := []models.Job{{
		ID:        7,
		Status:    models.JobStatusQC,
		CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		Items:     []models.JobItem{{Service: models.Service{Name: "Exterior wash"}, Price: decimal.NewFromInt(250)}},
	}}

	var buf bytes.Buffer
	if err := WriteJobs(&buf, jobs); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellStyle(SheetName, "A1")
	if err != nil || header == 0 {
		t.Fatalf("header must carry a style, got %d %v", header, err)
	}
	total, err := f.GetCellStyle(SheetName, "H2")
	if err != nil || total == 0 || total == header {
		t.Fatalf("total must carry the money style, got %d %v", total, err)
	}
	width, err := f.GetColWidth(SheetName, "G")
	if err != nil || width != 40 {
		t.Fatalf("services column width %v %v", width, err)
	}
}

func TestWriteJobsWithoutJobsWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJobs(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected header only, got %v %v", rows, err)
	}
}
