package export

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/washops/backend/internal/lifecycle"
	"github.com/example/washops/backend/internal/models"
)

// SheetName is the worksheet holding the job history.
const SheetName = "Jobs"

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var jobHeaders = []string{
	"Job ID", "Date", "Customer", "Phone", "Plate", "Vehicle", "Services", "Total", "Status", "Payment",
}

// WriteJobs writes jobs as an XLSX workbook to w, one row per job.
func WriteJobs(w io.Writer, jobs []models.Job) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return errors.Wrap(err, "create sheet")
	}
	f.SetActiveSheet(index)
	if f.GetSheetName(0) != SheetName {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return errors.Wrap(err, "drop default sheet")
		}
	}

	header := make([]any, len(jobHeaders))
	for i, h := range jobHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return errors.Wrap(err, "write header")
	}

	for i, job := range jobs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.WithStack(err)
		}
		row := jobRow(job)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "write job %d", job.ID)
		}
	}

	if err := format(f, len(jobs)); err != nil {
		return err
	}

	return errors.Wrap(f.Write(w), "write workbook")
}

var columnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "A", 10},
	{"B", "F", 18},
	{"G", "G", 40},
	{"H", "J", 15},
}

// format styles the header row and the total column of a sheet holding n jobs.
func format(f *excelize.File, n int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
	})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}
	if err := f.SetRowStyle(SheetName, 1, 1, headerStyle); err != nil {
		return errors.Wrap(err, "style header")
	}

	if n > 0 {
		money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
		if err != nil {
			return errors.Wrap(err, "create money style")
		}
		last, err := excelize.CoordinatesToCellName(8, n+1)
		if err != nil {
			return errors.WithStack(err)
		}
		if err := f.SetCellStyle(SheetName, "H2", last, money); err != nil {
			return errors.Wrap(err, "style totals")
		}
	}

	for _, c := range columnWidths {
		if err := f.SetColWidth(SheetName, c.from, c.to, c.width); err != nil {
			return errors.Wrapf(err, "set width %s:%s", c.from, c.to)
		}
	}
	return nil
}

func jobRow(job models.Job) []any {
	services := make([]string, 0, len(job.Items))
	for _, item := range job.Items {
		services = append(services, item.Service.Name)
	}
	vehicle := strings.TrimSpace(job.Car.Make + " " + job.Car.Model)
	payment := string(job.PaymentMethod)
	if job.TransactionReference != "" {
		payment += " (" + job.TransactionReference + ")"
	}
	return []any{
		job.ID,
		job.CreatedAt.Format("2006-01-02 15:04"),
		job.Customer.DisplayName(),
		job.Customer.PhoneNumber,
		job.Car.PlateNumber,
		vehicle,
		strings.Join(services, ", "),
		lifecycle.Total(&job).InexactFloat64(),
		string(job.Status),
		payment,
	}
}
