// Package document renders printable voucher documents.
package document

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
)

const (
	qrImageName = "voucher-qr"
	qrPixels    = 256
	qrSizeMM    = 45.0
	timeLayout  = "2006-01-02 15:04 MST"
	dateLayout  = "2006-01-02"
)

// PDFRenderer renders a voucher as a one page A4 PDF with its QR code
type PDFRenderer struct {
	location *time.Location
	logger   *zap.Logger
}

// NewPDFRenderer creates a renderer that prints times in loc (UTC when nil)
func NewPDFRenderer(loc *time.Location, logger *zap.Logger) *PDFRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &PDFRenderer{location: loc, logger: logger}
}

// Extension implements port.DocumentRenderer
func (r *PDFRenderer) Extension() string { return ".pdf" }

// ContentType implements port.DocumentRenderer
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

// Render implements port.DocumentRenderer
func (r *PDFRenderer) Render(ctx context.Context, doc *port.VoucherDocument) ([]byte, error) {
	if doc == nil || doc.Voucher == nil {
		return nil, fmt.Errorf("no voucher to render")
	}
	v := doc.Voucher

	payload := v.QRCode
	if payload == "" {
		payload = v.VoucherNumber
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, qrPixels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Voucher "+v.VoucherNumber, true)
	pdf.SetCreator("booking-voucher", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Cell(0, 10, "BOOKING VOUCHER")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, v.VoucherNumber)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, "Confirmation code: "+tr(v.ConfirmationCode))
	pdf.Ln(10)

	pdf.RegisterImageOptionsReader(qrImageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	_, _, right, _ := pdf.GetMargins()
	pdf.ImageOptions(qrImageName, pageW-right-qrSizeMM, 20, qrSizeMM, qrSizeMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	r.section(pdf, tr, "Booking", [][2]string{
		{"Type", string(v.BookingType)},
		{"Status", string(v.Status)},
		{"Valid from", r.formatTime(v.ValidFrom)},
		{"Valid until", r.formatTime(v.ValidUntil)},
	})
	if lines := r.detailLines(v.Details); len(lines) > 0 {
		r.section(pdf, tr, "Details", lines)
	}

	r.section(pdf, tr, "Guest", [][2]string{
		{"Name", v.Customer.Name},
		{"Email", v.Customer.Email},
		{"Phone", v.Customer.Phone},
	})
	r.section(pdf, tr, "Service", [][2]string{
		{"Name", v.Asset.Name},
		{"Address", v.Asset.Address},
	})
	if v.Asset.Description != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(v.Asset.Description), "", "", false)
		pdf.Ln(2)
	}

	if p := doc.Partner; p != nil {
		r.section(pdf, tr, "Provided by", [][2]string{
			{"Partner", p.Name},
			{"Phone", p.Phone},
			{"Email", p.Email},
			{"Address", p.Address},
		})
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Present this voucher at the point of service. It can be redeemed once within the validity window shown above.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error("Failed to render voucher PDF",
			zap.String("voucher_number", v.VoucherNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}

	r.logger.Debug("Voucher PDF rendered",
		zap.String("voucher_number", v.VoucherNumber),
		zap.Int("size", buf.Len()))
	return buf.Bytes(), nil
}

// section prints a heading and label/value rows, skipping empty values
func (r *PDFRenderer) section(pdf *gofpdf.Fpdf, tr func(string) string, title string, rows [][2]string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, tr(title))
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.CellFormat(35, 6, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

func (r *PDFRenderer) detailLines(d entity.BookingDetails) [][2]string {
	switch d := d.(type) {
	case entity.ActivityDetails:
		return [][2]string{
			{"Activity date", r.formatDate(d.ActivityDate)},
			{"Participants", count(d.Participants)},
		}
	case entity.EventDetails:
		return [][2]string{
			{"Event date", r.formatTime(d.EventDate)},
			{"Tickets", count(d.TicketCount)},
			{"Seat", d.Seat},
		}
	case entity.RestaurantDetails:
		return [][2]string{
			{"Reservation", r.formatTime(d.ReservationAt)},
			{"Party size", count(d.PartySize)},
		}
	case entity.VehicleDetails:
		return [][2]string{
			{"Pick-up", r.formatTime(d.PickupAt)},
			{"Return", r.formatTime(d.ReturnAt)},
			{"Location", d.PickupLocation},
		}
	case entity.AccommodationDetails:
		return [][2]string{
			{"Check-in", r.formatDate(d.CheckIn)},
			{"Check-out", r.formatDate(d.CheckOut)},
			{"Guests", count(d.Guests)},
			{"Room", d.RoomType},
		}
	case entity.PackageDetails:
		return [][2]string{
			{"Start", r.formatDate(d.StartDate)},
			{"End", r.formatDate(d.EndDate)},
			{"Travelers", count(d.Travelers)},
		}
	}
	return nil
}

func (r *PDFRenderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(timeLayout)
}

func (r *PDFRenderer) formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(r.location).Format(dateLayout)
}

func count(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// Verify interface compliance
var _ port.DocumentRenderer = (*PDFRenderer)(nil)
