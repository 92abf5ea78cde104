package domain

import (
	"fmt"
	"time"
)

// Invoice status constants.
const (
	InvoiceStatusIssued = "issued"
)

// Invoice is the immutable financial document record for a paid order. At
// most one row exists per order; the invoice number, once assigned, is never
// reissued. Regeneration replaces the document, never the number.
type Invoice struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	InvoiceNumber string    `json:"invoice_number"`
	PDFURL        string    `json:"pdf_url"`
	TotalAmount   int64     `json:"total_amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FormatInvoiceNumber renders a monotonic sequence value as the
// human-readable invoice number.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("INV-%04d", seq)
}
