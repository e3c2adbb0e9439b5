package relay

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ltec/orderrelay/internal/domain/order"
)

const (
	notSpecified = "Not specified"
	noMessage    = "No additional message"
)

const inquiryTemplate = `🏢 *New Product Inquiry from L-Tec Solutions Website*

👤 *Customer Details:*
• Name: {{.Name}}
• Email: {{.Email}}
• Phone: {{.Phone}}

📦 *Product Information:*
• Product: {{or_default .Product "` + notSpecified + `"}}
• Quantity: {{or_default .Quantity "` + notSpecified + `"}}
• Message: {{or_default .Message "` + noMessage + `"}}

📅 *Inquiry Date:* {{.Date}}

Please contact the customer as soon as possible.`

// Formatter renders a submission into the business notification text
type Formatter struct {
	tmpl     *template.Template
	location *time.Location
	layout   string
}

type messageData struct {
	Name     string
	Email    string
	Phone    string
	Product  string
	Quantity string
	Message  string
	Date     string
}

// NewFormatter parses the inquiry template. Timestamps are rendered in loc.
func NewFormatter(loc *time.Location, layout string) (*Formatter, error) {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = "1/2/2006, 3:04:05 PM"
	}
	tmpl, err := template.New("inquiry").Funcs(template.FuncMap{
		"or_default": func(v, def string) string {
			if strings.TrimSpace(v) == "" {
				return def
			}
			return v
		},
	}).Parse(inquiryTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse inquiry template: %w", err)
	}
	return &Formatter{tmpl: tmpl, location: loc, layout: layout}, nil
}

// Format renders sub as submitted at at
func (f *Formatter) Format(sub order.Submission, at time.Time) (string, error) {
	data := messageData{
		Name:     strings.TrimSpace(sub.Name),
		Email:    strings.TrimSpace(sub.Email),
		Phone:    strings.TrimSpace(sub.Phone),
		Product:  sub.Product,
		Quantity: quantityText(sub.Quantity),
		Message:  sub.Message,
		Date:     at.In(f.location).Format(f.layout),
	}
	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render inquiry: %w", err)
	}
	return buf.String(), nil
}

// quantityText treats a zero quantity as not given
func quantityText(q string) string {
	q = strings.TrimSpace(q)
	if q == "0" {
		return ""
	}
	return q
}
