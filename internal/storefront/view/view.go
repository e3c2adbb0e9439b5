// Package view turns cart state into a display model and renders it as text.
package view

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/ltec/orderrelay/internal/domain/cart"
)

// CurrencyPrefix precedes every formatted amount
const CurrencyPrefix = "Rs. "

var printer = message.NewPrinter(language.English)

// Amount formats d with thousands separators and at most two decimals
func Amount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
}

// Money is Amount with the currency prefix
func Money(d decimal.Decimal) string {
	return CurrencyPrefix + Amount(d)
}

// Source is the cart state a view is built from
type Source interface {
	Items() []cart.Item
	Totals() cart.Totals
	TaxRate() decimal.Decimal
	MaxQuantity() int
}

type Line struct {
	ID           string
	Name         string
	Image        string
	Quantity     int
	UnitPrice    string
	LineTotal    string
	CanIncrement bool
}

// CartView is everything a cart page needs, already formatted
type CartView struct {
	Lines         []Line
	Empty         bool
	BuyNowEnabled bool
	Count         int
	Subtotal      string
	TaxLabel      string
	Tax           string
	Total         string
}

// Build derives a CartView from src. It has no side effects.
func Build(src Source) CartView {
	items := src.Items()
	totals := src.Totals()
	maxQty := src.MaxQuantity()

	v := CartView{
		Lines:         make([]Line, 0, len(items)),
		Empty:         len(items) == 0,
		BuyNowEnabled: len(items) > 0,
		Count:         totals.Count,
		Subtotal:      Money(totals.Subtotal),
		TaxLabel:      fmt.Sprintf("Tax (%s%%)", src.TaxRate().Shift(2).String()),
		Tax:           Money(totals.Tax),
		Total:         Money(totals.Total),
	}
	for _, it := range items {
		v.Lines = append(v.Lines, Line{
			ID:           it.ID,
			Name:         it.Name,
			Image:        it.ImageRef,
			Quantity:     it.Quantity,
			UnitPrice:    Money(it.UnitPrice),
			LineTotal:    Money(it.LineTotal()),
			CanIncrement: it.Quantity < maxQty,
		})
	}
	return v
}

// SummaryLines returns one "name xN - Rs. amount" entry per line
func (v CartView) SummaryLines() []string {
	out := make([]string, 0, len(v.Lines))
	for _, l := range v.Lines {
		out = append(out, fmt.Sprintf("%s x%d - %s", l.Name, l.Quantity, l.LineTotal))
	}
	return out
}

// RenderText writes v as a table followed by the totals
func RenderText(w io.Writer, v CartView) error {
	if v.Empty {
		_, err := io.WriteString(w, "Your cart is empty.\n")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tQTY\tPRICE\tTOTAL")
	for _, l := range v.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", l.ID, l.Name, l.Quantity, l.UnitPrice, l.LineTotal)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nItems: %d\n", v.Count)
	fmt.Fprintf(&b, "Subtotal: %s\n", v.Subtotal)
	fmt.Fprintf(&b, "%s: %s\n", v.TaxLabel, v.Tax)
	fmt.Fprintf(&b, "Total: %s\n", v.Total)
	if v.BuyNowEnabled {
		b.WriteString("\nReady to order: run checkout.\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
