package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/ltec/orderrelay/internal/domain/cart"
	"github.com/ltec/orderrelay/internal/domain/validation"
	"github.com/ltec/orderrelay/internal/storefront/apiclient"
	"github.com/ltec/orderrelay/internal/storefront/catalog"
	"github.com/ltec/orderrelay/internal/storefront/checkout"
	"github.com/ltec/orderrelay/internal/storefront/view"
)

var errUsage = errors.New("invalid arguments, run with -h for usage")

type statusChecker interface {
	GetConnectionStatus(ctx context.Context) apiclient.ConnectionStatus
}

type app struct {
	out      io.Writer
	cart     *cart.Store
	catalog  *catalog.Catalog
	client   statusChecker
	checkout *checkout.Service
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "catalog":
		return a.listCatalog()
	case "add":
		return a.add(ctx, rest)
	case "remove":
		if len(rest) != 1 {
			return errUsage
		}
		if err := a.cart.Remove(ctx, rest[0]); err != nil {
			return err
		}
		return a.show()
	case "set":
		if len(rest) != 2 {
			return errUsage
		}
		qty, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}
		if err := a.cart.SetQuantity(ctx, rest[0], qty); err != nil {
			return err
		}
		return a.show()
	case "show":
		return a.show()
	case "clear":
		if err := a.cart.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Cart cleared.")
		return nil
	case "status":
		return a.status(ctx)
	case "checkout":
		return a.placeOrder(ctx, rest)
	case "buy":
		return a.buyNow(ctx, rest)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func (a *app) listCatalog() error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
	for _, p := range a.catalog.Products() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, view.Money(p.Price))
	}
	return tw.Flush()
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	p, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}
	qty := 1
	if len(args) == 2 {
		if qty, err = strconv.Atoi(args[1]); err != nil || qty < 1 {
			return fmt.Errorf("quantity must be a positive number: %w", errUsage)
		}
	}
	for i := 0; i < qty; i++ {
		if err := a.cart.Add(ctx, p.CartProduct()); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "Added %s to cart.\n", p.Name)
	return a.show()
}

func (a *app) show() error {
	return view.RenderText(a.out, view.Build(a.cart))
}

func yesNo(b bool) string {
	if b {
		return "ready"
	}
	return "unavailable"
}

func (a *app) status(ctx context.Context) error {
	st := a.client.GetConnectionStatus(ctx)
	fmt.Fprintf(a.out, "Backend:  %s\n", yesNo(st.Backend))
	if st.Errors.Backend != "" {
		fmt.Fprintf(a.out, "          %s\n", st.Errors.Backend)
	}
	fmt.Fprintf(a.out, "WhatsApp: %s\n", yesNo(st.WhatsApp))
	if st.Errors.WhatsApp != "" {
		fmt.Fprintf(a.out, "          %s\n", st.Errors.WhatsApp)
	}
	return nil
}

func parseForm(args []string, errOut io.Writer) (validation.CustomerForm, error) {
	var f validation.CustomerForm
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&f.FirstName, "first-name", "", "First name")
	fs.StringVar(&f.LastName, "last-name", "", "Last name")
	fs.StringVar(&f.Email, "email", "", "Email address")
	fs.StringVar(&f.Phone, "phone", "", "Phone number")
	fs.StringVar(&f.Address, "address", "", "Street address")
	fs.StringVar(&f.City, "city", "", "City")
	fs.StringVar(&f.PostalCode, "postal-code", "", "Five digit postal code")
	fs.StringVar(&f.Requirements, "requirements", "", "Additional requirements")
	fs.BoolVar(&f.AcceptTerms, "accept-terms", false, "Agree to the terms and conditions")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, errUsage
	}
	return f, nil
}

func (a *app) placeOrder(ctx context.Context, args []string) error {
	form, err := parseForm(args, a.out)
	if err != nil {
		return err
	}
	res, err := a.checkout.PlaceOrder(ctx, form)
	return a.report(res, err)
}

func (a *app) buyNow(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	p, err := a.catalog.Find(args[0])
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("quantity must be a number: %w", errUsage)
	}
	form, err := parseForm(args[2:], a.out)
	if err != nil {
		return err
	}
	res, err := a.checkout.BuyNow(ctx, form, p.CartProduct(), qty)
	return a.report(res, err)
}

// report prints field errors or the notices of a placed order
func (a *app) report(res *checkout.Result, err error) error {
	var formErr *checkout.InvalidFormError
	if errors.As(err, &formErr) {
		fields := make([]string, 0, len(formErr.Fields))
		for name := range formErr.Fields {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, name := range fields {
			fmt.Fprintf(a.out, "  %s: %s\n", name, formErr.Fields[name])
		}
		return errors.New("please correct the highlighted fields")
	}
	if err != nil {
		return err
	}

	for _, n := range res.Notices {
		fmt.Fprintf(a.out, "[%s] %s\n", n.Level, n.Message)
	}
	return nil
}
