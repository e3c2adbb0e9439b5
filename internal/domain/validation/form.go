package validation

import "strings"

// TermsReason is reported when the terms flag is not set
const TermsReason = "You must agree to the terms and conditions"

// TermsField is the error key used for the terms flag
const TermsField = "terms"

// CustomerForm is the checkout form
type CustomerForm struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Address      string
	City         string
	PostalCode   string
	Requirements string
	AcceptTerms  bool
}

// FullName joins first and last name
func (f CustomerForm) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.FirstName) + " " + strings.TrimSpace(f.LastName))
}

// CheckoutFields are the declared fields of the checkout form in display order
var CheckoutFields = []Field{
	{Name: "firstName", Label: "First Name", Kind: KindText, Required: true},
	{Name: "lastName", Label: "Last Name", Kind: KindText, Required: true},
	{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
	{Name: "phone", Label: "Phone", Kind: KindPhone, Required: true},
	{Name: "address", Label: "Address", Kind: KindText, Required: true},
	{Name: "city", Label: "City", Kind: KindText, Required: true},
	{Name: "postalCode", Label: "ZIP Code", Kind: KindPostalCode, Required: true},
	{Name: "requirements", Label: "Requirements", Kind: KindText},
}

// FormResult maps field names to failure reasons
type FormResult struct {
	Errors map[string]string
}

// Valid reports whether every field passed
func (r FormResult) Valid() bool {
	return len(r.Errors) == 0
}

func (f CustomerForm) value(name string) string {
	switch name {
	case "firstName":
		return f.FirstName
	case "lastName":
		return f.LastName
	case "email":
		return f.Email
	case "phone":
		return f.Phone
	case "address":
		return f.Address
	case "city":
		return f.City
	case "postalCode":
		return f.PostalCode
	case "requirements":
		return f.Requirements
	}
	return ""
}

// ValidateForm checks every checkout field plus the terms flag
func (val *Validator) ValidateForm(form CustomerForm) FormResult {
	res := FormResult{Errors: map[string]string{}}
	for _, field := range CheckoutFields {
		if r := val.ValidateField(field, form.value(field.Name)); !r.Valid {
			res.Errors[field.Name] = r.Reason
		}
	}
	if !form.AcceptTerms {
		res.Errors[TermsField] = TermsReason
	}
	return res
}
