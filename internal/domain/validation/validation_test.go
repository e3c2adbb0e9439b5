package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestValidateField(t *testing.T) {
	v := New()
	email := Field{Name: "email", Label: "Email", Kind: KindEmail, Required: true}
	phone := Field{Name: "phone", Label: "Phone", Kind: KindPhone, Required: true}
	postal := Field{Name: "postalCode", Label: "ZIP Code", Kind: KindPostalCode, Required: true}
	name := Field{Name: "firstName", Label: "First Name", Required: true}
	notes := Field{Name: "requirements"}

	tests := []struct {
		name   string
		field  Field
		value  string
		valid  bool
		reason string
	}{
		{"simple email", email, "a@b.c", true, ""},
		{"email without at", email, "abc", false, "Please enter a valid email address"},
		{"email with space", email, "a b@c.d", false, "Please enter a valid email address"},
		{"email missing tld", email, "a@b", false, "Please enter a valid email address"},
		{"empty required email", email, "   ", false, "Email is required"},
		{"local phone with separators", phone, "071-234-5678", true, ""},
		{"international phone", phone, "+94 77 146 1925", true, ""},
		{"phone with parentheses", phone, "(077) 146-1925", true, ""},
		{"lone zero", phone, "0", false, "Please enter a valid phone number"},
		{"letters", phone, "call me", false, "Please enter a valid phone number"},
		{"too long", phone, "+12345678901234567", false, "Please enter a valid phone number"},
		{"zip", postal, "10115", true, ""},
		{"zip plus four", postal, "10115-1234", true, ""},
		{"short zip", postal, "1011", false, "Please enter a valid ZIP code"},
		{"required text", name, "", false, "First Name is required"},
		{"text", name, "Nimal", true, ""},
		{"optional empty", notes, "", true, ""},
		{"optional text", notes, "deliver after 5pm", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.ValidateField(tt.field, tt.value)
			assert.Equal(t, tt.valid, r.Valid)
			assert.Equal(t, tt.reason, r.Reason)
		})
	}
}

func TestValidateField_IsPure(t *testing.T) {
	v := New()
	f := Field{Name: "email", Kind: KindEmail, Required: true}
	first := v.ValidateField(f, "abc")
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, v.ValidateField(f, "abc"))
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "712345678", NormalizePhone("071-234-5678"))
	assert.Equal(t, "+94771461925", NormalizePhone("+94 (77) 146-1925"))
	assert.Equal(t, "", NormalizePhone("0"))
}

func TestValidateForm(t *testing.T) {
	v := New()
	form := CustomerForm{
		FirstName:   "Nimal",
		LastName:    "Perera",
		Email:       "nimal@example.lk",
		Phone:       "0771234567",
		Address:     "12 Galle Road",
		City:        "Colombo",
		PostalCode:  "00300",
		AcceptTerms: true,
	}
	assert.True(t, v.ValidateForm(form).Valid())
	assert.Equal(t, "Nimal Perera", form.FullName())

	form.Email = "nimal"
	form.AcceptTerms = false
	form.City = ""
	res := v.ValidateForm(form)
	assert.False(t, res.Valid())
	assert.Equal(t, map[string]string{
		"email":    "Please enter a valid email address",
		"city":     "City is required",
		TermsField: TermsReason,
	}, res.Errors)
}

func TestRegister_OnForeignValidator(t *testing.T) {
	v := validator.New()
	Register(v)

	type payload struct {
		Email string `validate:"required,storefront_email"`
		Phone string `validate:"required,storefront_phone"`
	}
	assert.NoError(t, v.Struct(payload{Email: "a@b.c", Phone: "0771234567"}))
	assert.Error(t, v.Struct(payload{Email: "a@b", Phone: "0771234567"}))
}
