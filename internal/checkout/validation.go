package checkout

import (
	"errors"
	"regexp"
	"strings"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^[1-9][0-9]{9}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// Form is what the customer submits on the checkout page. Phone, when set,
// takes precedence over the phone stored on the address.
type Form struct {
	Address *domain.Address `json:"address"`
	Phone   string          `json:"phone,omitempty"`
	Email   string          `json:"email,omitempty"`
	AddOns  AddOns          `json:"add_ons"`
}

// ValidatePhone is the check run when the phone field loses focus.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimSpace(phone))
}

func ValidateEmail(email string) bool {
	return validate.Var(strings.TrimSpace(email), "required,email") == nil
}

// ValidateAddress checks an address before it is saved to the address book.
func ValidateAddress(a domain.Address) error {
	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		verr.add(strings.ToLower(fe.Field()), fieldMessage(fe.Tag()))
	}
	return verr
}

func fieldMessage(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "phone10":
		return "must be 10 digits and not start with 0"
	case "email":
		return "is not a valid email address"
	default:
		return "is invalid"
	}
}

// validateForm resolves the effective address and phone of a checkout form.
func validateForm(f Form) (domain.Address, string, error) {
	verr := &ValidationError{}

	var addr domain.Address
	if f.Address == nil || strings.TrimSpace(f.Address.Line) == "" {
		verr.add("address", "is required")
	} else {
		addr = *f.Address
	}

	phone := strings.TrimSpace(f.Phone)
	if phone == "" {
		phone = strings.TrimSpace(addr.Phone)
	}
	switch {
	case phone == "":
		verr.add("phone", fieldMessage("required"))
	case !ValidatePhone(phone):
		verr.add("phone", fieldMessage("phone10"))
	}

	email := strings.TrimSpace(f.Email)
	if email == "" {
		email = strings.TrimSpace(addr.Email)
	}
	if email != "" && !ValidateEmail(email) {
		verr.add("email", fieldMessage("email"))
	}

	if len(verr.Fields) > 0 {
		return domain.Address{}, "", verr
	}
	addr.Phone = phone
	addr.Email = email
	return addr, phone, nil
}
