package checkout

import (
	"errors"
	"testing"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("9876543210"))
	assert.True(t, ValidatePhone(" 9876543210 "))
	assert.False(t, ValidatePhone("0876543210"))
	assert.False(t, ValidatePhone("12345"))
	assert.False(t, ValidatePhone("98765432101"))
	assert.False(t, ValidatePhone("98765abcde"))
	assert.False(t, ValidatePhone(""))
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("asha@example.com"))
	assert.False(t, ValidateEmail("asha@"))
	assert.False(t, ValidateEmail(""))
}

func TestValidateForm_SeparatePhoneTakesPrecedence(t *testing.T) {
	addr := &domain.Address{Name: "Asha", Line: "12 MG Road", Phone: "12345"}

	got, phone, err := validateForm(Form{Address: addr, Phone: "9876543210"})
	require.NoError(t, err)
	assert.Equal(t, "9876543210", phone)
	assert.Equal(t, "9876543210", got.Phone)
}

func TestValidateForm_FallsBackToAddressPhone(t *testing.T) {
	addr := &domain.Address{Name: "Asha", Line: "12 MG Road", Phone: "9876543210"}

	_, phone, err := validateForm(Form{Address: addr})
	require.NoError(t, err)
	assert.Equal(t, "9876543210", phone)
}

func TestValidateForm_ReportsEveryField(t *testing.T) {
	_, _, err := validateForm(Form{Phone: "12345", Email: "nope"})

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "address")
	assert.Contains(t, verr.Fields, "phone")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateAddress(t *testing.T) {
	ok := domain.Address{Name: "Asha", Line: "12 MG Road", Phone: "9876543210", Email: "asha@example.com"}
	require.NoError(t, ValidateAddress(ok))

	bad := domain.Address{Line: "12 MG Road", Phone: "0123", Email: "x"}
	err := ValidateAddress(bad)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is required", verr.Fields["name"])
	assert.Equal(t, "must be 10 digits and not start with 0", verr.Fields["phone"])
	assert.Equal(t, "is not a valid email address", verr.Fields["email"])
}
