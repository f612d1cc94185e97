package checkout

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/construmax/storefront-backend/internal/order"
)

// Form carries the shipping fields the customer fills in while the checkout
// is in StateEditing.
type Form struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

var (
	phonePattern = regexp.MustCompile(`^[0-9+\-().\s]{7,}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Validate returns human-readable reasons the form cannot progress; an empty
// slice means the form is valid. It never errors.
func (f Form) Validate() []string {
	var reasons []string

	if countNonSpace(f.Name) < 3 {
		reasons = append(reasons, "name must have at least 3 characters")
	}
	if !phonePattern.MatchString(strings.TrimSpace(f.Phone)) {
		reasons = append(reasons, "phone must be at least 7 digits")
	}
	if len(strings.TrimSpace(f.Address)) < 6 {
		reasons = append(reasons, "address must have at least 6 characters")
	}
	if email := strings.TrimSpace(f.Email); email != "" && !emailPattern.MatchString(email) {
		reasons = append(reasons, "email is not valid")
	}

	return reasons
}

func (f Form) customer() order.Customer {
	return order.Customer{
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Address: strings.TrimSpace(f.Address),
		Email:   strings.TrimSpace(f.Email),
		Notes:   strings.TrimSpace(f.Notes),
	}
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
