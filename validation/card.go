// Package validation holds pure checks for payment credentials and admin forms.
// Every check is total: it returns false on malformed input instead of failing.
package validation

import (
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// IsValidCreditCard reports whether number is 13-19 digits and passes the Luhn checksum.
// Spaces and dashes are ignored.
func IsValidCreditCard(number string) bool {
	digits := stripSeparators(number)
	if len(digits) < 13 || len(digits) > 19 || !allDigits(digits) {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// IsValidExpiryDate reports whether s parses as MM/YY, MM/YYYY or MMYY and the
// card is still valid this month.
func IsValidExpiryDate(s string) bool {
	return isValidExpiryAt(s, time.Now())
}

func isValidExpiryAt(s string, now time.Time) bool {
	month, year, ok := parseExpiry(strings.TrimSpace(s))
	if !ok {
		return false
	}
	// Cards are valid through the last day of the expiry month.
	firstOfNext := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	return now.Before(firstOfNext)
}

func parseExpiry(s string) (month, year int, ok bool) {
	var mm, yy string
	switch {
	case strings.Contains(s, "/"):
		parts := strings.SplitN(s, "/", 2)
		mm, yy = parts[0], parts[1]
	case len(s) == 4:
		mm, yy = s[:2], s[2:]
	default:
		return 0, 0, false
	}
	if len(mm) < 1 || len(mm) > 2 || !allDigits(mm) || !allDigits(yy) {
		return 0, 0, false
	}
	month, _ = strconv.Atoi(mm)
	if month < 1 || month > 12 {
		return 0, 0, false
	}
	switch len(yy) {
	case 2:
		year, _ = strconv.Atoi(yy)
		year += 2000
	case 4:
		year, _ = strconv.Atoi(yy)
	default:
		return 0, 0, false
	}
	return month, year, true
}

// IsValidCVV reports whether code is 3 or 4 digits.
func IsValidCVV(code string) bool {
	code = strings.TrimSpace(code)
	return (len(code) == 3 || len(code) == 4) && allDigits(code)
}

// IsValidEmail reports whether s is a single bare address.
func IsValidEmail(s string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return addr.Address == strings.TrimSpace(s)
}

// IsValidRoutingNumber reports whether s is a 9 digit bank routing number.
func IsValidRoutingNumber(s string) bool {
	s = stripSeparators(s)
	return len(s) == 9 && allDigits(s)
}

// IsValidAccountNumber reports whether s is 4-17 digits.
func IsValidAccountNumber(s string) bool {
	s = stripSeparators(s)
	return len(s) >= 4 && len(s) <= 17 && allDigits(s)
}

// LastFour returns the last four digits of a card or account number.
func LastFour(number string) string {
	digits := stripSeparators(number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
