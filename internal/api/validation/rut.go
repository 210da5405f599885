package validation

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidRUT is returned by NormalizeRUT for malformed or mis-checked RUTs.
var ErrInvalidRUT = errors.New("invalid RUT")

// splitRUT strips dots, hyphens and spaces and separates the body from the
// check digit. The check digit is upper-cased.
func splitRUT(rut string) (body string, dv byte, ok bool) {
	clean := strings.NewReplacer(".", "", "-", "", " ", "").Replace(strings.TrimSpace(rut))
	clean = strings.ToUpper(clean)
	if len(clean) < 2 || len(clean) > 9 {
		return "", 0, false
	}

	body, dv = clean[:len(clean)-1], clean[len(clean)-1]
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return "", 0, false
		}
	}
	if dv != 'K' && (dv < '0' || dv > '9') {
		return "", 0, false
	}
	return body, dv, true
}

// checkDigit computes the modulo-11 verifier for a RUT body.
func checkDigit(body string) byte {
	sum, factor := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}

	switch r := 11 - sum%11; r {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + r)
	}
}

// ValidateRUT reports whether rut is a well-formed Chilean RUT with a correct
// check digit. Dots, a hyphen and a lowercase k are accepted.
func ValidateRUT(rut string) bool {
	body, dv, ok := splitRUT(rut)
	if !ok {
		return false
	}
	if n, err := strconv.Atoi(body); err != nil || n == 0 {
		return false
	}
	return checkDigit(body) == dv
}

// NormalizeRUT returns rut in canonical "12345678-5" form, without dots or
// leading zeros.
func NormalizeRUT(rut string) (string, error) {
	if !ValidateRUT(rut) {
		return "", ErrInvalidRUT
	}
	body, dv, _ := splitRUT(rut)
	n, _ := strconv.Atoi(body)
	return strconv.Itoa(n) + "-" + string(dv), nil
}
