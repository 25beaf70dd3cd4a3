package claims

// npiPrefix is the card-issuer prefix prepended before the Luhn check. An NPI
// is the last 10 digits of a 15-digit card number beginning 80840.
const npiPrefix = "80840"

// ValidNPI reports whether npi is a structurally valid National Provider
// Identifier: exactly 10 digits, first digit 1 or 2, and a correct Luhn
// check digit computed over the 80840-prefixed number.
func ValidNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	if npi[0] != '1' && npi[0] != '2' {
		return false
	}
	for i := 0; i < len(npi); i++ {
		if npi[i] < '0' || npi[i] > '9' {
			return false
		}
	}
	return luhnValid(npiPrefix + npi)
}

// luhnValid runs the standard Luhn mod-10 check over a digit string,
// doubling every second digit from the right (excluding the check digit).
func luhnValid(digits string) bool {
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

// ValidTaxID reports whether id is a 9-digit employer identification number.
// Hyphens are not accepted; callers normalize before validating.
func ValidTaxID(id string) bool {
	if len(id) != 9 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
