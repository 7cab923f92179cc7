package checkout

import "strings"

// countryCallingCode is the fixed calling code applied to local numbers.
// The truck only takes New Zealand numbers; this is not configurable.
const countryCallingCode = "+64"

// minPhoneLength is the minimum accepted length of the raw input.
const minPhoneLength = 8

// NormalizePhone rewrites a raw phone number into E.164 form. Numbers already
// starting with "+" pass through unchanged; a leading "0" is replaced by the
// country calling code; anything else gets the code prepended verbatim.
func NormalizePhone(raw string) string {
	phone := strings.TrimSpace(raw)

	if strings.HasPrefix(phone, "+") {
		return phone
	}
	if strings.HasPrefix(phone, "0") {
		return countryCallingCode + phone[1:]
	}
	return countryCallingCode + phone
}
