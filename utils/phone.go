package utils

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizeMobile parses a raw mobile number and returns it in E.164 form.
// The gateway rejects customer phone numbers that are not E.164; stored
// mobiles may be bare national digits, so default to the store's region.
func NormalizeMobile(raw string, defaultRegion string) (string, error) {
	if defaultRegion == "" {
		defaultRegion = "IN"
	}
	num, err := libphonenumber.Parse(strings.TrimSpace(raw), defaultRegion)
	if err != nil {
		return "", err
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
