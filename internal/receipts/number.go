package receipts

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const defaultPrefix = "ORG"

// Number builds RCP-<org prefix>-<yyyymmdd>-<6 digit suffix>. The prefix is up to four
// letters or digits of the organization name, uppercased.
func Number(organizationName string, at time.Time) string {
	return fmt.Sprintf("RCP-%s-%s-%06d",
		prefix(organizationName),
		at.UTC().Format("20060102"),
		at.UnixMilli()%1_000_000,
	)
}

func prefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == 4 {
			break
		}
	}
	if b.Len() == 0 {
		return defaultPrefix
	}
	return b.String()
}
