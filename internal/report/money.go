package report

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMoney parses a monetary amount for exposure math. Currency symbols
// and thousands separators are stripped first; anything still unparseable
// reports ok=false and counts as zero exposure.
func ParseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatUSD renders an amount as $1,234.56. Negative amounts keep the sign
// after the symbol: $-12.00.
func FormatUSD(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	if len(whole) > 3 {
		var b strings.Builder
		lead := len(whole) % 3
		if lead > 0 {
			b.WriteString(whole[:lead])
		}
		for i := lead; i < len(whole); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(whole[i : i+3])
		}
		whole = b.String()
	}

	return fmt.Sprintf("$%s%s%s", sign, whole, frac)
}
