package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// corporateMarkers are removed from company names, longest forms after their
// parenthesized abbreviations.
var corporateMarkers = []string{
	"(재)", "재단법인",
	"(주)", "주식회사",
	"(사)", "사단법인",
	"(유)", "유한회사",
	"(합자)", "합자회사",
	"(합)", "합명회사",
}

// NormalizeCompany strips corporate-form markers, spells out "&" and
// collapses whitespace so the same participant matches across notices.
func NormalizeCompany(name string) string {
	name = strings.TrimSpace(name)
	for _, m := range corporateMarkers {
		name = strings.ReplaceAll(name, m, "")
	}
	name = strings.ReplaceAll(name, "&", "and")
	return strings.Join(strings.Fields(name), " ")
}

var moneyNoise = strings.NewReplacer(",", "", "원", "", " ", "", "\t", "", "\u00a0", "")

// ParseMoney parses an amount in won such as "1,234,000원".
func ParseMoney(s string) (decimal.Decimal, error) {
	clean := moneyNoise.Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

var parenNumber = regexp.MustCompile(`\((-?[0-9.]+)\)`)

// ParsePercent parses a rate cell. "87.745%", "87.745" and "(87.745)" all
// yield 87.745; the value is returned as written, without normalization.
func ParsePercent(s string) (float64, error) {
	v := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	if m := parenNumber.FindStringSubmatch(v); m != nil {
		v = m[1]
	}
	if v == "" {
		return 0, fmt.Errorf("empty rate")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing rate %q: %w", s, err)
	}
	return f, nil
}

// ParseAssessedRate parses a reserve/base rate. Sources write it either as a
// deviation from 100 (-2..2) or as a percentage (98..102). The result is a
// fraction; ok is false for values in neither form.
func ParseAssessedRate(s string) (rate float64, ok bool, err error) {
	v, err := ParsePercent(s)
	if err != nil {
		return 0, false, err
	}
	switch {
	case v >= -2 && v <= 2:
		return (100 + v) / 100, true, nil
	case v >= 98 && v <= 102:
		return v / 100, true, nil
	default:
		return 0, false, nil
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	time.RFC3339,
}

// ParseTime parses a submission timestamp in any of the layouts seen in
// exports. Times without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
