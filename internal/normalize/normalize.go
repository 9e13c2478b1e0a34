// Package normalize converts locale-specific text from procurement pages into
// canonical values: ISO dates, datetimes, amounts and currency codes.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// DefaultCurrency is assumed by ParseMoneyDefault when no currency token is present.
const DefaultCurrency = "GEL"

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

var (
	datePattern     = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})`)
	datetimePattern = regexp.MustCompile(`(\d{2})\.(\d{2})\.(\d{4})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?`)
	amountStrip     = regexp.MustCompile("[^0-9.,]")
	currencyPattern = regexp.MustCompile("[0-9][0-9`',.]*\\s*(\\p{L}{2,4})(?:$|[^\\p{L}])")
	percentPattern  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	fileNameStrip   = regexp.MustCompile(`[^0-9A-Za-zა-ჰ]+`)
)

// currencyAliases maps local currency spellings to ISO codes.
var currencyAliases = map[string]string{
	"ლარ":  "GEL",
	"ლარი": "GEL",
	"лари": "GEL",
	"лар":  "GEL",
}

// isoCurrencies are codes recognized in any letter case.
var isoCurrencies = map[string]bool{
	"GEL": true, "USD": true, "EUR": true, "GBP": true, "RUB": true, "TRY": true, "CHF": true,
}

// Money is an amount with its currency code.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Normalizer parses locale text and reports malformed input to its logger.
type Normalizer struct {
	logger *zap.Logger
}

// New creates a Normalizer. A nil logger disables warnings.
func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

var silent = New(nil)

// ParseDate returns the first DD.MM.YYYY date found in text as YYYY-MM-DD.
func ParseDate(text string) (string, bool) { return silent.ParseDate(text) }

// ParseDateTime returns "DD.MM.YYYY HH:MM" as "YYYY-MM-DD HH:MM:SS", falling
// back to ParseDate when no time component is present.
func ParseDateTime(text string) (string, bool) { return silent.ParseDateTime(text) }

// ParseAmount parses a formatted number. Zero means unknown.
func ParseAmount(text string) float64 { return silent.ParseAmount(text) }

// ParseMoney parses an amount followed by an optional currency token.
func ParseMoney(text string) Money { return silent.ParseMoney(text) }

// ParseDate returns the first valid calendar date found in text.
func (n *Normalizer) ParseDate(text string) (string, bool) {
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		t, err := time.Parse("02.01.2006", m[1]+"."+m[2]+"."+m[3])
		if err != nil {
			continue
		}
		return t.Format(dateLayout), true
	}
	if strings.TrimSpace(text) != "" {
		n.logger.Warn("no date in text", zap.String("text", truncate(text)))
	}
	return "", false
}

// ParseDateTime parses a date with an optional HH:MM time.
func (n *Normalizer) ParseDateTime(text string) (string, bool) {
	if m := datetimePattern.FindStringSubmatch(text); m != nil {
		sec := m[6]
		if sec == "" {
			sec = "00"
		}
		raw := m[1] + "." + m[2] + "." + m[3] + " " + pad2(m[4]) + ":" + m[5] + ":" + sec
		if t, err := time.Parse("02.01.2006 15:04:05", raw); err == nil {
			return t.Format(datetimeLayout), true
		}
		n.logger.Warn("malformed datetime", zap.String("text", truncate(text)))
	}
	return n.ParseDate(text)
}

// ParseAmount keeps digits and separators, treats commas as decimal points
// and keeps only the last point when several remain ("1.234.567,89").
func (n *Normalizer) ParseAmount(text string) float64 {
	cleaned := amountStrip.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if strings.Count(cleaned, ".") > 1 {
		last := strings.LastIndex(cleaned, ".")
		cleaned = strings.ReplaceAll(cleaned[:last], ".", "") + cleaned[last:]
	}
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		if strings.TrimSpace(text) != "" {
			n.logger.Warn("malformed amount", zap.String("text", truncate(text)))
		}
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		n.logger.Warn("malformed amount", zap.String("text", truncate(text)), zap.Error(err))
		return 0
	}
	return v
}

// ParseMoney splits "100000.00 ლარი" into 100000 and GEL.
func (n *Normalizer) ParseMoney(text string) Money {
	return Money{
		Amount:   n.ParseAmount(text),
		Currency: n.ParseCurrency(text),
	}
}

// ParseMoneyDefault is ParseMoney with DefaultCurrency when none is present.
func (n *Normalizer) ParseMoneyDefault(text string) Money {
	m := n.ParseMoney(text)
	if m.Currency == "" {
		m.Currency = DefaultCurrency
	}
	return m
}

// ParseCurrency returns the code for the first 2-4 letter run that directly
// follows a number in text. Labels before the amount are ignored.
func (n *Normalizer) ParseCurrency(text string) string {
	m := currencyPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return CurrencyCode(m[1])
}

// CurrencyCode maps a currency token to its ISO code. Unknown tokens are
// returned unchanged apart from surrounding whitespace.
func CurrencyCode(token string) string {
	token = strings.TrimSpace(token)
	if code, ok := currencyAliases[strings.ToLower(token)]; ok {
		return code
	}
	if strings.HasPrefix(token, "ლარ") {
		return "GEL"
	}
	if upper := strings.ToUpper(token); isoCurrencies[upper] {
		return upper
	}
	return token
}

// ParsePercent returns the first "NN%" value in text.
func ParsePercent(text string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(text string) string {
	return strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")
}

// CleanFileName replaces characters outside Latin/Georgian letters and digits
// with underscores, keeping the extension.
func CleanFileName(name string) string {
	name = strings.TrimSpace(name)
	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 && len(name)-i <= 6 && isAlnum(name[i+1:]) {
		ext = strings.ToLower(name[i:])
		name = name[:i]
	}
	cleaned := strings.Trim(fileNameStrip.ReplaceAllString(name, "_"), "_")
	if cleaned == "" {
		cleaned = "file"
	}
	return cleaned + ext
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func truncate(s string) string {
	const max = 80
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "..."
	}
	return s
}
