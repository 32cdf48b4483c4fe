// internal/services/license_document.go
package services

import (
	"encoding/json"
	"encoding/xml"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
)

const RSLNamespace = "https://rslstandard.org/rsl"

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	openScriptPattern  = regexp.MustCompile(`(?is)<script\b.*$`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)

	traversalReplacer = strings.NewReplacer("../", "", `..\`, "")
	unsafeSchemes     = []string{"javascript:", "vbscript:", "data:"}
)

// Sanitize cleans submitted license data. It never fails; Validate decides
// whether the result is acceptable.
func Sanitize(in LicenseInput) LicenseInput {
	in.Name = stripMarkup(in.Name)
	in.Description = stripMarkup(in.Description)
	in.ContentURL = stripTraversal(strings.TrimSpace(in.ContentURL))
	in.ServerURL = safeURL(in.ServerURL)
	in.StandardURL = safeURL(in.StandardURL)

	in.PaymentType = strings.ToLower(strings.TrimSpace(in.PaymentType))
	if in.PaymentType == "" {
		in.PaymentType = string(models.PaymentTypeFree)
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = string(models.CurrencyUSD)
	}
	in.Amount = amountOf(in.Amount)

	in.PermitsUsage = cleanTags(in.PermitsUsage)
	in.PermitsUser = cleanTags(in.PermitsUser)
	in.PermitsGeo = cleanTags(in.PermitsGeo)
	in.ProhibitsUsage = cleanTags(in.ProhibitsUsage)
	in.ProhibitsUser = cleanTags(in.ProhibitsUser)
	in.ProhibitsGeo = cleanTags(in.ProhibitsGeo)
	return in
}

// Validate checks required fields, the closed enums and the amount rules.
func Validate(in LicenseInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.New(apperr.CodeMissingField, "name is required")
	}
	if strings.TrimSpace(in.ContentURL) == "" {
		return apperr.New(apperr.CodeMissingField, "content_url is required")
	}

	pt, ok := models.ParsePaymentType(in.PaymentType)
	if !ok {
		return apperr.Newf(apperr.CodeInvalidPaymentType, "payment type %q is not supported", in.PaymentType)
	}
	if _, ok := models.ParseCurrency(in.Currency); !ok {
		return apperr.Newf(apperr.CodeInvalidCurrency, "currency %q is not supported", in.Currency)
	}

	amount := amountOf(in.Amount)
	if amount < 0 {
		return apperr.New(apperr.CodeInvalidAmount, "amount must not be negative")
	}
	if amount > 0 && pt == models.PaymentTypeFree {
		return apperr.New(apperr.CodeInvalidPaymentType, "a license with an amount needs a paid payment type")
	}
	return nil
}

// RenderXML renders the license as an RSL document.
func RenderXML(l *models.License) string {
	var b strings.Builder

	b.WriteString(xml.Header)
	b.WriteString(`<rsl xmlns="` + RSLNamespace + `">` + "\n")

	b.WriteString(`  <content url="`)
	escape(&b, l.ContentURL)
	b.WriteString(`"`)
	if l.ServerURL != "" {
		b.WriteString(` server="`)
		escape(&b, l.ServerURL)
		b.WriteString(`"`)
	}
	b.WriteString(">\n")

	b.WriteString("    <license>\n")
	if l.Name != "" {
		b.WriteString("      <name>")
		escape(&b, l.Name)
		b.WriteString("</name>\n")
	}
	writeFacet(&b, "permits", "usage", l.PermitsUsage)
	writeFacet(&b, "permits", "user", l.PermitsUser)
	writeFacet(&b, "permits", "geo", l.PermitsGeo)
	writeFacet(&b, "prohibits", "usage", l.ProhibitsUsage)
	writeFacet(&b, "prohibits", "user", l.ProhibitsUser)
	writeFacet(&b, "prohibits", "geo", l.ProhibitsGeo)
	writePayment(&b, l)
	b.WriteString("    </license>\n")

	b.WriteString("  </content>\n")
	b.WriteString("</rsl>\n")
	return b.String()
}

func writeFacet(b *strings.Builder, element, facet string, tags models.StringList) {
	if len(tags) == 0 {
		return
	}
	b.WriteString("      <" + element + ` type="` + facet + `">`)
	escape(b, strings.Join(tags, ","))
	b.WriteString("</" + element + ">\n")
}

func writePayment(b *strings.Builder, l *models.License) {
	b.WriteString(`      <payment type="`)
	escape(b, string(l.PaymentType))
	b.WriteString(`"`)

	if l.StandardURL == "" && l.Amount <= 0 {
		b.WriteString("/>\n")
		return
	}
	b.WriteString(">\n")

	if l.StandardURL != "" {
		b.WriteString("        <standard>")
		escape(b, l.StandardURL)
		b.WriteString("</standard>\n")
	}
	if l.Amount > 0 {
		b.WriteString(`        <amount currency="`)
		escape(b, string(l.Currency))
		b.WriteString(`">`)
		b.WriteString(formatAmount(l.Amount, l.Currency))
		b.WriteString("</amount>\n")
	}
	b.WriteString("      </payment>\n")
}

func escape(b *strings.Builder, s string) {
	// strings.Builder writes never fail.
	_ = xml.EscapeText(b, []byte(s))
}

func formatAmount(amount float64, currency models.Currency) string {
	if currency == models.CurrencyJPY {
		return strconv.FormatFloat(amount, 'f', 0, 64)
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func stripMarkup(s string) string {
	s = scriptBlockPattern.ReplaceAllString(s, "")
	s = openScriptPattern.ReplaceAllString(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func stripTraversal(s string) string {
	for {
		next := traversalReplacer.Replace(s)
		if next == s {
			return s
		}
		s = next
	}
}

// safeURL blanks URLs with a script-capable scheme.
func safeURL(s string) string {
	s = strings.TrimSpace(s)
	normalized := strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
	for _, scheme := range unsafeSchemes {
		if strings.HasPrefix(normalized, scheme) {
			return ""
		}
	}
	return s
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = stripMarkup(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// amountOf coerces a submitted amount to a number rounded to cents. Anything
// unparseable becomes zero.
func amountOf(v interface{}) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*100) / 100
}
