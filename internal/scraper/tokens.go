package scraper

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The login page embeds the antiforgery token and customer context in
// window object literals. Input fields and the ASP.NET Core antiforgery
// cookie serve as fallbacks.
var antiforgeryTokenNames = []string{
	"__RequestVerificationToken",
	"RequestVerificationToken",
	"requestVerificationToken",
}

const antiforgeryCookiePrefix = ".AspNetCore.Antiforgery"

// extractWindowObjectLiteral returns the object literal assigned to
// window.<variable> in any inline script, or "" when absent.
func extractWindowObjectLiteral(doc *goquery.Document, variable string) string {
	pattern := regexp.MustCompile(`(?s)window\.` + regexp.QuoteMeta(variable) + `\s*=\s*(\{.*?\})\s*;`)
	var literal string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := pattern.FindStringSubmatch(s.Text()); m != nil {
			literal = m[1]
			return false
		}
		return true
	})
	return literal
}

// extractWindowStringField returns the string value of a field inside a
// window object literal, with JS string escapes decoded.
func extractWindowStringField(doc *goquery.Document, variable, field string) string {
	literal := extractWindowObjectLiteral(doc, variable)
	if literal == "" {
		return ""
	}

	fieldPattern := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(field) + `\s*:\s*(null|"((?:\\.|[^"])*)")`)
	m := fieldPattern.FindStringSubmatch(literal)
	if m == nil || m[1] == "null" {
		return ""
	}

	var value string
	if err := json.Unmarshal([]byte(`"`+m[2]+`"`), &value); err != nil {
		return ""
	}
	return value
}

// requestVerificationToken extracts the antiforgery token from a login
// page, trying the window config, then hidden inputs, then cookies.
func requestVerificationToken(doc *goquery.Document, cookies []*http.Cookie) (string, error) {
	if token := extractWindowStringField(doc, "__ANTIFORGERY_CONFIG__", "token"); token != "" {
		return token, nil
	}

	for _, name := range antiforgeryTokenNames {
		if value, ok := doc.Find(fmt.Sprintf("input[name=%s]", name)).Attr("value"); ok && value != "" {
			return value, nil
		}
	}

	for _, cookie := range cookies {
		if strings.Contains(cookie.Name, antiforgeryCookiePrefix) && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	return "", fmt.Errorf("could not extract request verification token from login page")
}
