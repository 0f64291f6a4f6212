package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginPageHTML = `<!DOCTYPE html>
<html>
<head>
<script>
window.__ANTIFORGERY_CONFIG__ = {
  headerName: "RequestVerificationToken",
  token: "tok-from-config"
};
window.__INITIAL_LOGIN_DATA__ = {
  customerToken: "cust-abc123",
  theme: null
};
</script>
</head>
<body><form></form></body>
</html>`

func TestParseMessageURLContext(t *testing.T) {
	mc, err := ParseMessageURLContext("https://mein.homecase.de/cust-abc/objekte/4711/nachrichten")
	require.NoError(t, err)
	assert.Equal(t, "cust-abc", mc.CustomerToken)
	assert.Equal(t, "4711", mc.FacilityObjectID)
	assert.Empty(t, mc.ActivityID)

	mc, err = ParseMessageURLContext("https://mein.homecase.de/cust-abc/objekte/4711/nachrichten/act-99")
	require.NoError(t, err)
	assert.Equal(t, "act-99", mc.ActivityID)

	_, err = ParseMessageURLContext("https://mein.homecase.de/something/else")
	assert.Error(t, err)
}

func TestExtractWindowStringField(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(loginPageHTML))
	require.NoError(t, err)

	assert.Equal(t, "tok-from-config", extractWindowStringField(doc, "__ANTIFORGERY_CONFIG__", "token"))
	assert.Equal(t, "cust-abc123", extractWindowStringField(doc, "__INITIAL_LOGIN_DATA__", "customerToken"))
	assert.Empty(t, extractWindowStringField(doc, "__INITIAL_LOGIN_DATA__", "theme"))
	assert.Empty(t, extractWindowStringField(doc, "__MISSING__", "token"))
}

func TestExtractWindowStringFieldDecodesEscapes(t *testing.T) {
	html := `<script>window.__CFG__ = { name: "Müller\nGmbH" };</script>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Müller\nGmbH", extractWindowStringField(doc, "__CFG__", "name"))
}

func TestRequestVerificationTokenFallbacks(t *testing.T) {
	inputHTML := `<form><input type="hidden" name="__RequestVerificationToken" value="tok-from-input"></form>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(inputHTML))
	require.NoError(t, err)

	token, err := requestVerificationToken(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "tok-from-input", token)

	emptyDoc, err := goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	require.NoError(t, err)

	cookies := []*http.Cookie{{Name: ".AspNetCore.Antiforgery.xyz", Value: "tok-from-cookie"}}
	token, err = requestVerificationToken(emptyDoc, cookies)
	require.NoError(t, err)
	assert.Equal(t, "tok-from-cookie", token)

	_, err = requestVerificationToken(emptyDoc, nil)
	assert.Error(t, err)
}

func TestLoginPostsTokenAndCredentials(t *testing.T) {
	var loginReq struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	var gotToken, gotCustomerToken string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anmelden":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(loginPageHTML))
		case "/login/withEmail":
			gotToken = r.Header.Get("RequestVerificationToken")
			gotCustomerToken = r.URL.Query().Get("customerToken")
			json.NewDecoder(r.Body).Decode(&loginReq)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := New(Options{
		LoginURL:    srv.URL + "/anmelden",
		MessagesURL: srv.URL + "/cust-abc/objekte/4711/nachrichten",
		Username:    "tenant@example.org",
		Password:    "secret",
	})
	require.NoError(t, err)

	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, "tok-from-config", gotToken)
	assert.Equal(t, "cust-abc123", gotCustomerToken)
	assert.Equal(t, "tenant@example.org", loginReq.Email)
	assert.Equal(t, "secret", loginReq.Password)
}

func TestLoginRejectedByAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anmelden":
			w.Write([]byte(loginPageHTML))
		case "/login/withEmail":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": false, "message": "wrong password"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := New(Options{
		LoginURL:    srv.URL + "/anmelden",
		MessagesURL: srv.URL + "/cust-abc/objekte/4711/nachrichten",
	})
	require.NoError(t, err)

	err = s.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong password")
}

func TestFindConsumptionMessagesViaAPI(t *testing.T) {
	notice := "Verbrauchswerte\n\nKaltwasser\nDezember 2025: 2,345 m³"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/bff/customers/cust-abc/facilityObjects/4711/activities":
			assert.Equal(t, "Default", r.URL.Query().Get("filterType"))
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "act-old", "createdDateUTC": "2025-11-01T10:00:00Z"},
				{"id": "act-new", "createdDateUTC": "2025-12-01T10:00:00Z"},
			})
		case strings.HasPrefix(r.URL.Path, "/api/v1/bff/customers/cust-abc/activities/"):
			text := "nothing relevant here"
			ts := "2025-11-01T10:00:00Z"
			if strings.Contains(r.URL.Path, "act-new") {
				text = "Hallo,\n\n" + notice + "\n\nFalls Sie Fragen haben"
				ts = "2025-12-01T10:00:00Z"
			}
			json.NewEncoder(w).Encode([]map[string]string{
				{"text": text, "createdDateUTC": ts},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := New(Options{
		LoginURL:    srv.URL + "/anmelden",
		MessagesURL: srv.URL + "/cust-abc/objekte/4711/nachrichten",
	})
	require.NoError(t, err)

	messages, err := s.FindConsumptionMessages(context.Background(), 24)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Verbrauchswerte")
	assert.Contains(t, messages[0], "Kaltwasser")
	assert.NotContains(t, messages[0], "Falls Sie Fragen")
}

func TestFindConsumptionMessagesHTMLFallback(t *testing.T) {
	page := `<html><body>
<div class="message-content">Hallo,

Verbrauchswerte

Kaltwasser
Dezember 2025: 2,345 m³
Dezember 2024: 2,100 m³
Durchschnitt der Liegenschaft Dezember 2025: 2,800 m³

Falls Sie Fragen haben, melden Sie sich.</div>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		// No BFF API on this server, forcing the HTML fallback.
		case "/cust-abc/objekte/4711/nachrichten":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(page))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s, err := New(Options{
		LoginURL:    srv.URL + "/anmelden",
		MessagesURL: srv.URL + "/cust-abc/objekte/4711/nachrichten",
	})
	require.NoError(t, err)

	message, err := s.FindLatestConsumptionMessage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, message, "Verbrauchswerte")
	assert.Contains(t, message, "Kaltwasser")
}

func TestCollectHTMLCandidatesIncludesScriptPayloads(t *testing.T) {
	page := `<html><body>
<div class="content">visible text</div>
<script>window.__STATE__ = {"text": "Verbrauchswerte\nKaltwasser"};</script>
</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	candidates := collectHTMLCandidates(doc)
	require.NotEmpty(t, candidates)

	var found bool
	for _, c := range candidates {
		if strings.Contains(c, "Verbrauchswerte\nKaltwasser") {
			found = true
		}
	}
	assert.True(t, found, "script payload with unescaped newlines not collected")
}
