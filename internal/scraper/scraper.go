package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/unofficial-homecase/homecasebot/internal/config"
	"github.com/unofficial-homecase/homecasebot/internal/consumption"
)

const (
	loginAPIPath = "/login/withEmail"
	bffAPIPath   = "/api/v1/bff"

	requestTimeout       = 10 * time.Second
	defaultMaxActivities = 40
)

// Options configures a portal scraper.
type Options struct {
	LoginURL    string
	MessagesURL string
	Username    string
	Password    string
	// RequestDelay is the minimum pause between consecutive requests.
	RequestDelay time.Duration
	// MaxActivities caps how many activities are scanned for contacts.
	MaxActivities int
	Extractor     *consumption.Extractor
}

// Scraper drives a logged-in session against the HomeCase tenant portal.
type Scraper struct {
	http      *resty.Client
	opts      Options
	baseURL   string
	extractor *consumption.Extractor

	mu          sync.Mutex
	lastRequest time.Time
}

// New builds a Scraper with a browser-like resty session.
func New(opts Options) (*Scraper, error) {
	u, err := url.Parse(opts.LoginURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid login url %q", opts.LoginURL)
	}
	baseURL := fmt.Sprintf("%s://%s", u.Scheme, u.Host)

	if opts.MaxActivities <= 0 {
		opts.MaxActivities = defaultMaxActivities
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = consumption.NewExtractor(consumption.DefaultExtractorConfig())
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(requestTimeout)
	client.SetHeaders(map[string]string{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:147.0) Gecko/20100101 Firefox/147.0",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Origin":          baseURL,
		"Connection":      "keep-alive",
	})

	s := &Scraper{
		http:      client,
		opts:      opts,
		baseURL:   baseURL,
		extractor: extractor,
	}
	client.OnBeforeRequest(func(_ *resty.Client, _ *resty.Request) error {
		s.throttle()
		return nil
	})
	return s, nil
}

// FromConfig builds a Scraper from the application configuration,
// including the tuned extraction heuristics.
func FromConfig(cfg config.Config) (*Scraper, error) {
	return New(Options{
		LoginURL:     cfg.PortalLoginURL,
		MessagesURL:  cfg.PortalMessagesURL,
		Username:     cfg.PortalUsername,
		Password:     cfg.PortalPassword,
		RequestDelay: cfg.RequestDelay,
		Extractor: consumption.NewExtractor(consumption.ExtractorConfig{
			KeywordBonus:     cfg.KeywordBonus,
			MaxExtractLength: cfg.MaxExtractLength,
		}),
	})
}

// throttle enforces the configured pause between requests.
func (s *Scraper) throttle() {
	if s.opts.RequestDelay <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastRequest.IsZero() {
		if wait := s.opts.RequestDelay - time.Since(s.lastRequest); wait > 0 {
			time.Sleep(wait)
		}
	}
	s.lastRequest = time.Now()
}

// Login authenticates against the portal's JSON login API. The login page
// is fetched first to obtain the session cookie, antiforgery token, and
// customer token.
func (s *Scraper) Login(ctx context.Context) error {
	log.Printf("scraper: fetching login page for session and antiforgery token")

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Referer", s.baseURL+"/").
		Get(s.opts.LoginURL)
	if err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("login page returned status %d", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return fmt.Errorf("parse login page: %w", err)
	}

	token, err := requestVerificationToken(doc, resp.Cookies())
	if err != nil {
		return err
	}
	customerToken := extractWindowStringField(doc, "__INITIAL_LOGIN_DATA__", "customerToken")

	req := s.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Accept":                   "application/json, text/plain, */*",
			"Referer":                  s.opts.LoginURL,
			"X-Requested-With":         "XMLHttpRequest",
			"RequestVerificationToken": token,
		}).
		SetBody(map[string]string{
			"email":    s.opts.Username,
			"password": s.opts.Password,
		})
	if customerToken != "" {
		req.SetQueryParam("customerToken", customerToken)
	}

	resp, err = req.Post(loginAPIPath)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	if resp.IsError() {
		snippet := strings.ReplaceAll(string(resp.Body()), "\n", " ")
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return fmt.Errorf("login failed with status %d: %s", resp.StatusCode(), snippet)
	}

	// The API may report failure in a JSON body despite a 2xx status.
	var result struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err == nil {
		if result.Success != nil && !*result.Success {
			msg := result.Message
			if msg == "" {
				msg = result.Error
			}
			if msg == "" {
				msg = "login failed"
			}
			return fmt.Errorf("login rejected: %s", msg)
		}
	}

	log.Printf("scraper: login successful")
	return nil
}

// NavigateToMessages loads the message stream page, establishing the
// server-side state some portal endpoints expect.
func (s *Scraper) NavigateToMessages(ctx context.Context) error {
	log.Printf("scraper: navigating to message stream")
	resp, err := s.http.R().SetContext(ctx).Get(s.opts.MessagesURL)
	if err != nil {
		return fmt.Errorf("load message stream: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("message stream returned status %d", resp.StatusCode())
	}
	return nil
}

type portalActivity struct {
	ID             string `json:"id"`
	CreatedDateUTC string `json:"createdDateUTC"`
	ChangedDateUTC string `json:"changedDateUTC"`
}

type portalContact struct {
	Text           string             `json:"text"`
	CreatedDateUTC string             `json:"createdDateUTC"`
	ChangedDateUTC string             `json:"changedDateUTC"`
	Documents      []portalAttachment `json:"documents"`
}

type portalAttachment struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
}

func (s *Scraper) apiGet(ctx context.Context, path string, params map[string]string, out any) error {
	req := s.http.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			"Accept":           "application/json",
			"X-Requested-With": "XMLHttpRequest",
			"Referer":          s.opts.MessagesURL,
		})
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(bffAPIPath + path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("api %s returned status %d", path, resp.StatusCode())
	}
	return json.Unmarshal(resp.Body(), out)
}

// collectActivityIDs returns activity IDs newest first, starting with the
// activity pinned in the messages URL when present.
func (s *Scraper) collectActivityIDs(ctx context.Context, mc *MessageURLContext) []string {
	var ids []string
	if mc.ActivityID != "" {
		ids = append(ids, mc.ActivityID)
	}

	var activities []portalActivity
	err := s.apiGet(ctx,
		fmt.Sprintf("/customers/%s/facilityObjects/%s/activities", mc.CustomerToken, mc.FacilityObjectID),
		map[string]string{"filterType": "Default"},
		&activities)
	if err != nil {
		log.Printf("scraper: failed to fetch activities list: %v", err)
		return ids
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activitySortKey(activities[i]) > activitySortKey(activities[j])
	})

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, a := range activities {
		if a.ID != "" && !seen[a.ID] {
			seen[a.ID] = true
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// ISO timestamps sort lexicographically, so string comparison is enough.
func activitySortKey(a portalActivity) string {
	if a.ChangedDateUTC != "" {
		return a.ChangedDateUTC
	}
	return a.CreatedDateUTC
}

// collectContactMessages walks activity contacts and extracts consumption
// candidates from their text and PDF attachments.
func (s *Scraper) collectContactMessages(ctx context.Context, customerToken string, activityIDs []string) []consumption.Candidate {
	var candidates []consumption.Candidate

	if len(activityIDs) > s.opts.MaxActivities {
		activityIDs = activityIDs[:s.opts.MaxActivities]
	}

	for _, activityID := range activityIDs {
		var contacts []portalContact
		err := s.apiGet(ctx,
			fmt.Sprintf("/customers/%s/activities/%s/contacts", customerToken, activityID),
			nil, &contacts)
		if err != nil {
			log.Printf("scraper: failed to fetch contacts for activity %s: %v", activityID, err)
			continue
		}

		for _, contact := range contacts {
			timestamp := contact.CreatedDateUTC
			if timestamp == "" {
				timestamp = contact.ChangedDateUTC
			}

			if contact.Text != "" {
				if message, ok := s.extractor.Extract(contact.Text); ok {
					candidates = append(candidates, consumption.Candidate{
						Timestamp: timestamp,
						Text:      message,
					})
				}
			}

			for _, doc := range contact.Documents {
				if !strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf") {
					continue
				}
				text, err := s.fetchAttachmentText(ctx, customerToken, doc.ID)
				if err != nil {
					log.Printf("scraper: failed to read attachment %s: %v", doc.FileName, err)
					continue
				}
				if message, ok := s.extractor.Extract(text); ok {
					candidates = append(candidates, consumption.Candidate{
						Timestamp: timestamp,
						Text:      message,
					})
				}
			}
		}
	}

	return candidates
}

func (s *Scraper) fetchAttachmentText(ctx context.Context, customerToken, documentID string) (string, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Referer", s.opts.MessagesURL).
		Get(fmt.Sprintf("%s/customers/%s/documents/%s", bffAPIPath, customerToken, documentID))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("document download returned status %d", resp.StatusCode())
	}
	return ExtractPDFText(resp.Body())
}

// FindConsumptionMessages returns extracted consumption messages newest
// first, preferring the portal API and falling back to HTML scraping.
func (s *Scraper) FindConsumptionMessages(ctx context.Context, limit int) ([]string, error) {
	log.Printf("scraper: searching for consumption messages")

	messages, err := s.fetchViaAPI(ctx, limit)
	if err != nil {
		log.Printf("scraper: API message fetch failed, falling back to HTML parsing: %v", err)
	} else if len(messages) > 0 {
		log.Printf("scraper: found %d consumption message(s) via portal API", len(messages))
		return messages, nil
	}

	message, err := s.latestFromHTML(ctx)
	if err != nil {
		return nil, err
	}
	if message == "" {
		return nil, nil
	}
	return []string{message}, nil
}

// FindLatestConsumptionMessage returns the most recent consumption
// message, or "" when none is found.
func (s *Scraper) FindLatestConsumptionMessage(ctx context.Context) (string, error) {
	messages, err := s.FindConsumptionMessages(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		log.Printf("scraper: no consumption message found")
		return "", nil
	}
	return messages[0], nil
}

func (s *Scraper) fetchViaAPI(ctx context.Context, limit int) ([]string, error) {
	mc, err := ParseMessageURLContext(s.opts.MessagesURL)
	if err != nil {
		return nil, err
	}

	activityIDs := s.collectActivityIDs(ctx, mc)
	candidates := s.collectContactMessages(ctx, mc.CustomerToken, activityIDs)
	return consumption.DedupeNewestFirst(candidates, limit), nil
}

var messageContainerClassRe = regexp.MustCompile(`message|Message|nachricht|Nachricht|content|Content`)

// latestFromHTML is the best-effort fallback: scrape the rendered message
// page and rank every text block that contains the marker keyword.
func (s *Scraper) latestFromHTML(ctx context.Context) (string, error) {
	resp, err := s.http.R().SetContext(ctx).Get(s.opts.MessagesURL)
	if err != nil {
		return "", fmt.Errorf("load message page: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("message page returned status %d", resp.StatusCode())
	}
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && strings.Contains(raw.Request.URL.Path, "/anmelden") {
		return "", fmt.Errorf("not authenticated: redirected to login page while loading messages")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return "", fmt.Errorf("parse message page: %w", err)
	}

	candidates := collectHTMLCandidates(doc)
	best, ok := s.extractor.BestMessage(candidates)
	if !ok {
		return "", nil
	}
	return best, nil
}

// collectHTMLCandidates gathers text blocks that might hold the notice:
// the whole page, message-like containers, and SPA script payloads.
func collectHTMLCandidates(doc *goquery.Document) []string {
	var candidates []string

	if pageText := strings.TrimSpace(doc.Find("body").Text()); pageText != "" {
		candidates = append(candidates, pageText)
	}

	doc.Find("div, article, section").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		if !messageContainerClassRe.MatchString(class) {
			return
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			candidates = append(candidates, text)
		}
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		content := sel.Text()
		if strings.Contains(content, consumption.ConsumptionMarker) {
			candidates = append(candidates, strings.ReplaceAll(content, `\n`, "\n"))
		}
	})

	return candidates
}
