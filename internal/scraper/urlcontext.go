package scraper

import (
	"fmt"
	"net/url"
	"strings"
)

// MessageURLContext is the customer and facility context encoded in a
// HomeCase message stream URL. The expected path shape is
// /{customerToken}/objekte/{facilityObjectId}/nachrichten/{activityId?}.
type MessageURLContext struct {
	CustomerToken    string
	FacilityObjectID string
	ActivityID       string
}

// ParseMessageURLContext extracts the context from a message stream URL.
func ParseMessageURLContext(rawURL string) (*MessageURLContext, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse messages url: %w", err)
	}

	var parts []string
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}

	if len(parts) < 4 || parts[1] != "objekte" || parts[3] != "nachrichten" {
		return nil, fmt.Errorf("unexpected messages url path %q", u.Path)
	}

	mc := &MessageURLContext{
		CustomerToken:    parts[0],
		FacilityObjectID: parts[2],
	}
	if len(parts) > 4 {
		mc.ActivityID = parts[4]
	}
	return mc, nil
}
