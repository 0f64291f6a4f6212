package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var shorthandRe = regexp.MustCompile(`^(\d+)([dwh])$`)

// ParseExpirationDuration turns a user-supplied expiration into an absolute
// time. "never" (or empty) yields nil. Accepted forms are Go durations
// ("30m", "2h30m"), day/week shorthand ("30d", "2w"), and dates as
// "mm/dd/yyyy" optionally followed by " HH:MM".
func ParseExpirationDuration(expiresIn string) (*time.Time, error) {
	if expiresIn == "" || expiresIn == "never" {
		return nil, nil
	}

	if dur, err := time.ParseDuration(expiresIn); err == nil {
		t := time.Now().Add(dur)
		return &t, nil
	}

	for _, layout := range []string{"01/02/2006 15:04", "01/02/2006"} {
		if t, err := time.Parse(layout, expiresIn); err == nil {
			if t.Before(time.Now()) {
				return nil, fmt.Errorf("expiration date must be in the future: %s", expiresIn)
			}
			return &t, nil
		}
	}

	matches := shorthandRe.FindStringSubmatch(expiresIn)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid expiration format: %s (use 'never', '30d', '24h', '12/25/2026', or a Go duration like '30m')", expiresIn)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid number in expiration: %s", expiresIn)
	}

	var dur time.Duration
	switch matches[2] {
	case "d":
		dur = time.Duration(num) * 24 * time.Hour
	case "w":
		dur = time.Duration(num) * 7 * 24 * time.Hour
	case "h":
		dur = time.Duration(num) * time.Hour
	}

	t := time.Now().Add(dur)
	return &t, nil
}
