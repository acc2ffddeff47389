package embed

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// WithRetry forces the surface to reload by stamping a retry parameter.
func WithRetry(raw string, now time.Time) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("embed url: %w", err)
	}
	q := u.Query()
	q.Set("retry", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
