// Package pwned checks candidate passwords against the HaveIBeenPwned range
// API using the k-anonymity model: only the first five hex characters of the
// SHA-1 digest ever leave the process.
package pwned

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.pwnedpasswords.com/range/"

// Checker queries the breach corpus for a password.
type Checker struct {
	client  *http.Client
	baseURL string
	logger  *zerolog.Logger
}

// NewChecker creates a Checker with a bounded request timeout.
func NewChecker(logger *zerolog.Logger) *Checker {
	return &Checker{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// NewCheckerWithBaseURL is used by tests to point at a stub server.
func NewCheckerWithBaseURL(logger *zerolog.Logger, baseURL string) *Checker {
	c := NewChecker(logger)
	c.baseURL = baseURL
	return c
}

// IsPwned reports whether the password appears in a known breach. When the
// API is unreachable it fails open so an outage never blocks signups.
func (c *Checker) IsPwned(ctx context.Context, password string) bool {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+prefix, nil)
	if err != nil {
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("breach lookup unavailable, allowing password")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("breach lookup unavailable, allowing password")
		return false
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		hash, _, found := strings.Cut(line, ":")
		if found && hash == suffix {
			return true
		}
	}

	return false
}
