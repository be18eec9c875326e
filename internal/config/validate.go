// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes one bad field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidateErrors collects every problem found by Validate.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidateErrors) addf(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidateErrors) checkRange(field string, v, lo, hi int) {
	if v < lo || v > hi {
		e.addf(field, "must be between %d and %d, got %d", lo, hi, v)
	}
}

func (e *ValidateErrors) checkOneOf(field, v string, allowed ...string) {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return
		}
	}
	e.addf(field, "invalid value '%s', must be one of: %s", v, strings.Join(allowed, ", "))
}

// Validate reports every invalid field at once as ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	switch u, err := url.Parse(c.Endpoint.URL); {
	case err != nil || u.Host == "":
		errs.addf("endpoint.url", "invalid URL '%s'", c.Endpoint.URL)
	case u.Scheme != "http" && u.Scheme != "https":
		errs.addf("endpoint.url", "unsupported scheme '%s', must be http or https", u.Scheme)
	}
	if c.Endpoint.Path != "" && !strings.HasPrefix(c.Endpoint.Path, "/") {
		errs.addf("endpoint.path", "must start with '/'")
	}
	errs.checkRange("endpoint.connect_timeout_secs", c.Endpoint.ConnectTimeoutSecs, 1, 300)

	errs.checkOneOf("storage.backend", c.Storage.Backend, "file", "sqlite", "redis", "memory")
	if strings.EqualFold(c.Storage.Backend, "redis") && c.Storage.RedisAddr == "" {
		errs.addf("storage.redis_addr", "required when backend is redis")
	}
	errs.checkRange("storage.redis_db", c.Storage.RedisDB, 0, 15)

	errs.checkRange("ui.scroll_throttle_ms", c.UI.ScrollThrottleMs, 16, 5000)
	errs.checkOneOf("ui.theme", c.UI.Theme, "auto", "dark", "light")

	if len(errs) > 0 {
		return errs
	}
	return nil
}
