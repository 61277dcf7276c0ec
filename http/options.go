// Copyright 2025-2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"os"
	"strconv"
	"strings"
)

const envTrustProxyHeaders = "HTTP_TRUST_PROXY_HEADERS"

// Option configures AccessLog.
type Option func(*config)

type config struct {
	trustProxyHeaders bool
}

// loadConfigFromEnv builds the defaults from the process environment.
// Invalid values are ignored so functional options can supply overrides.
func loadConfigFromEnv() config {
	var cfg config
	if raw, ok := os.LookupEnv(envTrustProxyHeaders); ok {
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			cfg.trustProxyHeaders = v
		}
	}
	return cfg
}

// applyOptions overlays opts on the environment defaults.
func applyOptions(opts []Option) *config {
	cfg := loadConfigFromEnv()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &cfg
}

// WithTrustProxyHeaders toggles use of X-Forwarded-For for the client IP.
// Only enable it behind a proxy that overwrites the header.
func WithTrustProxyHeaders(trust bool) Option {
	return func(c *config) {
		c.trustProxyHeaders = trust
	}
}
