// Copyright 2026 Patrick J. Scruggs
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

// Package config reads the server configuration from the environment. It is
// read once at startup; nothing re-reads the environment afterwards.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables consulted by Load.
const (
	EnvPort            = "PORT"
	EnvNodeEnv         = "NODE_ENV"
	EnvBodyLimit       = "HTTP_BODY_LIMIT"
	EnvCompress        = "HTTP_COMPRESS"
	EnvGRPCHealthPort  = "GRPC_HEALTH_PORT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	// ProductionEnv is the NODE_ENV value that hides stack traces.
	ProductionEnv = "production"
)

// Defaults applied when a variable is unset.
const (
	DefaultPort            = 3000
	DefaultBodyLimit int64 = 100 << 10
	DefaultShutdown        = 10 * time.Second
)

// ErrInvalidConfig reports an environment value that could not be parsed.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config is the resolved server configuration.
type Config struct {
	Port            int
	Env             string
	Production      bool
	BodyLimit       int64
	Compress        bool
	GRPCHealthPort  int
	ShutdownTimeout time.Duration
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Load reads .env from the working directory when present, without
// overriding variables already set, and then resolves the configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup resolves the configuration through lookup, which has the
// signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Port:            DefaultPort,
		BodyLimit:       DefaultBodyLimit,
		Compress:        true,
		ShutdownTimeout: DefaultShutdown,
	}

	get := func(key string) (string, bool) {
		raw, ok := lookup(key)
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}

	if raw, ok := get(EnvPort); ok {
		port, err := parsePort(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvPort, raw, err)
		}
		cfg.Port = port
	}
	if raw, ok := get(EnvNodeEnv); ok {
		cfg.Env = raw
		cfg.Production = raw == ProductionEnv
	}
	if raw, ok := get(EnvBodyLimit); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvBodyLimit, raw)
		}
		cfg.BodyLimit = n
	}
	if raw, ok := get(EnvCompress); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvCompress, raw)
		}
		cfg.Compress = v
	}
	if raw, ok := get(EnvGRPCHealthPort); ok {
		port, err := parsePort(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvGRPCHealthPort, raw, err)
		}
		cfg.GRPCHealthPort = port
	}
	if raw, ok := get(EnvShutdownTimeout); ok {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrInvalidConfig, EnvShutdownTimeout, raw)
		}
		cfg.ShutdownTimeout = d
	}
	return cfg, nil
}

// parsePort accepts TCP ports 0 through 65535. Port 0 asks the kernel for a
// free port.
func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
