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

// Package saludo provides the process-wide structured logging facility used by
// the saludo HTTP server. It builds on the standard library's [log/slog]
// package and fans every record out to several sinks:
//   - a colorized console sink for humans,
//   - logs/combined.log with every record at or above the configured level,
//   - logs/error.log with error records only,
//   - logs/rejections.log with fatal events (escaped panics and unobserved
//     goroutine errors) only.
//
// File sinks write JSON objects whose first keys are `timestamp`
// (`YYYY-MM-DD HH:mm:ss`), `level` and `message`, and they are rotated by
// [gopkg.in/natefinch/lumberjack.v2].
//
// The primary entry point is [New], which returns an owned [*Logger]. There is
// no package-level logger: callers pass the logger (or the embedded
// *slog.Logger) to every component that needs it.
//
// # Quick Start
//
//	logger, err := saludo.New()
//	if err != nil {
//	    log.Fatalf("create logger: %v", err)
//	}
//	defer logger.Close() // drains async sinks and closes log files
//
//	logger.Info("application started")
//
// # Subpackages
//
//   - [github.com/pjscruggs/saludo/http] is the request pipeline: error
//     returning handlers, JSON body parsing, access logging and the terminal
//     error stage.
//   - [github.com/pjscruggs/saludo/logasync] moves file writes off the request
//     goroutines.
//   - [github.com/pjscruggs/saludo/health] serves grpc.health.v1.
package saludo
