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

// Command saludo serves the greeting API and the endpoints that simulate
// synchronous and asynchronous failures.
//
// Configuration comes from the environment and an optional .env file. PORT
// selects the listen port (3000 by default) and NODE_ENV=production hides
// stack traces from error responses. LOG_* variables tune the log sinks.
//
// SIGINT and SIGTERM trigger a graceful shutdown. SIGHUP rotates the log files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pjscruggs/saludo"
	"github.com/pjscruggs/saludo/internal/config"
	"github.com/pjscruggs/saludo/internal/server"
)

func main() {
	os.Exit(run())
}

// run wires the process together and returns the exit status.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "saludo: %v\n", err)
		return 1
	}

	logger, err := saludo.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "saludo: create logger: %v\n", err)
		return 1
	}
	defer logger.Close()

	saludo.EnsurePropagation()

	guard := saludo.NewFatalGuard(logger)
	defer guard.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	guard.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := logger.Rotate(); err != nil {
					logger.Error("rotate log files", slog.Any("error", err))
				}
			}
		}
	})

	srv := server.New(cfg, logger, guard)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		return 1
	}
	logger.Info("server stopped")
	return 0
}
