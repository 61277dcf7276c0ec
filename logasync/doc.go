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

// Package logasync wraps a slog.Handler so records are handed to a bounded
// queue and written by a background worker. The saludo logger uses it for
// its file sinks, keeping disk latency off request goroutines.
//
// Close must be called before the process exits; it drains the queue (bounded
// by the flush timeout) and then closes the inner handler when it implements
// Close.
package logasync
