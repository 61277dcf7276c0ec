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

package http

import (
	"bytes"
	"context"
	"io"
	"mime"
	stdhttp "net/http"
	"strings"

	"github.com/valyala/fastjson"
)

// DefaultBodyLimit is the largest JSON body ParseJSON accepts by default.
const DefaultBodyLimit int64 = 100 << 10

type jsonBodyKey struct{}

type jsonBody struct {
	raw   []byte
	value *fastjson.Value
}

// JSONBody returns the parsed JSON body stored by ParseJSON.
func JSONBody(ctx context.Context) (*fastjson.Value, bool) {
	b, ok := ctx.Value(jsonBodyKey{}).(*jsonBody)
	if !ok || b == nil {
		return nil, false
	}
	return b.value, true
}

// RawJSONBody returns the raw bytes of the body parsed by ParseJSON.
func RawJSONBody(ctx context.Context) []byte {
	if b, ok := ctx.Value(jsonBodyKey{}).(*jsonBody); ok && b != nil {
		return b.raw
	}
	return nil
}

// ParseJSON parses request bodies sent with a JSON media type. Only objects
// and arrays are accepted at the top level. Oversized and malformed bodies go
// to eh with no status of their own, so they resolve to 500. Requests
// without a JSON body pass through untouched. The body stays readable by
// downstream handlers.
func ParseJSON(eh *ErrorHandler, limit int64) func(stdhttp.Handler) stdhttp.Handler {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			if r.Body == nil || r.Body == stdhttp.NoBody || !isJSONContentType(r.Header.Get("Content-Type")) {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				eh.ServeError(w, r, NewError(0, "request entity too large"))
				return
			}

			raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
			_ = r.Body.Close()
			if err != nil {
				eh.ServeError(w, r, WrapError(0, err))
				return
			}
			if int64(len(raw)) > limit {
				eh.ServeError(w, r, NewError(0, "request entity too large"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))
			if len(bytes.TrimSpace(raw)) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			var p fastjson.Parser
			v, err := p.ParseBytes(raw)
			if err != nil {
				eh.ServeError(w, r, Errorf(0, "invalid JSON body: %w", err))
				return
			}
			if t := v.Type(); t != fastjson.TypeObject && t != fastjson.TypeArray {
				eh.ServeError(w, r, Errorf(0, "invalid JSON body: top-level %s not allowed", t))
				return
			}

			ctx := context.WithValue(r.Context(), jsonBodyKey{}, &jsonBody{raw: raw, value: v})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isJSONContentType reports whether the media type is application/json or a
// +json structured suffix.
func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
