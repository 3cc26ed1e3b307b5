// Copyright 2025 walteh LLC
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

package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// withLogger attaches logger to every request context
func withLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return hlog.NewHandler(logger)(next)
}

// 📝 accessLog tags the request logger and logs one line per request
func accessLog(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		evt := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			evt = hlog.FromRequest(r).Warn()
		}
		evt.
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(next)
	h = hlog.URLHandler("url")(h)
	h = hlog.MethodHandler("method")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	return h
}
