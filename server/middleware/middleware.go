// Package middleware holds the HTTP plumbing shared by the wire and
// operator surfaces.
package middleware

import (
	"bufio"
	"compress/gzip"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Gunzip transparently decompresses request bodies. Snowflake drivers
// gzip their payloads but do not always say so, so the body is sniffed
// for the gzip magic bytes as well as the Content-Encoding header.
func Gunzip(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		br := bufio.NewReader(r.Body)
		compressed := strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip")
		if !compressed {
			if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
				compressed = true
			}
		}
		if compressed {
			zr, err := gzip.NewReader(br)
			if err != nil {
				http.Error(w, "malformed gzip body", http.StatusBadRequest)
				return
			}
			defer zr.Close()
			r.Body = readCloser{zr, r.Body}
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		} else {
			r.Body = readCloser{br, r.Body}
		}
		next.ServeHTTP(w, r)
	})
}

type readCloser struct {
	reader interface{ Read([]byte) (int, error) }
	closer interface{ Close() error }
}

func (rc readCloser) Read(p []byte) (int, error) { return rc.reader.Read(p) }
func (rc readCloser) Close() error               { return rc.closer.Close() }

// SessionToken pulls the token out of the Snowflake authorization
// header, `Authorization: Snowflake Token="<token>"`.
func SessionToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Snowflake Token="
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.Trim(h[len(prefix):], `"`)
}

// RequestLogger logs one line per request at debug level.
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("request handled")
		})
	}
}
