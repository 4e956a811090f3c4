package middleware

import (
	"mime"
	"net/http"

	"payslips/internal/transport/http/api"
)

// multipartOverhead covers boundaries and part headers around an upload.
const multipartOverhead = 64 << 10

// BodyLimit caps request bodies. Multipart uploads get uploadBytes plus
// framing; every other body gets jsonBytes. A declared length over the cap is
// refused before the handler runs.
func BodyLimit(jsonBytes, uploadBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			limit := jsonBytes
			if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mediaType == "multipart/form-data" {
				limit = uploadBytes + multipartOverhead
			}
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body is too large", GetRequestID(r.Context()))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
