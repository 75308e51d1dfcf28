package httpapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"
)

const signatureHeader = "X-Twilio-Signature"

// verifySignature checks the webhook signature: HMAC-SHA1 over the
// full request URL concatenated with the sorted POST parameters,
// base64 encoded. An empty token disables verification.
func verifySignature(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
			return
		}
		expected := computeSignature(token, requestURL(r), r.PostForm)
		provided := strings.TrimSpace(r.Header.Get(signatureHeader))
		if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
			respondError(w, http.StatusForbidden, "invalid_signature", "webhook signature mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func computeSignature(token, fullURL string, form map[string][]string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			sb.WriteString(k)
			sb.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(sb.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
