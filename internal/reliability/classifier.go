package reliability

import (
	"time"

	"github.com/gorilla/websocket"
)

// MaxReconnectAttempts bounds the reconnect loop for the model socket.
const MaxReconnectAttempts = 3

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableCloseCode classifies websocket close codes worth a
// reconnect. Normal closure and policy rejections are terminal.
func IsRetryableCloseCode(code int) bool {
	switch code {
	case websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.ClosePolicyViolation,
		websocket.CloseUnsupportedData:
		return false
	default:
		return true
	}
}

// IsRetryableRealtimeError classifies retryable upstream realtime
// error codes.
func IsRetryableRealtimeError(code string) bool {
	switch code {
	case "rate_limited", "resource_exhausted", "server_error", "session_expired":
		return true
	default:
		return false
	}
}

// ReconnectBackoff computes the wait before reconnect attempt n
// (1-based): linear, attempt multiples of the base interval.
func ReconnectBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * base
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
