package classify

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind classifies why a remote call failed.
type Kind string

const (
	// KindTimeout means no response arrived within the budget.
	KindTimeout Kind = "timeout"
	// KindCanceled means the caller's context ended before the budget did.
	KindCanceled Kind = "canceled"
	// KindTransport means the service could not be reached.
	KindTransport Kind = "transport"
	// KindService means the service answered with a non-2xx status or an unreadable body.
	KindService Kind = "service"
)

// Error is returned by every failing Client call.
type Error struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindService:
		if e.StatusCode > 0 {
			return fmt.Sprintf("classification service error: %d - %s", e.StatusCode, e.Detail)
		}
		return "classification service error: " + e.Detail
	case KindTimeout:
		return "classification request timed out: " + e.Detail
	case KindCanceled:
		return "classification request canceled"
	default:
		return "failed to reach classification service: " + e.Detail
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so callers can write
// errors.Is(err, &classify.Error{Kind: classify.KindTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.StatusCode == 0 || t.StatusCode == e.StatusCode)
}

// Sentinels for errors.Is.
var (
	ErrTimeout   = &Error{Kind: KindTimeout}
	ErrCanceled  = &Error{Kind: KindCanceled}
	ErrTransport = &Error{Kind: KindTransport}
	ErrService   = &Error{Kind: KindService}
)

const maxDetail = 512

// serviceDetail extracts the "error" field of a JSON body, or the trimmed body.
func serviceDetail(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	detail := strings.TrimSpace(string(body))
	if len(detail) > maxDetail {
		cut := maxDetail
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut] + "..."
	}
	return detail
}
