package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed REST call.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindUnknownChannel
	KindUnknownGuild
	KindUnknownMember
	KindUnknownMessage
	KindUnknownRole
	KindUnknownUser
	KindUnknownEmoji
	KindMissingAccess
	KindMissingPermissions
	KindCannotSendEmptyMessage
	KindCannotMessageUser
	KindInvalidFormBody
	KindMaxReactions
)

// Sentinels returned by HTTPError.Unwrap, one per kind. Branch with errors.Is:
//
//	if errors.Is(err, rest.ErrUnknownMessage) { ... }
var (
	ErrGeneric                = errors.New("request failed")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrUnknownChannel         = errors.New("unknown channel")
	ErrUnknownGuild           = errors.New("unknown guild")
	ErrUnknownMember          = errors.New("unknown member")
	ErrUnknownMessage         = errors.New("unknown message")
	ErrUnknownRole            = errors.New("unknown role")
	ErrUnknownUser            = errors.New("unknown user")
	ErrUnknownEmoji           = errors.New("unknown emoji")
	ErrMissingAccess          = errors.New("missing access")
	ErrMissingPermissions     = errors.New("missing permissions")
	ErrCannotSendEmptyMessage = errors.New("cannot send an empty message")
	ErrCannotMessageUser      = errors.New("cannot send messages to this user")
	ErrInvalidFormBody        = errors.New("invalid form body")
	ErrMaxReactions           = errors.New("maximum number of reactions reached")
)

var kindSentinels = map[ErrorKind]error{
	KindGeneric:                ErrGeneric,
	KindUnauthorized:           ErrUnauthorized,
	KindForbidden:              ErrForbidden,
	KindNotFound:               ErrNotFound,
	KindUnknownChannel:         ErrUnknownChannel,
	KindUnknownGuild:           ErrUnknownGuild,
	KindUnknownMember:          ErrUnknownMember,
	KindUnknownMessage:         ErrUnknownMessage,
	KindUnknownRole:            ErrUnknownRole,
	KindUnknownUser:            ErrUnknownUser,
	KindUnknownEmoji:           ErrUnknownEmoji,
	KindMissingAccess:          ErrMissingAccess,
	KindMissingPermissions:     ErrMissingPermissions,
	KindCannotSendEmptyMessage: ErrCannotSendEmptyMessage,
	KindCannotMessageUser:      ErrCannotMessageUser,
	KindInvalidFormBody:        ErrInvalidFormBody,
	KindMaxReactions:           ErrMaxReactions,
}

// platform error code -> kind
var codeKinds = map[int]ErrorKind{
	0:     KindGeneric,
	10003: KindUnknownChannel,
	10004: KindUnknownGuild,
	10007: KindUnknownMember,
	10008: KindUnknownMessage,
	10011: KindUnknownRole,
	10013: KindUnknownUser,
	10014: KindUnknownEmoji,
	50001: KindMissingAccess,
	50006: KindCannotSendEmptyMessage,
	50007: KindCannotMessageUser,
	50013: KindMissingPermissions,
	50035: KindInvalidFormBody,
	30010: KindMaxReactions,
}

// LookupKind maps a platform error code to its kind. Unknown codes fall back to KindGeneric.
func LookupKind(code int) ErrorKind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindGeneric
}

// HTTPError is returned for non-retryable 4xx/5xx responses.
// Callers can use errors.As to extract the structured information:
//
//	var httpErr *rest.HTTPError
//	if errors.As(err, &httpErr) && httpErr.StatusCode == 403 { ... }
type HTTPError struct {
	StatusCode int
	// Code is the platform error code from the body, 0 when absent.
	Code    int
	Message string
	Kind    ErrorKind
	Body    []byte
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rest: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("rest: HTTP %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap exposes the kind sentinel so errors.Is works on HTTPError.
func (e *HTTPError) Unwrap() error {
	if s, ok := kindSentinels[e.Kind]; ok {
		return s
	}
	return ErrGeneric
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// newHTTPError decodes the platform error body when present. A body that is
// not JSON still produces an error, just without a code.
func newHTTPError(resp *Response) *HTTPError {
	e := &HTTPError{StatusCode: resp.StatusCode, Body: resp.Body}
	var body errorBody
	if len(resp.Body) > 0 && json.Unmarshal(resp.Body, &body) == nil {
		e.Code = body.Code
		e.Message = body.Message
	}
	e.Kind = LookupKind(e.Code)
	if e.Kind == KindGeneric {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			e.Kind = KindUnauthorized
		case http.StatusForbidden:
			e.Kind = KindForbidden
		case http.StatusNotFound:
			e.Kind = KindNotFound
		}
	}
	return e
}
