// Package cferrors defines the unified error taxonomy surfaced by every
// component of the cache engine: blob store, metadata cache, eviction
// policy, backend facade, and coordinator.
package cferrors

import (
	"fmt"
	"time"
)

// Kind identifies a class of failure. Callers should branch on Kind rather
// than string-matching error messages.
type Kind int

const (
	// KindOther is a catch-all for errors that don't fit a more specific
	// kind. It's used sparingly.
	KindOther Kind = iota
	KindNotFound
	KindAlreadyExists
	KindPermissionDenied
	KindNotADirectory
	KindNotAFile
	KindDirectoryNotEmpty
	KindInvalidPath
	KindIO
	KindNetwork
	KindTimeout
	KindCancelled
	KindAuthRequired
	KindAuthFailed
	KindTokenExpired
	KindRateLimited
	KindProviderAPI
	KindQuotaExceeded
	KindConflict
	KindUnsupported
	KindSerialization
	KindCache
	KindOfflineNoCache
	KindInvalidContentID
	KindCorruptedContent
	KindChecksumMismatch
	KindBackendNotFound
)

// String returns a human-readable name for the kind, used in Error's
// message composition.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindPermissionDenied:
		return "permission denied"
	case KindNotADirectory:
		return "not a directory"
	case KindNotAFile:
		return "not a file"
	case KindDirectoryNotEmpty:
		return "directory not empty"
	case KindInvalidPath:
		return "invalid path"
	case KindIO:
		return "I/O error"
	case KindNetwork:
		return "network error"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindAuthRequired:
		return "authentication required"
	case KindAuthFailed:
		return "authentication failed"
	case KindTokenExpired:
		return "token expired"
	case KindRateLimited:
		return "rate limited"
	case KindProviderAPI:
		return "provider API error"
	case KindQuotaExceeded:
		return "quota exceeded"
	case KindConflict:
		return "conflict"
	case KindUnsupported:
		return "unsupported operation"
	case KindSerialization:
		return "serialization error"
	case KindCache:
		return "cache error"
	case KindOfflineNoCache:
		return "offline and no cached version"
	case KindInvalidContentID:
		return "invalid content id"
	case KindCorruptedContent:
		return "corrupted content"
	case KindChecksumMismatch:
		return "checksum mismatch"
	case KindBackendNotFound:
		return "backend not found"
	default:
		return "error"
	}
}

// Error is the single error type returned across package boundaries in
// this module. Construct one with the kind-specific constructors below
// rather than building it directly.
type Error struct {
	Kind       Kind
	Path       string
	CID        string
	Provider   string
	Message    string
	RetryAfter *time.Duration
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("not found: %s", e.subject())
	case KindAlreadyExists:
		return fmt.Sprintf("already exists: %s", e.subject())
	case KindPermissionDenied:
		return fmt.Sprintf("permission denied: %s", e.subject())
	case KindNotADirectory:
		return fmt.Sprintf("not a directory: %s", e.subject())
	case KindNotAFile:
		return fmt.Sprintf("not a file: %s", e.subject())
	case KindDirectoryNotEmpty:
		return fmt.Sprintf("directory not empty: %s", e.subject())
	case KindInvalidPath:
		return fmt.Sprintf("invalid path: %s", e.subject())
	case KindProviderAPI:
		return fmt.Sprintf("provider API error (%s): %s", e.Provider, e.Message)
	case KindRateLimited:
		if e.RetryAfter != nil {
			return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
		}
		return "rate limited"
	case KindBackendNotFound:
		return fmt.Sprintf("backend not found: %s", e.subject())
	case KindCorruptedContent:
		return fmt.Sprintf("corrupted content: %s", e.subject())
	case KindTokenExpired:
		return "token expired"
	case KindOfflineNoCache:
		return "offline and no cached version"
	case KindChecksumMismatch:
		return "checksum mismatch"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

// subject picks whichever identifying field is set, preferring Path.
func (e *Error) subject() string {
	if e.Path != "" {
		return e.Path
	}
	if e.CID != "" {
		return e.CID
	}
	return e.Message
}

// Unwrap exposes the wrapped error, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Kind. This lets
// callers write errors.Is(err, cferrors.NotFound("")) style checks, though
// matching on Kind directly via cferrors.KindOf is usually clearer.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind from err if it's (or wraps) an *Error, otherwise
// returns KindOther.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindOther
}

// asError is a small local stand-in for errors.As to avoid importing the
// errors package just for this one call in a file that otherwise has no
// other use for it.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsRetryable reports whether err represents a condition worth retrying:
// network failures, rate limiting, timeouts, and expired tokens.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimited, KindTimeout, KindTokenExpired:
		return true
	default:
		return false
	}
}

// IsAuthError reports whether err represents an authentication failure.
func IsAuthError(err error) bool {
	switch KindOf(err) {
	case KindAuthRequired, KindAuthFailed, KindTokenExpired:
		return true
	default:
		return false
	}
}

// NotFound builds a KindNotFound error for the given path or CID string.
func NotFound(subject string) *Error { return &Error{Kind: KindNotFound, Path: subject} }

// AlreadyExists builds a KindAlreadyExists error.
func AlreadyExists(path string) *Error { return &Error{Kind: KindAlreadyExists, Path: path} }

// PermissionDenied builds a KindPermissionDenied error.
func PermissionDenied(path string) *Error { return &Error{Kind: KindPermissionDenied, Path: path} }

// NotADirectory builds a KindNotADirectory error.
func NotADirectory(path string) *Error { return &Error{Kind: KindNotADirectory, Path: path} }

// NotAFile builds a KindNotAFile error.
func NotAFile(path string) *Error { return &Error{Kind: KindNotAFile, Path: path} }

// DirectoryNotEmpty builds a KindDirectoryNotEmpty error.
func DirectoryNotEmpty(path string) *Error {
	return &Error{Kind: KindDirectoryNotEmpty, Path: path}
}

// InvalidPath builds a KindInvalidPath error.
func InvalidPath(s string) *Error { return &Error{Kind: KindInvalidPath, Message: s} }

// IO wraps err as a KindIO error.
func IO(message string, err error) *Error {
	return &Error{Kind: KindIO, Message: message, Err: err}
}

// Network wraps err as a KindNetwork error.
func Network(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// Timeout builds a KindTimeout error.
func Timeout() *Error { return &Error{Kind: KindTimeout} }

// Cancelled builds a KindCancelled error.
func Cancelled() *Error { return &Error{Kind: KindCancelled} }

// AuthRequired builds a KindAuthRequired error.
func AuthRequired(message string) *Error { return &Error{Kind: KindAuthRequired, Message: message} }

// AuthFailed builds a KindAuthFailed error.
func AuthFailed(message string) *Error { return &Error{Kind: KindAuthFailed, Message: message} }

// TokenExpired builds a KindTokenExpired error.
func TokenExpired() *Error { return &Error{Kind: KindTokenExpired} }

// RateLimited builds a KindRateLimited error, optionally carrying a
// retry-after duration.
func RateLimited(retryAfter *time.Duration) *Error {
	return &Error{Kind: KindRateLimited, RetryAfter: retryAfter}
}

// ProviderAPI builds a KindProviderAPI error reporting a backend-specific
// failure.
func ProviderAPI(provider, message string) *Error {
	return &Error{Kind: KindProviderAPI, Provider: provider, Message: message}
}

// QuotaExceeded builds a KindQuotaExceeded error.
func QuotaExceeded(message string) *Error { return &Error{Kind: KindQuotaExceeded, Message: message} }

// Conflict builds a KindConflict error.
func Conflict(message string) *Error { return &Error{Kind: KindConflict, Message: message} }

// Unsupported builds a KindUnsupported error.
func Unsupported(message string) *Error { return &Error{Kind: KindUnsupported, Message: message} }

// Serialization wraps err as a KindSerialization error.
func Serialization(message string, err error) *Error {
	return &Error{Kind: KindSerialization, Message: message, Err: err}
}

// Cache wraps err as a KindCache error, for cache-internal faults that
// should never propagate as failures of the operation they occurred
// during (see the coordinator's "never fail on a cache fault" policy).
func Cache(message string, err error) *Error {
	return &Error{Kind: KindCache, Message: message, Err: err}
}

// OfflineNoCache builds a KindOfflineNoCache error.
func OfflineNoCache() *Error { return &Error{Kind: KindOfflineNoCache} }

// InvalidContentID builds a KindInvalidContentID error.
func InvalidContentID(s string) *Error { return &Error{Kind: KindInvalidContentID, Message: s} }

// CorruptedContent builds a KindCorruptedContent error for the given CID
// hex string.
func CorruptedContent(cidHex string) *Error { return &Error{Kind: KindCorruptedContent, CID: cidHex} }

// ChecksumMismatch builds a KindChecksumMismatch error.
func ChecksumMismatch() *Error { return &Error{Kind: KindChecksumMismatch} }

// BackendNotFound builds a KindBackendNotFound error for the given backend
// identifier.
func BackendNotFound(id string) *Error { return &Error{Kind: KindBackendNotFound, Path: id} }
