package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProviderMounted is returned when Mount is called on a mounted provider
var ErrProviderMounted = errors.New("auth provider already mounted")

// ErrSignInInProgress is returned while a previous sign in attempt is outstanding
var ErrSignInInProgress = errors.New("sign in already in progress")

// ErrServiceUnavailable marks transport failures talking to the auth service
var ErrServiceUnavailable = errors.New("auth service unavailable")

// ErrBackendRequired is returned when a client is built without a backend
var ErrBackendRequired = errors.New("auth backend required")

// ErrUnableToDecodeSession stored session payload could not be decoded
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrSubjectMismatch the access token does not belong to the stored user
var ErrSubjectMismatch = errors.New("token subject does not match session user")

// MsgPasswordMismatch is shown when the sign up confirmation differs
const MsgPasswordMismatch = "Passwords do not match"

// MsgGenericError is shown when the service gives no usable message
const MsgGenericError = "An error occurred"

// ConfigurationError is returned when the auth service endpoint or its
// public key are not configured. It is fatal at startup.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("auth: missing configuration: %s", strings.Join(e.Missing, ", "))
}

// AuthError is a recoverable failure reported by the auth service, e.g.
// invalid credentials or an existing account. Message is safe to display.
type AuthError struct {
	Message string
	Status  int
	Code    string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return MsgGenericError
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the service answered and refused the request,
// as opposed to a transport failure.
func (e *AuthError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// ValidationError is a local input error raised before any network call.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsConfigurationError will check for missing configuration
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsAuthError will check for errors reported by the auth service
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRejected will check for errors where the service refused the request
func IsRejected(err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Rejected()
}

// IsValidationError will check for local validation errors
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// ErrorMessage returns the message to display inline for err
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Message
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Error()
	}

	if errors.Is(err, ErrSignInInProgress) {
		return "Signing in..."
	}

	return MsgGenericError
}

func toAuthError(err error) error {
	if err == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	return &AuthError{
		Message: MsgGenericError,
		Err:     errors.Join(ErrServiceUnavailable, err),
	}
}
