package domain

import "errors"

// HTTP status codes the client reacts to specially.
const (
	StatusNotAuthenticated = 401
	StatusNotAllowed       = 405
)

// Request headers attached to credentialed requests.
const (
	HeaderAuthorization = "authorization"
	HeaderWorkspace     = "workspace"
	HeaderTier          = "tier"
	HeaderApp           = "app"
	HeaderDevice        = "device"
)

const (
	AppName       = "fina"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// ResponseClass is the outcome of a request as seen by callers.
type ResponseClass string

const (
	ClassSuccess          ResponseClass = "success"
	ClassNotAuthenticated ResponseClass = "not_authenticated"
	ClassNotAllowed       ResponseClass = "not_allowed"
	ClassOther            ResponseClass = "other"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotAllowed       = errors.New("not allowed")
	ErrRequestFailed    = errors.New("request failed")
)

// ClassifyStatus maps a resolved HTTP status to a ResponseClass.
func ClassifyStatus(status int) ResponseClass {
	switch {
	case status >= 200 && status < 300:
		return ClassSuccess
	case status == StatusNotAuthenticated:
		return ClassNotAuthenticated
	case status == StatusNotAllowed:
		return ClassNotAllowed
	default:
		return ClassOther
	}
}

// Handled reports whether callers are expected to react to this class
// specially (sign the user out, show a message).
func (c ResponseClass) Handled() bool {
	return c == ClassNotAuthenticated || c == ClassNotAllowed
}

// Err returns the sentinel for a failure class.
func (c ResponseClass) Err() error {
	switch c {
	case ClassNotAuthenticated:
		return ErrNotAuthenticated
	case ClassNotAllowed:
		return ErrNotAllowed
	case ClassSuccess:
		return nil
	default:
		return ErrRequestFailed
	}
}
