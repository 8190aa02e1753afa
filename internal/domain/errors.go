package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")

	// ErrTargetResolution marks a target whose configuration can no longer be
	// resolved (missing target, deleted customer). It excludes only that
	// target's contribution from a dispatch, never the whole request.
	ErrTargetResolution = errors.New("target resolution failed")

	// ErrSettingsDisabled marks a send skipped because the recipient disabled
	// the notification type or delivery method for themselves.
	ErrSettingsDisabled = errors.New("disabled by user settings")
)
