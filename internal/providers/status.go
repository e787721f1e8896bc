package providers

import (
	"strings"

	"github.com/paygrid-payments-engine/internal/domain/shared"
)

// statusVocabulary collapses every raw status string the supported rails
// emit onto the internal four-state vocabulary. Rails disagree wildly on
// naming; this table is the only place those spellings exist.
var statusVocabulary = map[string]shared.Status{
	// successful
	"success":    shared.StatusSuccessful,
	"successful": shared.StatusSuccessful,
	"paid":       shared.StatusSuccessful,
	"completed":  shared.StatusSuccessful,
	"activated":  shared.StatusSuccessful,
	"settled":    shared.StatusSuccessful,
	"approved":   shared.StatusSuccessful,

	// failed
	"failed":       shared.StatusFailed,
	"failure":      shared.StatusFailed,
	"declined":     shared.StatusFailed,
	"error":        shared.StatusFailed,
	"expired":      shared.StatusFailed,
	"abandoned":    shared.StatusFailed,
	"cancelled":    shared.StatusFailed,
	"reversed":     shared.StatusFailed,
	"insufficient": shared.StatusFailed,

	// processing
	"processing":  shared.StatusProcessing,
	"in_progress": shared.StatusProcessing,
	"ongoing":     shared.StatusProcessing,
	"queued":      shared.StatusProcessing,

	// pending
	"pending":     shared.StatusPending,
	"initiated":   shared.StatusPending,
	"new":         shared.StatusPending,
	"created":     shared.StatusPending,
	"pay_offline": shared.StatusPending,
	"send_otp":    shared.StatusPending,
	"send_pin":    shared.StatusPending,
	"open_url":    shared.StatusPending,
}

// GetPaymentStatus maps a raw provider status onto the internal vocabulary.
// It is total: an unrecognized string maps to pending, because the engine
// must never assume success or failure from a status it cannot read.
func GetPaymentStatus(raw string) shared.Status {
	if s, ok := statusVocabulary[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return shared.StatusPending
}
