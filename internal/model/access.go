package model

import "time"

type AccessFailureReason string

const (
	ReasonAccessDenied   AccessFailureReason = "ACCESS_DENIED"
	ReasonTransientError AccessFailureReason = "TRANSIENT_ERROR"
)

// AccessDetails is the answer to an access lookup. Failures are carried as
// data: Success=false with a Reason and a user-facing Message.
type AccessDetails struct {
	Success         bool                `json:"success"`
	AccessType      AccessType          `json:"access_type,omitempty"`
	Reason          AccessFailureReason `json:"reason,omitempty"`
	Message         string              `json:"message,omitempty"`
	Document        *Document           `json:"document,omitempty"`
	Packages        []PricingPackage    `json:"packages,omitempty"`
	ExpiresAt       *time.Time          `json:"expires_at,omitempty"`
	Watermark       string              `json:"watermark,omitempty"`
	DownloadAllowed bool                `json:"download_allowed"`
}
