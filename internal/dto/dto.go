package dto

import "docview-paywall/internal/model"

type StartSessionRequest struct {
	DocumentID string `json:"document_id"`
}

type SelectPackageRequest struct {
	PackageID string `json:"package_id"`
}

type SubmitPaymentRequest struct {
	model.PaymentDetails
}

type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Access  *model.AccessDetails `json:"access,omitempty"`
}

type CountdownResponse struct {
	ExpiresAt        string `json:"expires_at"`
	Days             int    `json:"days"`
	Hours            int    `json:"hours"`
	Minutes          int    `json:"minutes"`
	Seconds          int    `json:"seconds"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	Expired          bool   `json:"expired"`
	Display          string `json:"display"`
}

type CreateVisitorLinkRequest struct {
	VisitorEmail    string `json:"visitor_email"`
	DownloadAllowed bool   `json:"download_allowed"`
	ExpiresIn       string `json:"expires_in"` // Go duration, e.g. "48h"
}

type AccessResponse struct {
	model.AccessDetails
	Countdown *CountdownResponse `json:"countdown,omitempty"`
}
