package model

import "time"

type AccessType string

const (
	AccessTypeVisitor         AccessType = "VISITOR"
	AccessTypePaymentRequired AccessType = "PAYMENT_REQUIRED"
	AccessTypePurchased       AccessType = "PURCHASED" // holder of a valid viewing grant
)

type Document struct {
	ID          string     `gorm:"primaryKey;size:64;not null" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"size:1024" json:"description,omitempty"`
	Owner       string     `gorm:"size:128" json:"owner,omitempty"`
	PageCount   int32      `json:"page_count"`
	FileType    string     `gorm:"size:16" json:"file_type,omitempty"` // pdf, docx
	AccessType  AccessType `gorm:"size:32;index;not null" json:"access_type"`

	Packages []PricingPackage `gorm:"foreignKey:DocumentID" json:"packages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Offers looks up one of the document's pricing packages.
func (d *Document) Offers(packageID string) (PricingPackage, bool) {
	for _, p := range d.Packages {
		if p.ID == packageID {
			return p, true
		}
	}
	return PricingPackage{}, false
}

// PricingPackage is one purchasable way of viewing a document. Price is in
// the currency's minor unit (VND has none, so 50000 is 50.000đ).
type PricingPackage struct {
	DocumentID      string `gorm:"primaryKey;size:64;not null" json:"-"`
	ID              string `gorm:"primaryKey;size:64;not null" json:"id"` // view_once, view_week
	Name            string `gorm:"size:128;not null" json:"name"`
	Description     string `gorm:"size:512" json:"description,omitempty"`
	Price           int64  `gorm:"not null" json:"price"`
	Currency        string `gorm:"size:8;not null" json:"currency"`
	DownloadAllowed bool   `gorm:"not null;default:false" json:"download_allowed"`
}

// VisitorLink is a time-boxed share link for guest viewing.
type VisitorLink struct {
	Token           string    `gorm:"primaryKey;size:64;not null" json:"token"`
	DocumentID      string    `gorm:"size:64;index;not null" json:"document_id"`
	VisitorEmail    string    `gorm:"size:255" json:"visitor_email,omitempty"`
	DownloadAllowed bool      `gorm:"not null;default:false" json:"download_allowed"`
	ExpiresAt       time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
}

type PaymentTransaction struct {
	ID         string    `gorm:"primaryKey;size:64;not null" json:"id"` // provider transaction id, or a local id for failures
	SessionID  string    `gorm:"size:64;index" json:"session_id"`
	DocumentID string    `gorm:"size:64;index;not null" json:"document_id"`
	PackageID  string    `gorm:"size:64;not null" json:"package_id"`
	Amount     int64     `gorm:"not null" json:"amount"`
	Currency   string    `gorm:"size:8;not null" json:"currency"`
	Provider   string    `gorm:"size:32;not null" json:"provider"` // mock, braintree, paypal
	Success    bool      `gorm:"index;not null" json:"success"`
	Message    string    `gorm:"size:512" json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ViewingGrant struct {
	ID              string    `gorm:"primaryKey;size:64;not null" json:"id"`
	DocumentID      string    `gorm:"size:64;index;not null" json:"document_id"`
	PackageID       string    `gorm:"size:64;not null" json:"package_id"`
	TransactionID   string    `gorm:"size:64;index;not null" json:"transaction_id"`
	VisitorID       string    `gorm:"size:64;index" json:"visitor_id,omitempty"`
	DownloadAllowed bool      `gorm:"not null;default:false" json:"download_allowed"`
	Token           string    `gorm:"size:1024" json:"token,omitempty"`
	IssuedAt        time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt       time.Time `gorm:"index;not null" json:"expires_at"`
}

func (g *ViewingGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}
