package domain

import "time"

// KYCStatus represents possible states of a KYC submission.
type KYCStatus string

const (
	KYCStatusNone     KYCStatus = "none"
	KYCStatusDraft    KYCStatus = "draft"
	KYCStatusReview   KYCStatus = "review"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

// IdentityDocType is the kind of identity document the user verifies with.
type IdentityDocType string

const (
	IdentityDocID       IdentityDocType = "id"
	IdentityDocPassport IdentityDocType = "passport"
)

// DocType identifies one of the four uploaded verification documents.
type DocType string

const (
	DocFront        DocType = "front"
	DocBack         DocType = "back"
	DocSelfie       DocType = "selfie"
	DocAddressProof DocType = "address"
)

// KYCSubmission is the authoritative verification record for a user.
// Document path columns are nullable object-storage keys; a non-nil
// value means that document has been uploaded.
type KYCSubmission struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	Status KYCStatus `json:"status"`

	// Identity
	FullName       string          `json:"full_name"`
	BirthDate      time.Time       `json:"birth_date"`
	Country        string          `json:"country"`
	DocumentType   IdentityDocType `json:"document_type"`
	DocumentNumber string          `json:"document_number"`

	// Address
	Department   string `json:"department"`
	Municipality string `json:"municipality"`
	Neighborhood string `json:"neighborhood"`
	AddressDesc  string `json:"address_desc"`

	// Document pointers (object-storage keys)
	DocumentFrontPath *string `json:"document_front_path,omitempty"`
	DocumentBackPath  *string `json:"document_back_path,omitempty"`
	SelfiePath        *string `json:"selfie_path,omitempty"`
	AddressProofPath  *string `json:"address_proof_path,omitempty"`

	// Audit
	Notes       string     `json:"notes,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"-"`
}

// HasDocument reports whether the given document slot is filled.
func (k *KYCSubmission) HasDocument(dt DocType) bool {
	switch dt {
	case DocFront:
		return k.DocumentFrontPath != nil && *k.DocumentFrontPath != ""
	case DocBack:
		return k.DocumentBackPath != nil && *k.DocumentBackPath != ""
	case DocSelfie:
		return k.SelfiePath != nil && *k.SelfiePath != ""
	case DocAddressProof:
		return k.AddressProofPath != nil && *k.AddressProofPath != ""
	}
	return false
}

// KYCAuditLog captures changes in submission state or actions taken.
type KYCAuditLog struct {
	ID        string    `json:"id"`
	KYCID     string    `json:"kyc_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
