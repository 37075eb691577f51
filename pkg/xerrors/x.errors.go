package xerrors

import "errors"
import "github.com/jackc/pgx/v5/pgconn"

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input provided")
)

// KYC
var (
	ErrNoKYCSubmission    = errors.New("no KYC submission found for user")
	ErrKYCRejectionNote   = errors.New("rejection note is required when rejecting KYC")
	ErrInvalidKYCDecision = errors.New("invalid decision: must be 'approved' or 'rejected'")
	ErrKYCNotSubmittable  = errors.New("submission is not in a submittable state")
	ErrKYCAlreadyFinal    = errors.New("submission has already been reviewed")
	ErrKYCIncomplete      = errors.New("all documents and the declaration are required before submitting")
)

// Uploads
var (
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge       = errors.New("file exceeds the maximum allowed size")
	ErrStorageWrite       = errors.New("object storage write failed")
	ErrAllBucketsFailed   = errors.New("all storage buckets rejected the write")
)

// Chat
var (
	ErrNotParticipant  = errors.New("caller is not a participant of this thread")
	ErrThreadNotActive = errors.New("thread is not active")
	ErrEmptyMessage    = errors.New("message body is empty")
)
