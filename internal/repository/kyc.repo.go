package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

type KYCRepo struct {
	db *pgxpool.Pool
}

func NewKYCRepo(db *pgxpool.Pool) *KYCRepo {
	return &KYCRepo{db: db}
}

const kycColumns = `
	id, user_id, status, full_name, birth_date, country, document_type, document_number,
	department, municipality, neighborhood, address_desc,
	document_front_path, document_back_path, selfie_path, address_proof_path,
	notes, reviewed_at, reviewed_by, submitted_at, created_at, updated_at`

func scanSubmission(row pgx.Row) (*domain.KYCSubmission, error) {
	var k domain.KYCSubmission
	err := row.Scan(
		&k.ID, &k.UserID, &k.Status, &k.FullName, &k.BirthDate, &k.Country,
		&k.DocumentType, &k.DocumentNumber,
		&k.Department, &k.Municipality, &k.Neighborhood, &k.AddressDesc,
		&k.DocumentFrontPath, &k.DocumentBackPath, &k.SelfiePath, &k.AddressProofPath,
		&k.Notes, &k.ReviewedAt, &k.ReviewedBy, &k.SubmittedAt, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

// UpsertDraft creates or updates the user's draft identity+address
// fields. One submission row per user; repeated saves overwrite.
func (r *KYCRepo) UpsertDraft(ctx context.Context, k *domain.KYCSubmission) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO kyc_submissions
			(id, user_id, status, full_name, birth_date, country, document_type, document_number,
			 department, municipality, neighborhood, address_desc, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			full_name=EXCLUDED.full_name, birth_date=EXCLUDED.birth_date,
			country=EXCLUDED.country, document_type=EXCLUDED.document_type,
			document_number=EXCLUDED.document_number, department=EXCLUDED.department,
			municipality=EXCLUDED.municipality, neighborhood=EXCLUDED.neighborhood,
			address_desc=EXCLUDED.address_desc,
			status=CASE WHEN kyc_submissions.status='none' THEN 'draft' ELSE kyc_submissions.status END,
			updated_at=NOW()
	`, k.ID, k.UserID, domain.KYCStatusDraft, k.FullName, k.BirthDate, k.Country,
		k.DocumentType, k.DocumentNumber, k.Department, k.Municipality, k.Neighborhood, k.AddressDesc)
	return err
}

// GetByUserID fetches the user's submission.
func (r *KYCRepo) GetByUserID(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	return scanSubmission(r.db.QueryRow(ctx,
		`SELECT `+kycColumns+` FROM kyc_submissions WHERE user_id=$1`, userID))
}

// GetByID fetches a submission by its ID (admin review path).
func (r *KYCRepo) GetByID(ctx context.Context, id string) (*domain.KYCSubmission, error) {
	return scanSubmission(r.db.QueryRow(ctx,
		`SELECT `+kycColumns+` FROM kyc_submissions WHERE id=$1`, id))
}

var docColumns = map[domain.DocType]string{
	domain.DocFront:        "document_front_path",
	domain.DocBack:         "document_back_path",
	domain.DocSelfie:       "selfie_path",
	domain.DocAddressProof: "address_proof_path",
}

// RegisterDocument points one document column at an object-storage key.
// Re-registering overwrites: uploads are upserts by construction.
func (r *KYCRepo) RegisterDocument(ctx context.Context, userID string, dt domain.DocType, path string) error {
	col, ok := docColumns[dt]
	if !ok {
		return fmt.Errorf("%w: doc type %q", xerrors.ErrInvalidInput, dt)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE kyc_submissions SET `+col+`=$1, updated_at=NOW() WHERE user_id=$2
	`, path, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ClearDocument removes a document pointer (explicit user/admin removal).
func (r *KYCRepo) ClearDocument(ctx context.Context, userID string, dt domain.DocType) error {
	col, ok := docColumns[dt]
	if !ok {
		return fmt.Errorf("%w: doc type %q", xerrors.ErrInvalidInput, dt)
	}
	_, err := r.db.Exec(ctx,
		`UPDATE kyc_submissions SET `+col+`=NULL, updated_at=NOW() WHERE user_id=$1`, userID)
	return err
}

// MarkSubmitted transitions none/draft -> review; the WHERE clause
// makes the submit one-way and safe to re-issue.
func (r *KYCRepo) MarkSubmitted(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE kyc_submissions
		SET status=$1, submitted_at=NOW(), updated_at=NOW()
		WHERE user_id=$2 AND status IN ('none','draft')
	`, domain.KYCStatusReview, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrKYCNotSubmittable
	}
	return nil
}

// UpdateStatus applies a review decision or an admin revert.
func (r *KYCRepo) UpdateStatus(ctx context.Context, id string, status domain.KYCStatus, reviewer string, notes *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE kyc_submissions
		SET status=$1, notes=COALESCE($2, notes), reviewed_at=NOW(), reviewed_by=$3, updated_at=NOW()
		WHERE id=$4
	`, status, notes, reviewer, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// InsertAuditLog records an action in the audit logs.
func (r *KYCRepo) InsertAuditLog(ctx context.Context, log *domain.KYCAuditLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO kyc_audit_logs (kyc_id, action, actor, notes, created_at)
		VALUES ($1,$2,$3,$4,NOW())
	`, log.KYCID, log.Action, log.Actor, log.Notes)
	return err
}

// GetAuditLogs fetches audit logs for a given submission.
func (r *KYCRepo) GetAuditLogs(ctx context.Context, kycID string) ([]domain.KYCAuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kyc_id, action, actor, notes, created_at
		FROM kyc_audit_logs
		WHERE kyc_id=$1
		ORDER BY created_at ASC
	`, kycID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.KYCAuditLog
	for rows.Next() {
		var l domain.KYCAuditLog
		if err := rows.Scan(&l.ID, &l.KYCID, &l.Action, &l.Actor, &l.Notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
