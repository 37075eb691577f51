package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/reconcile"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/uploader"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/validate"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/wizard"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/notifier"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/observability"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/id"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

// KYCRepository is the persistence surface the service needs; the pgx
// repository implements it.
type KYCRepository interface {
	UpsertDraft(ctx context.Context, k *domain.KYCSubmission) error
	GetByUserID(ctx context.Context, userID string) (*domain.KYCSubmission, error)
	GetByID(ctx context.Context, id string) (*domain.KYCSubmission, error)
	RegisterDocument(ctx context.Context, userID string, dt domain.DocType, path string) error
	ClearDocument(ctx context.Context, userID string, dt domain.DocType) error
	MarkSubmitted(ctx context.Context, userID string) error
	UpdateStatus(ctx context.Context, id string, status domain.KYCStatus, reviewer string, notes *string) error
	InsertAuditLog(ctx context.Context, log *domain.KYCAuditLog) error
	GetAuditLogs(ctx context.Context, kycID string) ([]domain.KYCAuditLog, error)
}

type KYCService struct {
	repo        KYCRepository
	uploads     *uploader.Uploader
	wizardStore wizard.Store
	notifier    *notifier.Notifier
	metrics     *observability.Metrics
	sf          *id.Snowflake
	logger      *zap.Logger
}

func NewKYCService(repo KYCRepository, uploads *uploader.Uploader, wizardStore wizard.Store,
	n *notifier.Notifier, metrics *observability.Metrics, sf *id.Snowflake, logger *zap.Logger) *KYCService {
	return &KYCService{
		repo:        repo,
		uploads:     uploads,
		wizardStore: wizardStore,
		notifier:    n,
		metrics:     metrics,
		sf:          sf,
		logger:      logger,
	}
}

// Overview is what a resuming client needs: the authoritative
// submission plus the wizard state reconciled against it.
type Overview struct {
	Submission *domain.KYCSubmission `json:"submission,omitempty"`
	Wizard     wizard.State          `json:"wizard"`
	Superseded bool                  `json:"superseded"`
}

// Wizard loads the user's wizard, reconciled against the remote record.
// The remote submission is the single source of truth for "is this
// step actually done": stale local confirmations are dropped, missing
// ones are added, and the pointer lands on the first incomplete step.
func (s *KYCService) Wizard(ctx context.Context, userID string) (*wizard.Wizard, *domain.KYCSubmission, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil, err
	}

	w := wizard.New(ctx, userID, s.wizardStore, s.logger)
	w.Restore(ctx, reconcile.Rebuild(sub, w.State()))
	return w, sub, nil
}

// Overview returns the reconciled view for the client.
func (s *KYCService) Overview(ctx context.Context, userID string) (*Overview, error) {
	w, sub, err := s.Wizard(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Submission: sub,
		Wizard:     w.State(),
		Superseded: reconcile.Superseded(sub),
	}, nil
}

// DraftRequest carries the step-1 identity and address fields.
type DraftRequest struct {
	UserID         string                 `json:"-"`
	FullName       string                 `json:"full_name"`
	BirthDate      time.Time              `json:"birth_date"`
	Country        string                 `json:"country"`
	DocumentType   domain.IdentityDocType `json:"document_type"`
	DocumentNumber string                 `json:"document_number"`
	Department     string                 `json:"department"`
	Municipality   string                 `json:"municipality"`
	Neighborhood   string                 `json:"neighborhood"`
	AddressDesc    string                 `json:"address_desc"`
}

// DraftResult echoes the saved draft plus the passport notice flag:
// the document step reuses the same image for front and back when the
// identity document is a passport, and clients must explain that
// before step 2 becomes reachable.
type DraftResult struct {
	Submission             *domain.KYCSubmission `json:"submission"`
	Wizard                 wizard.State          `json:"wizard"`
	RequiresPassportNotice bool                  `json:"requires_passport_notice"`
}

// SaveDraft validates and persists step 1. On success the wizard's
// datos flag is set; on failure local state is left untouched so the
// client blocks forward progress until a retry succeeds.
func (s *KYCService) SaveDraft(ctx context.Context, req *DraftRequest) (*DraftResult, error) {
	sub := &domain.KYCSubmission{
		ID:             s.sf.Generate(),
		UserID:         req.UserID,
		FullName:       req.FullName,
		BirthDate:      req.BirthDate,
		Country:        req.Country,
		DocumentType:   req.DocumentType,
		DocumentNumber: req.DocumentNumber,
		Department:     req.Department,
		Municipality:   req.Municipality,
		Neighborhood:   req.Neighborhood,
		AddressDesc:    req.AddressDesc,
	}
	if sub.DocumentType == domain.IdentityDocID {
		sub.DocumentNumber = validate.FormatDNI(sub.DocumentNumber)
	}
	if err := validate.Draft(sub, time.Now()); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUserID(ctx, req.UserID)
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	if reconcile.Superseded(existing) {
		return nil, xerrors.ErrKYCAlreadyFinal
	}
	if existing != nil {
		sub.ID = existing.ID
	}

	if err := s.repo.UpsertDraft(ctx, sub); err != nil {
		return nil, err
	}
	s.audit(ctx, sub.ID, "draft_saved", req.UserID, "")

	w, saved, err := s.Wizard(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &DraftResult{
		Submission:             saved,
		Wizard:                 w.State(),
		RequiresPassportNotice: req.DocumentType == domain.IdentityDocPassport,
	}, nil
}

// UploadDocument validates, stores and registers one document, then
// mirrors the new remote truth into the wizard. For passports the same
// object backs both the front and back slots.
func (s *KYCService) UploadDocument(ctx context.Context, userID string, dt domain.DocType, filename string, data []byte) (*uploader.Result, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNoKYCSubmission
		}
		return nil, err
	}
	if reconcile.Superseded(sub) {
		return nil, xerrors.ErrKYCAlreadyFinal
	}

	res, err := s.uploads.Upload(ctx, userID, dt, filename, data)
	if err != nil {
		return nil, err
	}

	if sub.DocumentType == domain.IdentityDocPassport && dt == domain.DocFront {
		// Passports have no distinct back side; register the same
		// object for the reverse slot.
		if err := s.repo.RegisterDocument(ctx, userID, domain.DocBack, res.Path); err != nil {
			return nil, err
		}
	}

	s.metrics.IncrDocument(string(dt))
	s.audit(ctx, sub.ID, "document_uploaded", userID, string(dt))

	// Re-reconcile so the persisted wizard reflects the registered path.
	if _, _, err := s.Wizard(ctx, userID); err != nil {
		s.logger.Warn("wizard reconcile after upload failed",
			zap.String("user_id", userID), zap.Error(err))
	}
	return res, nil
}

// RemoveDocument clears a document pointer (explicit removal action).
func (s *KYCService) RemoveDocument(ctx context.Context, userID string, dt domain.DocType) error {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if reconcile.Superseded(sub) {
		return xerrors.ErrKYCAlreadyFinal
	}
	if err := s.repo.ClearDocument(ctx, userID, dt); err != nil {
		return err
	}
	s.audit(ctx, sub.ID, "document_removed", userID, string(dt))
	return nil
}

// AcceptDeclaration records the step-5 checkbox locally; it only
// becomes remote truth at submit.
func (s *KYCService) AcceptDeclaration(ctx context.Context, userID string, accepted bool) (wizard.State, error) {
	w, _, err := s.Wizard(ctx, userID)
	if err != nil {
		return wizard.State{}, err
	}
	w.SetFlag(ctx, wizard.FlagAceptoDeclaracion, accepted)
	return w.State(), nil
}

// Submit transitions the submission into review. One-way: there is no
// user-facing retry into draft, only the admin revert.
func (s *KYCService) Submit(ctx context.Context, userID string) error {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return xerrors.ErrNoKYCSubmission
		}
		return err
	}

	w, _, err := s.Wizard(ctx, userID)
	if err != nil {
		return err
	}
	st := w.State()
	allDocs := sub.HasDocument(domain.DocFront) && sub.HasDocument(domain.DocBack) &&
		sub.HasDocument(domain.DocSelfie) && sub.HasDocument(domain.DocAddressProof)
	if !allDocs || !st.Flags.DatosOK || !st.Flags.AceptoDeclaracion {
		return xerrors.ErrKYCIncomplete
	}

	if err := s.repo.MarkSubmitted(ctx, userID); err != nil {
		s.metrics.IncrSubmission("submit_failed")
		return err
	}
	s.metrics.IncrSubmission("submitted")
	s.audit(ctx, sub.ID, "submitted", userID, "user submitted verification documents")

	s.notifier.Notify(ctx, userID, "KYC_SUBMITTED",
		"Verification submitted",
		"Your identity documents were submitted and are awaiting review.", nil)
	return nil
}

// ReviewRequest is an admin decision on a submission.
type ReviewRequest struct {
	KYCID      string           `json:"-"`
	ReviewerID string           `json:"-"`
	Decision   domain.KYCStatus `json:"decision"`
	Notes      string           `json:"notes"`
}

// Review applies approved/rejected to a submission under review.
func (s *KYCService) Review(ctx context.Context, req *ReviewRequest) error {
	if req.Decision != domain.KYCStatusApproved && req.Decision != domain.KYCStatusRejected {
		return xerrors.ErrInvalidKYCDecision
	}
	if req.Decision == domain.KYCStatusRejected && req.Notes == "" {
		return xerrors.ErrKYCRejectionNote
	}

	sub, err := s.repo.GetByID(ctx, req.KYCID)
	if err != nil {
		return err
	}
	if sub.Status != domain.KYCStatusReview {
		return xerrors.ErrKYCNotSubmittable
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}
	if err := s.repo.UpdateStatus(ctx, req.KYCID, req.Decision, req.ReviewerID, notes); err != nil {
		return err
	}
	s.metrics.IncrSubmission(string(req.Decision))
	s.audit(ctx, req.KYCID, string(req.Decision), req.ReviewerID, req.Notes)

	title := "Verification approved"
	body := "Your identity has been verified."
	if req.Decision == domain.KYCStatusRejected {
		title = "Verification rejected"
		body = "Your verification was rejected: " + req.Notes
	}
	s.notifier.Notify(ctx, sub.UserID, "KYC_REVIEWED", title, body, nil)
	return nil
}

// Revert moves a decided submission back to draft so the user can fix
// and resubmit. Admin-only; the handler enforces the role.
func (s *KYCService) Revert(ctx context.Context, kycID, adminID, reason string) error {
	sub, err := s.repo.GetByID(ctx, kycID)
	if err != nil {
		return err
	}
	switch sub.Status {
	case domain.KYCStatusApproved, domain.KYCStatusRejected, domain.KYCStatusReview:
	default:
		return xerrors.ErrInvalidRequest
	}

	var notes *string
	if reason != "" {
		notes = &reason
	}
	if err := s.repo.UpdateStatus(ctx, kycID, domain.KYCStatusDraft, adminID, notes); err != nil {
		return err
	}
	s.metrics.IncrSubmission("reverted")
	s.audit(ctx, kycID, "reverted", adminID, reason)
	s.notifier.Notify(ctx, sub.UserID, "KYC_REVERTED",
		"Verification reopened",
		"Your verification was reopened. Please review your documents and resubmit.", nil)
	return nil
}

// GetStatus returns the current submission for a user.
func (s *KYCService) GetStatus(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.ErrNoKYCSubmission
		}
		return nil, err
	}
	return sub, nil
}

// GetAuditLogs retrieves audit logs for a submission.
func (s *KYCService) GetAuditLogs(ctx context.Context, kycID string) ([]domain.KYCAuditLog, error) {
	return s.repo.GetAuditLogs(ctx, kycID)
}

func (s *KYCService) audit(ctx context.Context, kycID, action, actor, notes string) {
	err := s.repo.InsertAuditLog(ctx, &domain.KYCAuditLog{
		KYCID: kycID, Action: action, Actor: actor, Notes: notes,
	})
	if err != nil {
		s.logger.Warn("audit log insert failed",
			zap.String("kyc_id", kycID), zap.String("action", action), zap.Error(err))
	}
}
