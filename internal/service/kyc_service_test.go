package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/wizard"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/notifier"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/observability"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/service"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/id"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

// fakeKYCRepo is an in-memory KYCRepository.
type fakeKYCRepo struct {
	byUser map[string]*domain.KYCSubmission
	audits []domain.KYCAuditLog
}

func newFakeKYCRepo() *fakeKYCRepo {
	return &fakeKYCRepo{byUser: make(map[string]*domain.KYCSubmission)}
}

func (r *fakeKYCRepo) UpsertDraft(_ context.Context, k *domain.KYCSubmission) error {
	if existing, ok := r.byUser[k.UserID]; ok {
		// Draft upsert keeps status and document pointers.
		k.Status = existing.Status
		k.DocumentFrontPath = existing.DocumentFrontPath
		k.DocumentBackPath = existing.DocumentBackPath
		k.SelfiePath = existing.SelfiePath
		k.AddressProofPath = existing.AddressProofPath
	} else {
		k.Status = domain.KYCStatusDraft
	}
	r.byUser[k.UserID] = k
	return nil
}

func (r *fakeKYCRepo) GetByUserID(_ context.Context, userID string) (*domain.KYCSubmission, error) {
	sub, ok := r.byUser[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return sub, nil
}

func (r *fakeKYCRepo) GetByID(_ context.Context, kycID string) (*domain.KYCSubmission, error) {
	for _, sub := range r.byUser {
		if sub.ID == kycID {
			return sub, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *fakeKYCRepo) RegisterDocument(_ context.Context, userID string, dt domain.DocType, path string) error {
	sub, ok := r.byUser[userID]
	if !ok {
		return xerrors.ErrNotFound
	}
	p := path
	switch dt {
	case domain.DocFront:
		sub.DocumentFrontPath = &p
	case domain.DocBack:
		sub.DocumentBackPath = &p
	case domain.DocSelfie:
		sub.SelfiePath = &p
	case domain.DocAddressProof:
		sub.AddressProofPath = &p
	}
	return nil
}

func (r *fakeKYCRepo) ClearDocument(_ context.Context, userID string, dt domain.DocType) error {
	sub, ok := r.byUser[userID]
	if !ok {
		return xerrors.ErrNotFound
	}
	switch dt {
	case domain.DocFront:
		sub.DocumentFrontPath = nil
	case domain.DocBack:
		sub.DocumentBackPath = nil
	case domain.DocSelfie:
		sub.SelfiePath = nil
	case domain.DocAddressProof:
		sub.AddressProofPath = nil
	}
	return nil
}

func (r *fakeKYCRepo) MarkSubmitted(_ context.Context, userID string) error {
	sub, ok := r.byUser[userID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if sub.Status != domain.KYCStatusNone && sub.Status != domain.KYCStatusDraft {
		return xerrors.ErrKYCNotSubmittable
	}
	now := time.Now()
	sub.Status = domain.KYCStatusReview
	sub.SubmittedAt = &now
	return nil
}

func (r *fakeKYCRepo) UpdateStatus(_ context.Context, kycID string, status domain.KYCStatus, reviewer string, notes *string) error {
	for _, sub := range r.byUser {
		if sub.ID == kycID {
			sub.Status = status
			sub.ReviewedBy = &reviewer
			if notes != nil {
				sub.Notes = *notes
			}
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (r *fakeKYCRepo) InsertAuditLog(_ context.Context, log *domain.KYCAuditLog) error {
	r.audits = append(r.audits, *log)
	return nil
}

func (r *fakeKYCRepo) GetAuditLogs(_ context.Context, kycID string) ([]domain.KYCAuditLog, error) {
	var out []domain.KYCAuditLog
	for _, a := range r.audits {
		if a.KYCID == kycID {
			out = append(out, a)
		}
	}
	return out, nil
}

func newKYCService(t *testing.T, repo *fakeKYCRepo) *service.KYCService {
	t.Helper()
	sf, err := id.NewSnowflake(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	n := notifier.New(nil, nil, metrics, logger)
	return service.NewKYCService(repo, nil, wizard.NewMemStore(), n, metrics, sf, logger)
}

func validDraft(userID string) *service.DraftRequest {
	return &service.DraftRequest{
		UserID:         userID,
		FullName:       "Ana Castillo",
		BirthDate:      time.Date(1992, 5, 20, 0, 0, 0, 0, time.UTC),
		Country:        "HN",
		DocumentType:   domain.IdentityDocID,
		DocumentNumber: "0801199254321",
		Department:     "Atlántida",
		Municipality:   "La Ceiba",
		Neighborhood:   "Barrio Inglés",
		AddressDesc:    "Frente al parque central",
	}
}

func fillDocuments(repo *fakeKYCRepo, userID string) {
	ctx := context.Background()
	repo.RegisterDocument(ctx, userID, domain.DocFront, userID+"/front/front.jpg")
	repo.RegisterDocument(ctx, userID, domain.DocBack, userID+"/back/back.jpg")
	repo.RegisterDocument(ctx, userID, domain.DocSelfie, userID+"/selfie/selfie.jpg")
	repo.RegisterDocument(ctx, userID, domain.DocAddressProof, userID+"/address/address.pdf")
}

func TestSaveDraftFormatsDNI(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)

	res, err := svc.SaveDraft(context.Background(), validDraft("u1"))
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if res.Submission.DocumentNumber != "0801-1992-54321" {
		t.Errorf("document number = %q, want masked DNI", res.Submission.DocumentNumber)
	}
	if res.RequiresPassportNotice {
		t.Error("passport notice raised for a DNI draft")
	}
	if !res.Wizard.Flags.DatosOK {
		t.Error("datos flag not set after a saved draft")
	}
}

func TestSaveDraftPassportNotice(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)

	req := validDraft("u1")
	req.DocumentType = domain.IdentityDocPassport
	req.DocumentNumber = "E1234567"

	res, err := svc.SaveDraft(context.Background(), req)
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if !res.RequiresPassportNotice {
		t.Error("passport draft did not raise the notice")
	}
}

func TestSaveDraftRejectsInvalidFields(t *testing.T) {
	svc := newKYCService(t, newFakeKYCRepo())
	ctx := context.Background()

	underage := validDraft("u1")
	underage.BirthDate = time.Now().AddDate(-17, 0, 0)
	if _, err := svc.SaveDraft(ctx, underage); err == nil {
		t.Error("underage draft accepted")
	}

	badDNI := validDraft("u1")
	badDNI.DocumentNumber = "12345"
	if _, err := svc.SaveDraft(ctx, badDNI); err == nil {
		t.Error("short DNI accepted")
	}
}

func TestSaveDraftRefusedAfterSubmission(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)
	ctx := context.Background()

	if _, err := svc.SaveDraft(ctx, validDraft("u1")); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	repo.byUser["u1"].Status = domain.KYCStatusReview

	if _, err := svc.SaveDraft(ctx, validDraft("u1")); !errors.Is(err, xerrors.ErrKYCAlreadyFinal) {
		t.Errorf("draft under review = %v, want ErrKYCAlreadyFinal", err)
	}
}

func TestSubmitRequiresEverything(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)
	ctx := context.Background()

	if err := svc.Submit(ctx, "ghost"); !errors.Is(err, xerrors.ErrNoKYCSubmission) {
		t.Errorf("submit without record = %v, want ErrNoKYCSubmission", err)
	}

	if _, err := svc.SaveDraft(ctx, validDraft("u1")); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	// Draft only, no documents, no declaration.
	if err := svc.Submit(ctx, "u1"); !errors.Is(err, xerrors.ErrKYCIncomplete) {
		t.Errorf("submit incomplete = %v, want ErrKYCIncomplete", err)
	}

	fillDocuments(repo, "u1")
	// Documents in, declaration still missing.
	if err := svc.Submit(ctx, "u1"); !errors.Is(err, xerrors.ErrKYCIncomplete) {
		t.Errorf("submit without declaration = %v, want ErrKYCIncomplete", err)
	}

	if _, err := svc.AcceptDeclaration(ctx, "u1", true); err != nil {
		t.Fatalf("accept declaration: %v", err)
	}
	if err := svc.Submit(ctx, "u1"); err != nil {
		t.Fatalf("complete submit: %v", err)
	}

	sub, _ := repo.GetByUserID(ctx, "u1")
	if sub.Status != domain.KYCStatusReview {
		t.Errorf("status = %s, want review", sub.Status)
	}

	// Second submit: already in review.
	if err := svc.Submit(ctx, "u1"); !errors.Is(err, xerrors.ErrKYCNotSubmittable) {
		t.Errorf("double submit = %v, want ErrKYCNotSubmittable", err)
	}
}

func submitted(t *testing.T, svc *service.KYCService, repo *fakeKYCRepo, userID string) *domain.KYCSubmission {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.SaveDraft(ctx, validDraft(userID)); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	fillDocuments(repo, userID)
	if _, err := svc.AcceptDeclaration(ctx, userID, true); err != nil {
		t.Fatalf("accept declaration: %v", err)
	}
	if err := svc.Submit(ctx, userID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sub, _ := repo.GetByUserID(ctx, userID)
	return sub
}

func TestReviewDecisions(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)
	ctx := context.Background()
	sub := submitted(t, svc, repo, "u1")

	if err := svc.Review(ctx, &service.ReviewRequest{
		KYCID: sub.ID, ReviewerID: "admin", Decision: domain.KYCStatusDraft,
	}); !errors.Is(err, xerrors.ErrInvalidKYCDecision) {
		t.Errorf("bogus decision = %v, want ErrInvalidKYCDecision", err)
	}

	if err := svc.Review(ctx, &service.ReviewRequest{
		KYCID: sub.ID, ReviewerID: "admin", Decision: domain.KYCStatusRejected,
	}); !errors.Is(err, xerrors.ErrKYCRejectionNote) {
		t.Errorf("rejection without note = %v, want ErrKYCRejectionNote", err)
	}

	if err := svc.Review(ctx, &service.ReviewRequest{
		KYCID: sub.ID, ReviewerID: "admin", Decision: domain.KYCStatusApproved,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if sub.Status != domain.KYCStatusApproved {
		t.Errorf("status = %s, want approved", sub.Status)
	}

	// Already decided: no second review.
	if err := svc.Review(ctx, &service.ReviewRequest{
		KYCID: sub.ID, ReviewerID: "admin", Decision: domain.KYCStatusApproved,
	}); !errors.Is(err, xerrors.ErrKYCNotSubmittable) {
		t.Errorf("second review = %v, want ErrKYCNotSubmittable", err)
	}
}

func TestRevertReopensSubmission(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)
	ctx := context.Background()
	sub := submitted(t, svc, repo, "u1")

	note := "documents unreadable"
	if err := svc.Review(ctx, &service.ReviewRequest{
		KYCID: sub.ID, ReviewerID: "admin", Decision: domain.KYCStatusRejected, Notes: note,
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if err := svc.Revert(ctx, sub.ID, "admin", "user appeal accepted"); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if sub.Status != domain.KYCStatusDraft {
		t.Errorf("status = %s, want draft after revert", sub.Status)
	}
}

func TestOverviewReconcilesWizard(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)
	ctx := context.Background()

	if _, err := svc.SaveDraft(ctx, validDraft("u1")); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	repo.RegisterDocument(ctx, "u1", domain.DocFront, "u1/front/front.jpg")
	repo.RegisterDocument(ctx, "u1", domain.DocBack, "u1/back/back.jpg")

	ov, err := svc.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Wizard.Current != wizard.StepSelfie {
		t.Errorf("current = %s, want selfie after remote docs landed", ov.Wizard.Current)
	}
	if ov.Superseded {
		t.Error("draft marked superseded")
	}
}

func TestAuditTrailAccumulates(t *testing.T) {
	repo := newFakeKYCRepo()
	svc := newKYCService(t, repo)
	ctx := context.Background()
	sub := submitted(t, svc, repo, "u1")

	logs, err := svc.GetAuditLogs(ctx, sub.ID)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) < 2 {
		t.Errorf("audit log count = %d, want draft_saved and submitted at least", len(logs))
	}
}
