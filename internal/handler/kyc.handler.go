package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/auth"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/wizard"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/service"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/response"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

type KYCHandler struct {
	svc    *service.KYCService
	maxMB  int
	logger *zap.Logger
}

func NewKYCHandler(svc *service.KYCService, maxMB int, logger *zap.Logger) *KYCHandler {
	return &KYCHandler{svc: svc, maxMB: maxMB, logger: logger}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrNotFound),
		errors.Is(err, xerrors.ErrNoKYCSubmission):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrForbidden),
		errors.Is(err, xerrors.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidRequest),
		errors.Is(err, xerrors.ErrInvalidKYCDecision),
		errors.Is(err, xerrors.ErrKYCRejectionNote),
		errors.Is(err, xerrors.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrKYCNotSubmittable),
		errors.Is(err, xerrors.ErrKYCAlreadyFinal),
		errors.Is(err, xerrors.ErrKYCIncomplete),
		errors.Is(err, xerrors.ErrThreadNotActive):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrFileTypeNotAllowed),
		errors.Is(err, xerrors.ErrFileTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, xerrors.ErrStorageWrite),
		errors.Is(err, xerrors.ErrAllBucketsFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *KYCHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("kyc handler error", zap.Error(err))
		response.Error(w, status, "internal error")
		return
	}
	response.Error(w, status, err.Error())
}

// Overview returns the submission plus the reconciled wizard state.
func (h *KYCHandler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	ov, err := h.svc.Overview(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, ov)
}

// SaveDraft persists the identity and address fields (step 1).
func (h *KYCHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req service.DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = auth.UserID(r.Context())

	res, err := h.svc.SaveDraft(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// UploadDocument accepts one multipart document upload. The doc_type
// form field selects the slot: front, back, selfie or address.
func (h *KYCHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	// Allow some slack over the configured limit so the soft-warning
	// and hard-reject logic sees the payload instead of a 413.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxMB)*2*1024*1024)
	if err := r.ParseMultipartForm(int64(h.maxMB) * 1024 * 1024); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	dt := domain.DocType(r.FormValue("doc_type"))
	switch dt {
	case domain.DocFront, domain.DocBack, domain.DocSelfie, domain.DocAddressProof:
	default:
		response.Error(w, http.StatusBadRequest, "unknown doc_type")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "unreadable file")
		return
	}

	res, err := h.svc.UploadDocument(r.Context(), userID, dt, header.Filename, data)
	if err != nil {
		h.fail(w, err)
		return
	}
	if len(res.Warnings) > 0 {
		response.JSONWarn(w, http.StatusOK, res, res.Warnings)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// RemoveDocument clears one document slot.
func (h *KYCHandler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	dt := domain.DocType(chi.URLParam(r, "docType"))
	if err := h.svc.RemoveDocument(r.Context(), userID, dt); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"removed": string(dt)})
}

// AcceptDeclaration records the final-step declaration checkbox.
func (h *KYCHandler) AcceptDeclaration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st, err := h.svc.AcceptDeclaration(r.Context(), auth.UserID(r.Context()), req.Accepted)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, st)
}

// Submit moves the submission into review.
func (h *KYCHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Submit(r.Context(), auth.UserID(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": string(domain.KYCStatusReview)})
}

// Status returns just the verification status, the cheap poll target.
func (h *KYCHandler) Status(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetStatus(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":       sub.Status,
		"submitted_at": sub.SubmittedAt,
		"reviewed_at":  sub.ReviewedAt,
	})
}

// Submission returns the full authoritative submission record.
func (h *KYCHandler) Submission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetStatus(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, sub)
}

// WizardState returns the reconciled wizard for a resuming client.
func (h *KYCHandler) WizardState(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"wizard":     ov.Wizard,
		"superseded": ov.Superseded,
	})
}

// navRequest moves the wizard pointer.
type navRequest struct {
	Action string      `json:"action"` // next | prev | goto
	Target wizard.Step `json:"target,omitempty"`
}

// Navigate applies one wizard navigation and returns the refusal
// reason, if any, alongside the resulting state.
func (h *KYCHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wiz, _, err := h.svc.Wizard(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}

	var res wizard.NavResult
	switch req.Action {
	case "next":
		res = wiz.GoNext(r.Context())
	case "prev":
		res = wiz.GoPrev(r.Context())
	case "goto":
		res = wiz.GoTo(r.Context(), req.Target)
	default:
		response.Error(w, http.StatusBadRequest, "unknown navigation action")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"result": res,
		"wizard": wiz.State(),
	})
}

// Review applies an admin decision on a submission.
func (h *KYCHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.KYCID = chi.URLParam(r, "kycID")
	req.ReviewerID = auth.UserID(r.Context())

	if err := h.svc.Review(r.Context(), &req); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"decision": string(req.Decision)})
}

// Revert reopens a decided submission (admin only).
func (h *KYCHandler) Revert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kycID := chi.URLParam(r, "kycID")

	if err := h.svc.Revert(r.Context(), kycID, auth.UserID(r.Context()), req.Reason); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": string(domain.KYCStatusDraft)})
}

// AuditLogs lists the audit trail for a submission (admin only).
func (h *KYCHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.GetAuditLogs(r.Context(), chi.URLParam(r, "kycID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, logs)
}
