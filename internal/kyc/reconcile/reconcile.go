// Package reconcile recomputes local wizard state from the
// authoritative remote KYC submission. The remote record always wins:
// steps found complete remotely are confirmed locally, stale local
// confirmations with no remote backing are dropped, and the wizard
// lands on the first incomplete step so a resuming user continues
// where they actually left off.
package reconcile

import (
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/wizard"
)

// StepComplete derives completion for one step purely from remote data.
// A nil submission means nothing is complete.
func StepComplete(step wizard.Step, sub *domain.KYCSubmission) bool {
	if sub == nil {
		return false
	}
	switch step {
	case wizard.StepDatos:
		return sub.FullName != "" && !sub.BirthDate.IsZero() &&
			sub.DocumentNumber != "" && sub.Department != "" &&
			sub.Municipality != "" && sub.AddressDesc != ""
	case wizard.StepDoc:
		return sub.HasDocument(domain.DocFront) && sub.HasDocument(domain.DocBack)
	case wizard.StepSelfie:
		return sub.HasDocument(domain.DocSelfie)
	case wizard.StepDomicilio:
		return sub.HasDocument(domain.DocAddressProof)
	case wizard.StepRevision:
		return sub.SubmittedAt != nil
	}
	return false
}

// FirstIncomplete scans steps in order and returns the first one the
// remote record does not back. When everything is complete it returns
// the final step.
func FirstIncomplete(sub *domain.KYCSubmission) wizard.Step {
	for _, step := range wizard.Order {
		if !StepComplete(step, sub) {
			return step
		}
	}
	return wizard.Order[len(wizard.Order)-1]
}

// Rebuild computes a fresh wizard state from the remote submission,
// carrying over only local-until-submit evidence (the declaration
// checkbox) from prev. Running it twice with unchanged remote data
// yields an identical state.
func Rebuild(sub *domain.KYCSubmission, prev wizard.State) wizard.State {
	st := wizard.NewState()

	st.Flags = wizard.Flags{
		DatosOK:      StepComplete(wizard.StepDatos, sub),
		DocFrontalOK: sub != nil && sub.HasDocument(domain.DocFront),
		DocReversoOK: sub != nil && sub.HasDocument(domain.DocBack),
		SelfieOK:     sub != nil && sub.HasDocument(domain.DocSelfie),
		DomicilioOK:  sub != nil && sub.HasDocument(domain.DocAddressProof),
		// The declaration lives client-side until submit; keep the
		// local value unless the remote says submission happened.
		AceptoDeclaracion: prev.Flags.AceptoDeclaracion ||
			(sub != nil && sub.SubmittedAt != nil),
	}

	landed := false
	for _, step := range wizard.Order {
		switch {
		case StepComplete(step, sub):
			st.Status[step] = wizard.StatusDone
		case !landed:
			st.Status[step] = wizard.StatusActive
			st.Current = step
			landed = true
		default:
			st.Status[step] = wizard.StatusLocked
		}
	}
	if !landed {
		// Everything complete: no active step, pointer on the last one.
		st.Current = wizard.Order[len(wizard.Order)-1]
	}
	return st
}

// Superseded reports whether the remote status makes the local wizard
// irrelevant: once under review or decided, the remote record is the
// only state that matters.
func Superseded(sub *domain.KYCSubmission) bool {
	if sub == nil {
		return false
	}
	switch sub.Status {
	case domain.KYCStatusReview, domain.KYCStatusApproved, domain.KYCStatusRejected:
		return true
	}
	return false
}
