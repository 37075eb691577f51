package wizard

import (
	"context"

	"go.uber.org/zap"
)

// Step is one of the five fixed verification steps, in order.
type Step string

const (
	StepDatos     Step = "datos"
	StepDoc       Step = "doc"
	StepSelfie    Step = "selfie"
	StepDomicilio Step = "domicilio"
	StepRevision  Step = "revision"
)

// Order is the fixed step sequence; navigation never leaves it.
var Order = []Step{StepDatos, StepDoc, StepSelfie, StepDomicilio, StepRevision}

func indexOf(s Step) int {
	for i, step := range Order {
		if step == s {
			return i
		}
	}
	return -1
}

// StepStatus moves locked -> active -> done, never backward.
type StepStatus string

const (
	StatusLocked StepStatus = "locked"
	StatusActive StepStatus = "active"
	StatusDone   StepStatus = "done"
)

// Flags gate forward transitions. They are evidence markers set by the
// orchestrator once an upload or save is confirmed against the remote
// record; the wizard itself never validates why a flag became true.
type Flags struct {
	DatosOK           bool `json:"datos_ok"`
	DocFrontalOK      bool `json:"doc_frontal_ok"`
	DocReversoOK      bool `json:"doc_reverso_ok"`
	SelfieOK          bool `json:"selfie_ok"`
	DomicilioOK       bool `json:"domicilio_ok"`
	AceptoDeclaracion bool `json:"acepto_declaracion"`
}

// Flag names one boolean in Flags.
type Flag string

const (
	FlagDatosOK           Flag = "datos_ok"
	FlagDocFrontalOK      Flag = "doc_frontal_ok"
	FlagDocReversoOK      Flag = "doc_reverso_ok"
	FlagSelfieOK          Flag = "selfie_ok"
	FlagDomicilioOK       Flag = "domicilio_ok"
	FlagAceptoDeclaracion Flag = "acepto_declaracion"
)

// State is the whole persisted wizard state. It is the sole local
// source of truth: continue-button conditions and step gating derive
// from it plus the authoritative remote submission, nothing else.
type State struct {
	Current Step                `json:"current"`
	Status  map[Step]StepStatus `json:"status"`
	Flags   Flags               `json:"flags"`
}

// NewState returns the initial state: datos active, the rest locked.
func NewState() State {
	st := State{
		Current: StepDatos,
		Status:  make(map[Step]StepStatus, len(Order)),
	}
	for _, s := range Order {
		st.Status[s] = StatusLocked
	}
	st.Status[StepDatos] = StatusActive
	return st
}

func (s State) clone() State {
	out := s
	out.Status = make(map[Step]StepStatus, len(s.Status))
	for k, v := range s.Status {
		out.Status[k] = v
	}
	return out
}

// stepReady reports whether the required flag(s) for a step are set.
func (s State) stepReady(step Step) bool {
	switch step {
	case StepDatos:
		return s.Flags.DatosOK
	case StepDoc:
		return s.Flags.DocFrontalOK && s.Flags.DocReversoOK
	case StepSelfie:
		return s.Flags.SelfieOK
	case StepDomicilio:
		return s.Flags.DomicilioOK
	case StepRevision:
		return s.Flags.AceptoDeclaracion
	}
	return false
}

// NavReason explains a refused navigation.
type NavReason string

const (
	ReasonNone           NavReason = ""
	ReasonIncomplete     NavReason = "current step requirements not met"
	ReasonAtLastStep     NavReason = "already at the last step"
	ReasonAtFirstStep    NavReason = "already at the first step"
	ReasonStepLocked     NavReason = "target step is locked"
	ReasonStepNotReached NavReason = "target step has not been reached yet"
	ReasonUnknownStep    NavReason = "unknown step"
)

// NavResult is returned instead of a silent no-op so callers can decide
// whether to surface feedback.
type NavResult struct {
	OK     bool      `json:"ok"`
	Reason NavReason `json:"reason,omitempty"`
}

func refused(r NavReason) NavResult { return NavResult{OK: false, Reason: r} }

// Store persists wizard state per user. Load returns found=false when
// no state exists; corrupt payloads are treated the same way by the
// Wizard (logged, not fatal).
type Store interface {
	Save(ctx context.Context, userID string, st State) error
	Load(ctx context.Context, userID string) (State, bool, error)
	Delete(ctx context.Context, userID string) error
}

// Wizard owns one user's State and enforces the step-ordering
// invariants. It is not safe for concurrent use; there is exactly one
// interaction path per user at a time.
type Wizard struct {
	userID string
	state  State
	store  Store
	logger *zap.Logger
}

// New loads the persisted state for userID, falling back to the initial
// state when nothing is stored or the payload cannot be read.
func New(ctx context.Context, userID string, store Store, logger *zap.Logger) *Wizard {
	w := &Wizard{userID: userID, store: store, logger: logger}

	st, found, err := store.Load(ctx, userID)
	if err != nil || !found {
		if err != nil {
			logger.Warn("wizard state unreadable, starting fresh",
				zap.String("user_id", userID), zap.Error(err))
		}
		w.state = NewState()
		return w
	}
	if !st.valid() {
		logger.Warn("wizard state invalid, starting fresh", zap.String("user_id", userID))
		w.state = NewState()
		return w
	}
	w.state = st
	return w
}

// valid rejects payloads that would break the single-active invariant.
func (s State) valid() bool {
	if indexOf(s.Current) < 0 || len(s.Status) != len(Order) {
		return false
	}
	active := 0
	done := 0
	for _, step := range Order {
		switch s.Status[step] {
		case StatusActive:
			active++
		case StatusDone:
			done++
		case StatusLocked:
		default:
			return false
		}
	}
	if done == len(Order) {
		return active == 0
	}
	return active == 1
}

// State returns a copy; mutations go through the wizard's operations.
func (w *Wizard) State() State { return w.state.clone() }

// Current returns the step currently presented.
func (w *Wizard) Current() Step { return w.state.Current }

// SetFlag sets one gating boolean and persists. It performs no legality
// check: the orchestrator only sets true when remote evidence exists.
func (w *Wizard) SetFlag(ctx context.Context, f Flag, v bool) {
	switch f {
	case FlagDatosOK:
		w.state.Flags.DatosOK = v
	case FlagDocFrontalOK:
		w.state.Flags.DocFrontalOK = v
	case FlagDocReversoOK:
		w.state.Flags.DocReversoOK = v
	case FlagSelfieOK:
		w.state.Flags.SelfieOK = v
	case FlagDomicilioOK:
		w.state.Flags.DomicilioOK = v
	case FlagAceptoDeclaracion:
		w.state.Flags.AceptoDeclaracion = v
	default:
		w.logger.Warn("unknown wizard flag", zap.String("flag", string(f)))
		return
	}
	w.persist(ctx)
}

// CanContinue reports whether the current step's required flags are set.
func (w *Wizard) CanContinue() bool {
	return w.state.stepReady(w.state.Current)
}

// GoNext marks the current step done and activates the next one.
func (w *Wizard) GoNext(ctx context.Context) NavResult {
	if !w.CanContinue() {
		return refused(ReasonIncomplete)
	}
	i := indexOf(w.state.Current)
	if i == len(Order)-1 {
		return refused(ReasonAtLastStep)
	}
	w.state.Status[w.state.Current] = StatusDone
	next := Order[i+1]
	// A done step stays done; re-walking forward must not demote it.
	if w.state.Status[next] != StatusDone {
		w.state.Status[next] = StatusActive
	}
	w.state.Current = next
	w.persist(ctx)
	return NavResult{OK: true}
}

// GoPrev moves the pointer back one step without altering any status;
// revisiting never un-completes a done step.
func (w *Wizard) GoPrev(ctx context.Context) NavResult {
	i := indexOf(w.state.Current)
	if i == 0 {
		return refused(ReasonAtFirstStep)
	}
	w.state.Current = Order[i-1]
	w.persist(ctx)
	return NavResult{OK: true}
}

// GoTo jumps to an already-reached step. Locked steps and the active
// step of a different position than the pointer's reach are refused.
func (w *Wizard) GoTo(ctx context.Context, target Step) NavResult {
	if indexOf(target) < 0 {
		return refused(ReasonUnknownStep)
	}
	switch w.state.Status[target] {
	case StatusLocked:
		return refused(ReasonStepLocked)
	case StatusActive:
		// The active step is entered via GoNext; jumping into it from a
		// done step the pointer wandered back to would skip the gate.
		if target != w.state.Current {
			return refused(ReasonStepNotReached)
		}
	}
	w.state.Current = target
	w.persist(ctx)
	return NavResult{OK: true}
}

// Restore replaces the whole state, e.g. after a reconciliation pass
// against the remote submission. Invalid states are rejected silently
// in favor of the current one.
func (w *Wizard) Restore(ctx context.Context, st State) {
	if !st.valid() {
		w.logger.Warn("refusing to restore invalid wizard state",
			zap.String("user_id", w.userID))
		return
	}
	w.state = st.clone()
	w.persist(ctx)
}

// Reset restores the initial state and clears persisted storage.
func (w *Wizard) Reset(ctx context.Context) {
	w.state = NewState()
	if err := w.store.Delete(ctx, w.userID); err != nil {
		w.logger.Warn("wizard state delete failed",
			zap.String("user_id", w.userID), zap.Error(err))
	}
}

// persist writes the full state; persistence is best effort and a
// failed write never blocks the in-memory transition.
func (w *Wizard) persist(ctx context.Context) {
	if err := w.store.Save(ctx, w.userID, w.state); err != nil {
		w.logger.Warn("wizard state save failed",
			zap.String("user_id", w.userID), zap.Error(err))
	}
}
