package discipline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// EditorState is the lifecycle state of a RulePlanEditor.
type EditorState int

const (
	Idle EditorState = iota
	Loading
	ViewingForm
	ViewingRaw
	Saving
	Saved
	Failed
)

func (s EditorState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case ViewingForm:
		return "viewing form"
	case ViewingRaw:
		return "viewing raw document"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("EditorState(%d)", int(s))
}

// View is one of the two editable representations of a rule plan.
type View int

const (
	FormView View = iota
	RawView
)

func (v View) String() string {
	if v == RawView {
		return "raw"
	}
	return "form"
}

// Editor errors.
var (
	ErrBusy      = errors.New("a load or a save is already in progress")
	ErrNotLoaded = errors.New("no stock loaded")
)

// Editor messages.
const (
	msgSaved           = "Saved"
	msgLoadFailed      = "Failed to load rule plan"
	msgSaveFailed      = "Failed to save rule plan"
	msgInvalidDocument = "Invalid rule document"
)

// EditorSnapshot is a consistent copy of an editor's state.
type EditorSnapshot struct {
	StockID int
	State   EditorState
	View    View
	Form    Form
	RawText string
	// Versions is the known history, in store order.
	Versions []RulePlan
	// ActiveVersion is the version the editor was seeded from, 0 if none.
	ActiveVersion int
	// Message is the last user facing message, "" if none.
	Message string
}

// Busy reports whether a load or a save is in progress.
func (s EditorSnapshot) Busy() bool { return s.State == Loading || s.State == Saving }

// RulePlanEditor loads, edits and saves the rule plan of one stock at a time.
//
// The plan is editable either as a Form or as raw JSON text. Conversions
// happen only when switching view. Saves always append a new version and
// never lose the user's edits on failure.
//
// All methods are safe for concurrent use. Store calls are made without the
// lock held and their results are discarded if a newer load started meanwhile.
type RulePlanEditor struct {
	store RulePlanStore

	mu            sync.Mutex
	generation    uint64
	stockID       int
	loaded        bool
	state         EditorState
	view          View
	form          Form
	raw           string
	versions      []RulePlan
	activeVersion int
	message       string

	obs observers[EditorSnapshot]
}

// NewRulePlanEditor returns an Idle editor seeded with the default form.
func NewRulePlanEditor(store RulePlanStore) *RulePlanEditor {
	e := &RulePlanEditor{store: store}
	e.resetLocked()
	return e
}

// Subscribe registers fn to be called after every change.
func (e *RulePlanEditor) Subscribe(fn func(EditorSnapshot)) (cancel func()) {
	return e.obs.subscribe(fn)
}

// Snapshot returns the current state.
func (e *RulePlanEditor) Snapshot() EditorSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *RulePlanEditor) snapshotLocked() EditorSnapshot {
	return EditorSnapshot{
		StockID:       e.stockID,
		State:         e.state,
		View:          e.view,
		Form:          e.form,
		RawText:       e.raw,
		Versions:      append([]RulePlan(nil), e.versions...),
		ActiveVersion: e.activeVersion,
		Message:       e.message,
	}
}

// unlock releases the lock and notifies observers with the state it guarded.
func (e *RulePlanEditor) unlock() {
	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.obs.notify(snap)
}

// viewingState is the resting state of the current view.
func (e *RulePlanEditor) viewingState() EditorState {
	if e.view == RawView {
		return ViewingRaw
	}
	return ViewingForm
}

// resetLocked puts both representations back to the defaults.
func (e *RulePlanEditor) resetLocked() {
	e.form = DefaultForm()
	e.raw = FormatDocument(FormToDocument(e.form))
	e.activeVersion = 0
}

// seedLocked sets both representations from a stored document.
func (e *RulePlanEditor) seedLocked(plan RulePlan) {
	e.activeVersion = plan.Version
	obj, err := DocumentObject(plan.Rules)
	if err != nil {
		// keep the text as stored, so that the user can fix it.
		log.Warn().Err(err).Int("stock", plan.StockID).Int("version", plan.Version).Msg("stored rule document is not a JSON object")
		e.form = DefaultForm()
		e.raw = string(plan.Rules)
		return
	}
	e.raw = FormatDocument(obj)
	e.form = DocumentToForm(obj).Apply(DefaultForm())
}

// Load fetches the history of stockID and seeds the editor from its active
// version, or from the defaults if there is none.
//
// A Load supersedes any Load or Save in progress.
func (e *RulePlanEditor) Load(ctx context.Context, stockID int) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.stockID = stockID
	e.loaded = false
	e.state = Loading
	e.message = ""
	e.unlock()

	plans, err := e.store.ListRulePlans(ctx, stockID)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		log.Debug().Int("stock", stockID).Msg("discarding superseded rule plan load")
		return nil
	}
	defer e.unlock()
	if err != nil {
		// the previous stock's plan must not be saved under stockID.
		e.versions = nil
		e.resetLocked()
		e.state = Failed
		e.message = UserMessage(msgLoadFailed, err)
		return fmt.Errorf("cannot load rule plans of stock %d: %w", stockID, err)
	}
	if err := CheckVersions(plans); err != nil {
		log.Warn().Err(err).Int("stock", stockID).Msg("rule plan history")
	}
	e.versions = plans
	if active, ok := SelectActive(plans); ok {
		e.seedLocked(active)
	} else {
		e.resetLocked()
	}
	e.loaded = true
	e.state = e.viewingState()
	return nil
}

// editedLocked brings back a Saved or Failed editor to its viewing state.
func (e *RulePlanEditor) editedLocked() {
	if e.state == Saved || e.state == Failed {
		e.state = e.viewingState()
		e.message = ""
	}
}

// SetForm replaces the form.
func (e *RulePlanEditor) SetForm(f Form) {
	e.mu.Lock()
	defer e.unlock()
	e.form = f
	e.editedLocked()
}

// UpdateForm edits the form in place.
func (e *RulePlanEditor) UpdateForm(edit func(*Form)) {
	e.mu.Lock()
	defer e.unlock()
	edit(&e.form)
	e.editedLocked()
}

// SetRawText replaces the raw document text.
func (e *RulePlanEditor) SetRawText(text string) {
	e.mu.Lock()
	defer e.unlock()
	e.raw = text
	e.editedLocked()
}

// SwitchView converts the representation being left into the other one.
//
// Leaving the form always succeeds. Leaving a raw text that cannot be parsed
// keeps the form as it was and reports the problem in the message.
func (e *RulePlanEditor) SwitchView(v View) {
	e.mu.Lock()
	defer e.unlock()
	if v == e.view {
		return
	}
	switch e.view {
	case FormView:
		e.raw = FormatDocument(FormToDocument(e.form))
		e.message = ""
	case RawView:
		obj, err := ParseDocument(e.raw)
		if err != nil {
			e.message = UserMessage(msgInvalidDocument, err)
		} else {
			e.form = DocumentToForm(obj).Apply(e.form)
			e.message = ""
		}
	}
	e.view = v
	if e.state != Loading && e.state != Saving {
		e.state = e.viewingState()
	}
}

// Save creates a new version out of the current view, with optional notes.
//
// On success both representations are seeded from the saved document and the
// history is listed again, the store being the only one to flip the active
// flags. On failure they are left untouched so that the user can retry.
//
// Save refuses to run until a Load of the current stock has succeeded.
func (e *RulePlanEditor) Save(ctx context.Context, notes string) (RulePlan, error) {
	e.mu.Lock()
	if e.state == Loading || e.state == Saving {
		e.mu.Unlock()
		return RulePlan{}, ErrBusy
	}
	if !e.loaded {
		e.mu.Unlock()
		return RulePlan{}, ErrNotLoaded
	}
	var doc any
	if e.view == FormView {
		doc = FormToDocument(e.form)
	} else {
		obj, err := ParseDocument(e.raw)
		if err != nil {
			e.state = Failed
			e.message = UserMessage(msgInvalidDocument, err)
			e.unlock()
			return RulePlan{}, err
		}
		doc = obj
	}
	raw, err := EncodeDocument(doc)
	if err != nil {
		e.state = Failed
		e.message = UserMessage(msgInvalidDocument, err)
		e.unlock()
		return RulePlan{}, err
	}
	gen, stockID := e.generation, e.stockID
	e.state = Saving
	e.message = ""
	e.unlock()

	plan, err := e.store.CreateRulePlanVersion(ctx, stockID, raw, notes)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		log.Debug().Int("stock", stockID).Msg("rule plan saved while another stock was loaded")
		return plan, err
	}
	if err != nil {
		e.state = Failed
		e.message = UserMessage(msgSaveFailed, err)
		e.unlock()
		return RulePlan{}, fmt.Errorf("cannot save rule plan of stock %d: %w", stockID, err)
	}
	e.mu.Unlock()
	log.Info().Int("stock", stockID).Int("version", plan.Version).Msg("rule plan saved")

	plans, listErr := e.store.ListRulePlans(ctx, stockID)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		log.Debug().Int("stock", stockID).Msg("discarding superseded rule plan history")
		return plan, nil
	}
	defer e.unlock()
	if listErr != nil {
		// the version is saved, the history shown is the one loaded before.
		log.Warn().Err(listErr).Int("stock", stockID).Msg("cannot list rule plans after save")
	} else {
		if err := CheckVersions(plans); err != nil {
			log.Warn().Err(err).Int("stock", stockID).Msg("rule plan history")
		}
		e.versions = plans
	}
	e.seedLocked(plan)
	e.state = Saved
	e.message = msgSaved
	return plan, nil
}
