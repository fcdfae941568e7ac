package discipline

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storedV2 = `{"schema_version":"1.3","strategy_type":"position","position_sizing":{"target_pct":0.05,"max_pct":0.2}}`

func TestRulePlanEditor_New(t *testing.T) {
	e := NewRulePlanEditor(newFakePlans())
	s := e.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.Equal(t, FormView, s.View)
	assert.Equal(t, DefaultForm(), s.Form)
	assert.Equal(t, FormatDocument(FormToDocument(DefaultForm())), s.RawText)

	_, err := e.Save(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestRulePlanEditor_LoadSelectsActive(t *testing.T) {
	store := newFakePlans(
		plan(1, 1, false, `{"strategy_type":"swing"}`),
		plan(1, 2, true, storedV2),
		plan(1, 3, false, `{"strategy_type":"value"}`),
	)
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(context.Background(), 1))

	s := e.Snapshot()
	assert.Equal(t, ViewingForm, s.State)
	assert.Equal(t, 2, s.ActiveVersion)
	assert.Len(t, s.Versions, 3)
	assert.Equal(t, "Position", s.Form.StrategyType)
	assert.Equal(t, "5%", s.Form.TargetPct)
	assert.Equal(t, "20%", s.Form.MaxPct)
	assert.Equal(t, DefaultForm().EntryRule, s.Form.EntryRule, "missing fields keep the defaults")
	assert.Equal(t, FormatDocument(json.RawMessage(storedV2)), s.RawText)
	assert.True(t, strings.HasPrefix(s.RawText, "{\n  \"position_sizing\""), "keys are sorted")
}

func TestRulePlanEditor_LoadWithoutPlans(t *testing.T) {
	store := newFakePlans(plan(1, 1, true, storedV2))
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(context.Background(), 1))
	require.NoError(t, e.Load(context.Background(), 2))

	s := e.Snapshot()
	assert.Equal(t, 0, s.ActiveVersion)
	assert.Empty(t, s.Versions)
	assert.Equal(t, DefaultForm(), s.Form)
}

func TestRulePlanEditor_LoadFailure(t *testing.T) {
	store := newFakePlans()
	store.listErr = errBackend
	e := NewRulePlanEditor(store)

	err := e.Load(context.Background(), 1)
	require.Error(t, err)
	s := e.Snapshot()
	assert.Equal(t, Failed, s.State)
	assert.Equal(t, "Failed to load rule plan: boom (500)", s.Message)
}

func TestRulePlanEditor_LoadFailureBlocksSave(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans(plan(1, 1, true, `{"entry_rules":[{"id":"E1","condition_expr":"first stock rule"}]}`))
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(ctx, 1))
	require.Equal(t, "first stock rule", e.Snapshot().Form.EntryRule)

	store.listErr = errBackend
	require.Error(t, e.Load(ctx, 2))
	s := e.Snapshot()
	assert.Equal(t, 2, s.StockID)
	assert.Equal(t, DefaultForm(), s.Form)
	assert.Empty(t, s.Versions)

	_, err := e.Save(ctx, "")
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.Empty(t, store.created, "nothing is sent for stock 2")

	// a successful load of the stock allows saving again.
	store.listErr = nil
	require.NoError(t, e.Load(ctx, 2))
	saved, err := e.Save(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.StockID)
	assert.NotContains(t, string(saved.Rules), "first stock rule")
}

func TestRulePlanEditor_SaveKeepsHistoryIfListFails(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans(plan(1, 1, true, storedV2))
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(ctx, 1))

	lists := &failingLists{fakePlans: store}
	e.store = lists
	saved, err := e.Save(ctx, "")
	require.NoError(t, err)

	s := e.Snapshot()
	assert.Equal(t, Saved, s.State)
	assert.Equal(t, saved.Version, s.ActiveVersion)
	require.Len(t, s.Versions, 1, "the loaded history is kept")
	assert.Equal(t, 1, s.Versions[0].Version)
}

// failingLists is a store whose lists fail.
type failingLists struct{ *fakePlans }

func (f *failingLists) ListRulePlans(ctx context.Context, stockID int) ([]RulePlan, error) {
	return nil, errBackend
}

func TestRulePlanEditor_SwitchView(t *testing.T) {
	e := NewRulePlanEditor(newFakePlans())
	require.NoError(t, e.Load(context.Background(), 1))

	e.UpdateForm(func(f *Form) { f.StopLoss = "5%" })
	e.SwitchView(RawView)
	s := e.Snapshot()
	assert.Equal(t, ViewingRaw, s.State)
	assert.Contains(t, s.RawText, `"value": 0.05`)

	// raw edits reach the form when leaving the raw view.
	obj, err := ParseDocument(s.RawText)
	require.NoError(t, err)
	obj["strategy_type"] = "momentum"
	e.SetRawText(FormatDocument(obj))
	e.SwitchView(FormView)
	s = e.Snapshot()
	assert.Equal(t, ViewingForm, s.State)
	assert.Equal(t, "Momentum", s.Form.StrategyType)
	assert.Equal(t, "5%", s.Form.StopLoss)
}

func TestRulePlanEditor_SwitchViewInvalidRaw(t *testing.T) {
	e := NewRulePlanEditor(newFakePlans())
	require.NoError(t, e.Load(context.Background(), 1))
	e.UpdateForm(func(f *Form) { f.TargetPct = "3%" })
	e.SwitchView(RawView)
	e.SetRawText("{ not json")
	e.SwitchView(FormView)

	s := e.Snapshot()
	assert.Equal(t, ViewingForm, s.State)
	assert.Equal(t, "3%", s.Form.TargetPct, "form is unchanged")
	assert.Contains(t, s.Message, "Invalid rule document")
	assert.Equal(t, "{ not json", s.RawText)
}

func TestRulePlanEditor_SaveAppendsVersion(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans(plan(1, 1, false, `{"strategy_type":"swing"}`), plan(1, 2, true, storedV2))
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(ctx, 1))

	e.UpdateForm(func(f *Form) { f.EntryRule = "RSI(14) < 30" })
	saved, err := e.Save(ctx, "tighter entry")
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Version)
	assert.Equal(t, "tighter entry", saved.Notes)

	s := e.Snapshot()
	assert.Equal(t, Saved, s.State)
	assert.Equal(t, "Saved", s.Message)
	assert.Equal(t, 3, s.ActiveVersion)
	assert.Len(t, s.Versions, 3)
	assert.NoError(t, CheckVersions(s.Versions), "only the saved version is active")
	active, ok := SelectActive(s.Versions)
	require.True(t, ok)
	assert.Equal(t, s.ActiveVersion, active.Version)
	assert.Equal(t, "RSI(14) < 30", s.Form.EntryRule)
	assert.Equal(t, FormatDocument(saved.Rules), s.RawText)

	// prior versions are intact in the store.
	plans, err := store.ListRulePlans(ctx, 1)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.JSONEq(t, `{"strategy_type":"swing"}`, string(plans[0].Rules))
	assert.JSONEq(t, storedV2, string(plans[1].Rules))

	// the saved document is complete.
	var doc RuleDocument
	require.NoError(t, json.Unmarshal(saved.Rules, &doc))
	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
	assert.Equal(t, "RSI(14) < 30", doc.EntryRules[0].ConditionExpr)

	// editing after a save goes back to the viewing state.
	e.UpdateForm(func(f *Form) { f.CooldownDays = "5" })
	s = e.Snapshot()
	assert.Equal(t, ViewingForm, s.State)
	assert.Empty(t, s.Message)
}

func TestRulePlanEditor_SaveRaw(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans()
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(ctx, 1))
	e.SwitchView(RawView)
	e.SetRawText(`{"schema_version":"1.3","custom":{"kept":"verbatim"}}`)

	saved, err := e.Save(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.JSONEq(t, `{"schema_version":"1.3","custom":{"kept":"verbatim"}}`, string(saved.Rules))
	assert.Equal(t, ViewingRaw, e.Snapshot().View)
}

func TestRulePlanEditor_SaveInvalidRaw(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans()
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(ctx, 1))
	e.SwitchView(RawView)
	e.SetRawText(`[1, 2]`)

	_, err := e.Save(ctx, "")
	assert.ErrorIs(t, err, ErrNotAnObject)
	s := e.Snapshot()
	assert.Equal(t, Failed, s.State)
	assert.Equal(t, "[1, 2]", s.RawText)
	assert.Empty(t, store.created, "nothing was sent")
}

func TestRulePlanEditor_SaveFailureKeepsEdits(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans(plan(1, 1, true, storedV2))
	e := NewRulePlanEditor(store)
	require.NoError(t, e.Load(ctx, 1))
	e.UpdateForm(func(f *Form) { f.TakeProfit = "9% / 18%" })
	before := e.Snapshot()

	store.createErr = &HTTPStatusError{Code: 422, Body: `{"detail":{"errors":["exit_rules: bad"]}}`}
	_, err := e.Save(ctx, "")
	require.Error(t, err)

	s := e.Snapshot()
	assert.Equal(t, Failed, s.State)
	assert.Equal(t, "Failed to save rule plan: exit_rules: bad (422)", s.Message)
	assert.Equal(t, before.Form, s.Form)
	assert.Equal(t, before.RawText, s.RawText)
	assert.Equal(t, 1, s.ActiveVersion)
	assert.Len(t, s.Versions, 1)

	// the user can retry as is.
	store.createErr = nil
	saved, err := e.Save(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, "9% / 18%", e.Snapshot().Form.TakeProfit)
}

func TestRulePlanEditor_StaleLoadIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := newFakePlans(
		plan(1, 1, true, `{"strategy_type":"value"}`),
		plan(2, 4, true, `{"strategy_type":"breakout"}`),
	)
	entered, release := store.blockLists(1)
	e := NewRulePlanEditor(store)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, e.Load(ctx, 1))
	}()
	<-entered

	// a newer load completes first.
	require.NoError(t, e.Load(ctx, 2))
	release()
	wg.Wait()

	s := e.Snapshot()
	assert.Equal(t, 2, s.StockID)
	assert.Equal(t, 4, s.ActiveVersion)
	assert.Equal(t, "Breakout", s.Form.StrategyType)
	assert.Equal(t, ViewingForm, s.State)
}

func TestRulePlanEditor_Subscribe(t *testing.T) {
	e := NewRulePlanEditor(newFakePlans())
	var states []EditorState
	cancel := e.Subscribe(func(s EditorSnapshot) { states = append(states, s.State) })
	require.NoError(t, e.Load(context.Background(), 1))
	cancel()
	e.SetRawText("{}")

	assert.Equal(t, []EditorState{Loading, ViewingForm}, states)
}
