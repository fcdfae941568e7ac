package discipline

import (
	"errors"
	"testing"
)

func TestSelectActive(t *testing.T) {
	tests := []struct {
		name   string
		plans  []RulePlan
		want   int
		wantOK bool
	}{
		{
			name:  "empty history",
			plans: nil,
		},
		{
			name:   "active flag wins",
			plans:  []RulePlan{plan(1, 1, false, `{}`), plan(1, 2, true, `{}`), plan(1, 3, false, `{}`)},
			want:   2,
			wantOK: true,
		},
		{
			name:   "highest version when none is active",
			plans:  []RulePlan{plan(1, 1, false, `{}`), plan(1, 3, false, `{}`), plan(1, 2, false, `{}`)},
			want:   3,
			wantOK: true,
		},
		{
			name:   "first active when several are",
			plans:  []RulePlan{plan(1, 4, true, `{}`), plan(1, 5, true, `{}`)},
			want:   4,
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectActive(tt.plans)
			if ok != tt.wantOK {
				t.Fatalf("SelectActive() ok = %v, want %v", ok, tt.wantOK)
			}
			if got.Version != tt.want {
				t.Errorf("SelectActive() = v%d, want v%d", got.Version, tt.want)
			}
		})
	}
}

func TestNextVersion(t *testing.T) {
	if got := NextVersion(nil); got != 1 {
		t.Errorf("NextVersion(nil) = %d, want 1", got)
	}
	plans := []RulePlan{plan(1, 2, false, `{}`), plan(1, 7, true, `{}`), plan(1, 3, false, `{}`)}
	if got := NextVersion(plans); got != 8 {
		t.Errorf("NextVersion() = %d, want 8", got)
	}
}

func TestCheckVersions(t *testing.T) {
	if err := CheckVersions([]RulePlan{plan(1, 1, false, `{}`), plan(1, 2, true, `{}`)}); err != nil {
		t.Errorf("CheckVersions(consistent) = %v, want nil", err)
	}
	if err := CheckVersions(nil); err != nil {
		t.Errorf("CheckVersions(nil) = %v, want nil", err)
	}

	err := CheckVersions([]RulePlan{plan(9, 3, true, `{}`), plan(9, 1, true, `{}`), plan(9, 1, false, `{}`)})
	var defect *VersionDefectError
	if !errors.As(err, &defect) {
		t.Fatalf("CheckVersions() = %v, want a *VersionDefectError", err)
	}
	if defect.StockID != 9 {
		t.Errorf("StockID = %d, want 9", defect.StockID)
	}
	if len(defect.Active) != 2 || defect.Active[0] != 1 || defect.Active[1] != 3 {
		t.Errorf("Active = %v, want [1 3]", defect.Active)
	}
	if len(defect.Duplicated) != 1 || defect.Duplicated[0] != 1 {
		t.Errorf("Duplicated = %v, want [1]", defect.Duplicated)
	}
	if got, want := defect.Error(), "stock 9 has an inconsistent rule plan history: 2 active versions [1 3], duplicated versions [1]"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
