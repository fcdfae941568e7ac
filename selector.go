package discipline

import (
	"fmt"
	"sort"
	"strings"
)

// SelectActive returns the version governing a stock: the first one flagged
// active, or else the highest version. It returns false for an empty history.
func SelectActive(plans []RulePlan) (RulePlan, bool) {
	if len(plans) == 0 {
		return RulePlan{}, false
	}
	for _, p := range plans {
		if p.IsActive {
			return p, true
		}
	}
	best := plans[0]
	for _, p := range plans[1:] {
		if p.Version > best.Version {
			best = p
		}
	}
	return best, true
}

// NextVersion returns the version number a new save must get.
func NextVersion(plans []RulePlan) int {
	max := 0
	for _, p := range plans {
		if p.Version > max {
			max = p.Version
		}
	}
	return max + 1
}

// VersionDefectError reports a history that breaks the versioning protocol.
type VersionDefectError struct {
	StockID int
	// Active lists the versions flagged active, when there are more than one.
	Active []int
	// Duplicated lists version numbers used more than once.
	Duplicated []int
}

func (e *VersionDefectError) Error() string {
	var parts []string
	if len(e.Active) > 1 {
		parts = append(parts, fmt.Sprintf("%d active versions %v", len(e.Active), e.Active))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated versions %v", e.Duplicated))
	}
	return fmt.Sprintf("stock %d has an inconsistent rule plan history: %s", e.StockID, strings.Join(parts, ", "))
}

// CheckVersions returns a *VersionDefectError if plans has several active
// versions or reuses a version number. It never modifies plans.
func CheckVersions(plans []RulePlan) error {
	var (
		active []int
		dup    []int
		seen   = make(map[int]int)
	)
	stockID := 0
	for _, p := range plans {
		stockID = p.StockID
		if p.IsActive {
			active = append(active, p.Version)
		}
		seen[p.Version]++
		if seen[p.Version] == 2 {
			dup = append(dup, p.Version)
		}
	}
	if len(active) <= 1 && len(dup) == 0 {
		return nil
	}
	sort.Ints(active)
	sort.Ints(dup)
	e := &VersionDefectError{StockID: stockID, Duplicated: dup}
	if len(active) > 1 {
		e.Active = active
	}
	return e
}
