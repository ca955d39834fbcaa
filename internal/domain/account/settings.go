package account

import "slices"

// NewAccountThresholdID is the first account id created after the cataloging
// guard rollout. Accounts from this id onward are always guarded.
const NewAccountThresholdID = 1530

// testFeatureIDs are older accounts opted in to guarded behavior ahead of
// the general rollout.
var testFeatureIDs = []int{1455, 1261}

// Settings carries the per-account decisions the importers consult at run
// start. It is resolved once from configuration and passed by value.
type Settings struct {
	ID                       int
	Features                 []int
	MapsChildProducts        bool
	DownloadInactiveProducts bool
}

// GuardsCataloging reports whether bad-cataloging detection may interrupt
// this account's order runs.
func (s Settings) GuardsCataloging() bool {
	if s.ID >= NewAccountThresholdID {
		return true
	}
	return slices.Contains(testFeatureIDs, s.ID)
}

// HasFeature reports whether an opt-in feature id is enabled for the account.
func (s Settings) HasFeature(id int) bool {
	return slices.Contains(s.Features, id)
}
