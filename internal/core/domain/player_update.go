package domain

import (
	"encoding/json"
	"time"
)

// PlayerUpdate is a partial set of player field changes. Only the fields
// declared here can ever reach the remote store; nil means untouched.
type PlayerUpdate struct {
	Credits                *int
	Torcoins               *int
	Wraithcoins            *int
	Level                  *int
	Experience             *int
	Skills                 *Skills
	Inventory              *Inventory
	Loadouts               *[]Loadout
	NextRefresh            *time.Time
	NextManualRefresh      *time.Time
	ManualRefreshAvailable *bool
	LastRefresh            *time.Time
	TutorialCompleted      *bool
	TutorialStep           *int
	SeenFeatures           *[]string
}

// Empty reports whether no field is set.
func (u PlayerUpdate) Empty() bool {
	return len(u.Columns()) == 0
}

// Columns maps the set fields to their store columns. JSON columns are
// pre-encoded so the map can be handed to any SQL dialect.
func (u PlayerUpdate) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Credits != nil {
		cols["credits"] = *u.Credits
	}
	if u.Torcoins != nil {
		cols["torcoins"] = *u.Torcoins
	}
	if u.Wraithcoins != nil {
		cols["wraithcoins"] = *u.Wraithcoins
	}
	if u.Level != nil {
		cols["level"] = *u.Level
	}
	if u.Experience != nil {
		cols["experience"] = *u.Experience
	}
	if u.Skills != nil {
		cols["skills"] = asJSON(*u.Skills)
	}
	if u.Inventory != nil {
		cols["inventory"] = asJSON(*u.Inventory)
	}
	if u.Loadouts != nil {
		cols["loadouts"] = asJSON(*u.Loadouts)
	}
	if u.NextRefresh != nil {
		cols["next_refresh"] = *u.NextRefresh
	}
	if u.NextManualRefresh != nil {
		cols["next_manual_refresh"] = *u.NextManualRefresh
	}
	if u.ManualRefreshAvailable != nil {
		cols["manual_refresh_available"] = *u.ManualRefreshAvailable
	}
	if u.LastRefresh != nil {
		cols["last_refresh"] = *u.LastRefresh
	}
	if u.TutorialCompleted != nil {
		cols["tutorial_completed"] = *u.TutorialCompleted
	}
	if u.TutorialStep != nil {
		cols["tutorial_step"] = *u.TutorialStep
	}
	if u.SeenFeatures != nil {
		cols["seen_features"] = asJSON(*u.SeenFeatures)
	}
	return cols
}

// ApplyTo returns a copy of p with the update merged in. p is not modified.
func (u PlayerUpdate) ApplyTo(p Player) Player {
	next := p.Clone()
	if u.Credits != nil {
		next.Credits = *u.Credits
	}
	if u.Torcoins != nil {
		next.Torcoins = *u.Torcoins
	}
	if u.Wraithcoins != nil {
		next.Wraithcoins = *u.Wraithcoins
	}
	if u.Level != nil {
		next.Level = *u.Level
	}
	if u.Experience != nil {
		next.Experience = *u.Experience
	}
	if u.Skills != nil {
		next.Skills = *u.Skills
	}
	if u.Inventory != nil {
		next.Inventory = u.Inventory.Clone()
	}
	if u.Loadouts != nil {
		next.Loadouts = CloneLoadouts(*u.Loadouts)
	}
	if u.NextRefresh != nil {
		next.NextRefresh = cloneTime(u.NextRefresh)
	}
	if u.NextManualRefresh != nil {
		next.NextManualRefresh = cloneTime(u.NextManualRefresh)
	}
	if u.ManualRefreshAvailable != nil {
		next.ManualRefreshAvailable = *u.ManualRefreshAvailable
	}
	if u.LastRefresh != nil {
		next.LastRefresh = cloneTime(u.LastRefresh)
	}
	if u.TutorialCompleted != nil {
		next.TutorialCompleted = *u.TutorialCompleted
	}
	if u.TutorialStep != nil {
		next.TutorialStep = *u.TutorialStep
	}
	if u.SeenFeatures != nil {
		next.SeenFeatures = append([]string(nil), (*u.SeenFeatures)...)
	}
	return next
}

// Merge overlays other onto u; fields set in other win.
func (u PlayerUpdate) Merge(other PlayerUpdate) PlayerUpdate {
	if other.Credits != nil {
		u.Credits = other.Credits
	}
	if other.Torcoins != nil {
		u.Torcoins = other.Torcoins
	}
	if other.Wraithcoins != nil {
		u.Wraithcoins = other.Wraithcoins
	}
	if other.Level != nil {
		u.Level = other.Level
	}
	if other.Experience != nil {
		u.Experience = other.Experience
	}
	if other.Skills != nil {
		u.Skills = other.Skills
	}
	if other.Inventory != nil {
		u.Inventory = other.Inventory
	}
	if other.Loadouts != nil {
		u.Loadouts = other.Loadouts
	}
	if other.NextRefresh != nil {
		u.NextRefresh = other.NextRefresh
	}
	if other.NextManualRefresh != nil {
		u.NextManualRefresh = other.NextManualRefresh
	}
	if other.ManualRefreshAvailable != nil {
		u.ManualRefreshAvailable = other.ManualRefreshAvailable
	}
	if other.LastRefresh != nil {
		u.LastRefresh = other.LastRefresh
	}
	if other.TutorialCompleted != nil {
		u.TutorialCompleted = other.TutorialCompleted
	}
	if other.TutorialStep != nil {
		u.TutorialStep = other.TutorialStep
	}
	if other.SeenFeatures != nil {
		u.SeenFeatures = other.SeenFeatures
	}
	return u
}

func asJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
