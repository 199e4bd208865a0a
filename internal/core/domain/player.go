package domain

import (
	"time"
)

// Skill names.
const (
	SkillHacking      = "hacking"
	SkillStealth      = "stealth"
	SkillCryptography = "cryptography"
	SkillHardware     = "hardware"
)

// SkillNames is the fixed display order of the four skills.
var SkillNames = []string{SkillHacking, SkillStealth, SkillCryptography, SkillHardware}

type Skills struct {
	Hacking      int `json:"hacking"`
	Stealth      int `json:"stealth"`
	Cryptography int `json:"cryptography"`
	Hardware     int `json:"hardware"`
	SkillPoints  int `json:"skill_points"`
}

// Level returns the level of a named skill.
func (s Skills) Level(name string) (int, bool) {
	switch name {
	case SkillHacking:
		return s.Hacking, true
	case SkillStealth:
		return s.Stealth, true
	case SkillCryptography:
		return s.Cryptography, true
	case SkillHardware:
		return s.Hardware, true
	}
	return 0, false
}

// With returns a copy with the named skill set to level.
func (s Skills) With(name string, level int) Skills {
	switch name {
	case SkillHacking:
		s.Hacking = level
	case SkillStealth:
		s.Stealth = level
	case SkillCryptography:
		s.Cryptography = level
	case SkillHardware:
		s.Hardware = level
	}
	return s
}

func NewSkills() Skills {
	return Skills{Hacking: 1, Stealth: 1, Cryptography: 1, Hardware: 1}
}

type Inventory struct {
	Bases        []string `json:"bases"`
	Motherboards []string `json:"motherboards"`
	Components   []string `json:"components"`
}

// Owns reports whether id is present in any category.
func (inv Inventory) Owns(id string) bool {
	return contains(inv.Bases, id) || contains(inv.Motherboards, id) || contains(inv.Components, id)
}

// Clone deep-copies the inventory slices.
func (inv Inventory) Clone() Inventory {
	return Inventory{
		Bases:        append([]string(nil), inv.Bases...),
		Motherboards: append([]string(nil), inv.Motherboards...),
		Components:   append([]string(nil), inv.Components...),
	}
}

type Loadout struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	BaseID        string            `json:"base_id"`
	MotherboardID string            `json:"motherboard_id"`
	Components    map[string]string `json:"components"` // slot -> component id
	Active        bool              `json:"active"`
}

func (l Loadout) Clone() Loadout {
	c := l
	c.Components = make(map[string]string, len(l.Components))
	for k, v := range l.Components {
		c.Components[k] = v
	}
	return c
}

// EquipmentIDs lists base, motherboard and installed components.
func (l Loadout) EquipmentIDs() []string {
	ids := []string{l.BaseID, l.MotherboardID}
	for _, id := range l.Components {
		ids = append(ids, id)
	}
	return ids
}

func CloneLoadouts(in []Loadout) []Loadout {
	if in == nil {
		return nil
	}
	out := make([]Loadout, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	return out
}

// ActiveLoadout returns the active loadout, if any.
func ActiveLoadout(loadouts []Loadout) (Loadout, bool) {
	for _, l := range loadouts {
		if l.Active {
			return l, true
		}
	}
	return Loadout{}, false
}

type Player struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Username    string `json:"username" gorm:"uniqueIndex;not null"`
	Credits     int    `json:"credits" gorm:"default:0"`
	Torcoins    int    `json:"torcoins" gorm:"default:0"`
	Wraithcoins int    `json:"wraithcoins" gorm:"default:0"`
	Level       int    `json:"level" gorm:"default:1"`
	Experience  int    `json:"experience" gorm:"default:0"`

	Skills    Skills    `json:"skills" gorm:"serializer:json;type:text"`
	Inventory Inventory `json:"inventory" gorm:"serializer:json;type:text"`
	Loadouts  []Loadout `json:"loadouts" gorm:"serializer:json;type:text"`

	NextRefresh            *time.Time `json:"next_refresh"`
	NextManualRefresh      *time.Time `json:"next_manual_refresh"`
	ManualRefreshAvailable bool       `json:"manual_refresh_available" gorm:"default:false"`
	LastRefresh            *time.Time `json:"last_refresh"`

	TutorialCompleted bool     `json:"tutorial_completed" gorm:"default:false"`
	TutorialStep      int      `json:"tutorial_step" gorm:"default:0"`
	SeenFeatures      []string `json:"seen_features" gorm:"serializer:json;type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Player) TableName() string {
	return "players"
}

// NewPlayer returns a fresh level-1 player.
func NewPlayer(id, username string) Player {
	return Player{
		ID:         id,
		Username:   username,
		Credits:    500,
		Level:      1,
		Skills:     NewSkills(),
		Inventory:  Inventory{},
		Loadouts:   []Loadout{},
		Experience: 0,
	}
}

// Clone deep-copies the slices and maps so the copy can be replaced wholesale.
func (p Player) Clone() Player {
	c := p
	c.Inventory = p.Inventory.Clone()
	c.Loadouts = CloneLoadouts(p.Loadouts)
	c.SeenFeatures = append([]string(nil), p.SeenFeatures...)
	c.NextRefresh = cloneTime(p.NextRefresh)
	c.NextManualRefresh = cloneTime(p.NextManualRefresh)
	c.LastRefresh = cloneTime(p.LastRefresh)
	return c
}

// Admin is the role table consulted by IsAdmin.
type Admin struct {
	UserID    string    `json:"user_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

func (Admin) TableName() string {
	return "admins"
}

// AuthSession is what the auth collaborator resolves a token to.
type AuthSession struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
