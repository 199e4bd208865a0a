package services

import (
	"errors"
	"fmt"
	"strings"
)

// Rejections: the request was refused and nothing was mutated.
var (
	ErrJobNotFound              = errors.New("contract not found on the board")
	ErrManualRefreshUnavailable = errors.New("manual refresh is not available yet")
	ErrUnknownEquipment         = errors.New("unknown equipment")
	ErrAlreadyOwned             = errors.New("equipment already owned")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrNotOwned                 = errors.New("equipment not owned")
	ErrWrongCategory            = errors.New("equipment is the wrong category")
	ErrMaxLoadouts              = errors.New("maximum number of loadouts reached")
	ErrEquipmentInUse           = errors.New("equipment is already used by a loadout")
	ErrLoadoutNotFound          = errors.New("loadout not found")
	ErrSlotNotFound             = errors.New("slot does not exist on this motherboard")
	ErrSlotTypeMismatch         = errors.New("component does not fit this slot")
	ErrSlotEmpty                = errors.New("slot is empty")
	ErrUnknownSkill             = errors.New("unknown skill")
	ErrNoSkillPoints            = errors.New("no skill points available")
	ErrSkillMaxed               = errors.New("skill is already at max level")
	ErrInvalidReward            = errors.New("reward must be a positive amount")
	ErrUnknownEvent             = errors.New("unknown event")
	ErrInvalidChat              = errors.New("chat message must be between 1 and 500 characters")
	ErrInvalidTutorialStep      = errors.New("tutorial step must not be negative")
	ErrInvalidFeature           = errors.New("feature key must not be empty")
	ErrInvalidMultiplier        = errors.New("time multiplier must be between 1 and 100")
	ErrNotAdmin                 = errors.New("admin privileges required")
)

// Duplicates: the request repeats something already in effect.
var (
	ErrJobInProgress = errors.New("contract already in progress")
)

// Session lifecycle.
var (
	ErrSessionClosed = errors.New("session closed")
	ErrUnauthorized  = errors.New("invalid or expired session token")
	ErrChatDisabled  = errors.New("chat is not configured")
)

// MissingSkill is one unmet skill requirement.
type MissingSkill struct {
	Skill    string `json:"skill"`
	Current  int    `json:"current"`
	Required int    `json:"required"`
}

// RequirementsError lists every skill below a contract's requirement.
type RequirementsError struct {
	Missing []MissingSkill
}

func (e *RequirementsError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s %d/%d", m.Skill, m.Current, m.Required))
	}
	return "insufficient skills: " + strings.Join(parts, ", ")
}

var rejections = []error{
	ErrJobNotFound, ErrManualRefreshUnavailable, ErrUnknownEquipment, ErrAlreadyOwned,
	ErrInsufficientFunds, ErrNotOwned, ErrWrongCategory, ErrMaxLoadouts, ErrEquipmentInUse,
	ErrLoadoutNotFound, ErrSlotNotFound, ErrSlotTypeMismatch, ErrSlotEmpty, ErrUnknownSkill,
	ErrNoSkillPoints, ErrSkillMaxed, ErrInvalidReward, ErrUnknownEvent, ErrInvalidChat,
	ErrInvalidTutorialStep, ErrInvalidFeature, ErrInvalidMultiplier,
}

// IsRejection reports whether err refused user input without side effects.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *RequirementsError
	if errors.As(err, &reqErr) {
		return true
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// IsDuplicate reports whether err is an idempotent repeat of a running action.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrJobInProgress)
}
