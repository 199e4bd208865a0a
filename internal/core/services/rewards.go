package services

import (
	"strings"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

// Multipliers in basis points so payouts floor exactly.
const (
	creditMultiplierBP = 11500
	xpMultiplierBP     = 4000
	forcedMultiplierBP = 5000
	basisPoints        = 10000

	torcoinChancePct    = 5
	wraithcoinChancePct = 1

	specialEquipmentTag = "wraith"
)

var baseExperience = map[domain.Difficulty]int{
	domain.DifficultyEasy:   100,
	domain.DifficultyMedium: 250,
	domain.DifficultyHard:   500,
}

// Reward is the payout of one completed contract.
type Reward struct {
	Credits     int `json:"credits"`
	Experience  int `json:"experience"`
	Torcoins    int `json:"torcoins"`
	Wraithcoins int `json:"wraithcoins"`
}

// BaseExperience is the nominal XP of a difficulty. Unknown difficulties pay as easy.
func BaseExperience(d domain.Difficulty) int {
	if xp, ok := baseExperience[d]; ok {
		return xp
	}
	return baseExperience[domain.DifficultyEasy]
}

// ComputeReward returns the deterministic credit and XP part of a payout.
func ComputeReward(job domain.Job) Reward {
	creditBP := int64(creditMultiplierBP)
	xpBP := int64(xpMultiplierBP)
	if job.ForcedAccept {
		creditBP = creditBP * forcedMultiplierBP / basisPoints
		xpBP = xpBP * forcedMultiplierBP / basisPoints
	}
	return Reward{
		Credits:    int(int64(job.Reward) * creditBP / basisPoints),
		Experience: int(int64(BaseExperience(job.Difficulty)) * xpBP / basisPoints),
	}
}

// RollBonuses draws the torcoin and wraithcoin chances. Both are always
// drawn, in that order; the wraithcoin only pays with special equipment.
func RollBonuses(rng Random, loadouts []domain.Loadout) (torcoin, wraithcoin bool) {
	torcoin = rollPercent(rng) < torcoinChancePct
	wraithRoll := rollPercent(rng) < wraithcoinChancePct
	wraithcoin = wraithRoll && hasSpecialEquipmentTag(loadouts)
	return torcoin, wraithcoin
}

func rollPercent(rng Random) int {
	return rng.Intn(100)
}

// hasSpecialEquipmentTag reports whether the active loadout carries any
// equipment whose id is marked as wraith gear.
func hasSpecialEquipmentTag(loadouts []domain.Loadout) bool {
	active, ok := domain.ActiveLoadout(loadouts)
	if !ok {
		return false
	}
	for _, id := range active.EquipmentIDs() {
		if strings.Contains(strings.ToLower(id), specialEquipmentTag) {
			return true
		}
	}
	return false
}

// RewardUpdate adds r to the player's balances.
func RewardUpdate(p domain.Player, r Reward) domain.PlayerUpdate {
	upd := domain.PlayerUpdate{
		Credits:    domain.Ptr(p.Credits + r.Credits),
		Experience: domain.Ptr(p.Experience + r.Experience),
	}
	if r.Torcoins > 0 {
		upd.Torcoins = domain.Ptr(p.Torcoins + r.Torcoins)
	}
	if r.Wraithcoins > 0 {
		upd.Wraithcoins = domain.Ptr(p.Wraithcoins + r.Wraithcoins)
	}
	return upd
}
