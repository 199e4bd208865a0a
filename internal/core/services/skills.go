package services

import (
	"sort"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
)

const MaxSkillLevel = 10

// CheckRequirements lists every requirement the skills fall short of, in
// skill display order. Unknown skills count as level 0.
func CheckRequirements(skills domain.Skills, reqs map[string]int) error {
	if len(reqs) == 0 {
		return nil
	}
	names := make([]string, 0, len(reqs))
	for name := range reqs {
		names = append(names, name)
	}
	order := make(map[string]int, len(domain.SkillNames))
	for i, n := range domain.SkillNames {
		order[n] = i
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})

	var missing []MissingSkill
	for _, name := range names {
		current, _ := skills.Level(name)
		if required := reqs[name]; current < required {
			missing = append(missing, MissingSkill{Skill: name, Current: current, Required: required})
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &RequirementsError{Missing: missing}
}

// UpgradeSkill spends one skill point on name.
func UpgradeSkill(p domain.Player, name string) (domain.PlayerUpdate, error) {
	level, ok := p.Skills.Level(name)
	if !ok {
		return domain.PlayerUpdate{}, ErrUnknownSkill
	}
	if p.Skills.SkillPoints <= 0 {
		return domain.PlayerUpdate{}, ErrNoSkillPoints
	}
	if level >= MaxSkillLevel {
		return domain.PlayerUpdate{}, ErrSkillMaxed
	}
	skills := p.Skills.With(name, level+1)
	skills.SkillPoints--
	return domain.PlayerUpdate{Skills: &skills}, nil
}
