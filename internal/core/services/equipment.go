package services

import (
	"fmt"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

const MaxLoadouts = 2

// Purchase deducts the item's price in its currency and adds it to the inventory.
func Purchase(p domain.Player, item domain.EquipmentTemplate) (domain.PlayerUpdate, error) {
	if p.Inventory.Owns(item.ID) {
		return domain.PlayerUpdate{}, fmt.Errorf("%s: %w", item.Name, ErrAlreadyOwned)
	}

	upd := domain.PlayerUpdate{}
	switch item.Currency {
	case domain.CurrencyTorcoins:
		if p.Torcoins < item.Price {
			return domain.PlayerUpdate{}, fmt.Errorf("%s costs %d torcoins, you have %d: %w", item.Name, item.Price, p.Torcoins, ErrInsufficientFunds)
		}
		upd.Torcoins = domain.Ptr(p.Torcoins - item.Price)
	case domain.CurrencyWraithcoins:
		if p.Wraithcoins < item.Price {
			return domain.PlayerUpdate{}, fmt.Errorf("%s costs %d wraithcoins, you have %d: %w", item.Name, item.Price, p.Wraithcoins, ErrInsufficientFunds)
		}
		upd.Wraithcoins = domain.Ptr(p.Wraithcoins - item.Price)
	default:
		if p.Credits < item.Price {
			return domain.PlayerUpdate{}, fmt.Errorf("%s costs %d credits, you have %d: %w", item.Name, item.Price, p.Credits, ErrInsufficientFunds)
		}
		upd.Credits = domain.Ptr(p.Credits - item.Price)
	}

	inv := p.Inventory.Clone()
	switch item.Category {
	case domain.CategoryBase:
		inv.Bases = append(inv.Bases, item.ID)
	case domain.CategoryMotherboard:
		inv.Motherboards = append(inv.Motherboards, item.ID)
	case domain.CategoryComponent:
		inv.Components = append(inv.Components, item.ID)
	default:
		return domain.PlayerUpdate{}, fmt.Errorf("%s has category %q: %w", item.ID, item.Category, ErrUnknownEquipment)
	}
	upd.Inventory = &inv
	return upd, nil
}

// inUse reports whether id is part of any loadout other than skipID.
func inUse(loadouts []domain.Loadout, id, skipID string) bool {
	for _, l := range loadouts {
		if l.ID == skipID {
			continue
		}
		for _, eq := range l.EquipmentIDs() {
			if eq == id {
				return true
			}
		}
	}
	return false
}

func findLoadout(loadouts []domain.Loadout, id string) (int, bool) {
	for i, l := range loadouts {
		if l.ID == id {
			return i, true
		}
	}
	return -1, false
}

func ownedOfCategory(catalog ports.Catalog, inv []string, id string, category domain.EquipmentCategory) (domain.EquipmentTemplate, error) {
	item, ok := catalog.FindEquipment(id)
	if !ok {
		return domain.EquipmentTemplate{}, fmt.Errorf("%s: %w", id, ErrUnknownEquipment)
	}
	if item.Category != category {
		return domain.EquipmentTemplate{}, fmt.Errorf("%s is not a %s: %w", item.Name, category, ErrWrongCategory)
	}
	for _, owned := range inv {
		if owned == id {
			return item, nil
		}
	}
	return domain.EquipmentTemplate{}, fmt.Errorf("%s: %w", item.Name, ErrNotOwned)
}

// CreateLoadout assembles a loadout from an owned base and motherboard. The
// first loadout a player builds becomes active.
func CreateLoadout(p domain.Player, catalog ports.Catalog, id, baseID, motherboardID string) (domain.PlayerUpdate, domain.Loadout, error) {
	if len(p.Loadouts) >= MaxLoadouts {
		return domain.PlayerUpdate{}, domain.Loadout{}, ErrMaxLoadouts
	}
	base, err := ownedOfCategory(catalog, p.Inventory.Bases, baseID, domain.CategoryBase)
	if err != nil {
		return domain.PlayerUpdate{}, domain.Loadout{}, err
	}
	mb, err := ownedOfCategory(catalog, p.Inventory.Motherboards, motherboardID, domain.CategoryMotherboard)
	if err != nil {
		return domain.PlayerUpdate{}, domain.Loadout{}, err
	}
	for _, eq := range []domain.EquipmentTemplate{base, mb} {
		if inUse(p.Loadouts, eq.ID, "") {
			return domain.PlayerUpdate{}, domain.Loadout{}, fmt.Errorf("%s: %w", eq.Name, ErrEquipmentInUse)
		}
	}

	lo := domain.Loadout{
		ID:            id,
		Name:          fmt.Sprintf("Rig %d", len(p.Loadouts)+1),
		BaseID:        base.ID,
		MotherboardID: mb.ID,
		Components:    make(map[string]string, len(mb.Slots)),
		Active:        len(p.Loadouts) == 0,
	}
	loadouts := append(domain.CloneLoadouts(p.Loadouts), lo)
	return domain.PlayerUpdate{Loadouts: &loadouts}, lo, nil
}

// EquipLoadout makes id the only active loadout.
func EquipLoadout(p domain.Player, id string) (domain.PlayerUpdate, error) {
	if _, ok := findLoadout(p.Loadouts, id); !ok {
		return domain.PlayerUpdate{}, ErrLoadoutNotFound
	}
	loadouts := domain.CloneLoadouts(p.Loadouts)
	for i := range loadouts {
		loadouts[i].Active = loadouts[i].ID == id
	}
	return domain.PlayerUpdate{Loadouts: &loadouts}, nil
}

// InstallComponent puts an owned component into a motherboard slot,
// replacing whatever was there.
func InstallComponent(p domain.Player, catalog ports.Catalog, loadoutID, slot, componentID string) (domain.PlayerUpdate, error) {
	idx, ok := findLoadout(p.Loadouts, loadoutID)
	if !ok {
		return domain.PlayerUpdate{}, ErrLoadoutNotFound
	}
	lo := p.Loadouts[idx]

	mb, ok := catalog.FindEquipment(lo.MotherboardID)
	if !ok {
		return domain.PlayerUpdate{}, fmt.Errorf("motherboard %s: %w", lo.MotherboardID, ErrUnknownEquipment)
	}
	if !hasSlot(mb.Slots, slot) {
		return domain.PlayerUpdate{}, fmt.Errorf("%s on %s: %w", slot, mb.Name, ErrSlotNotFound)
	}

	comp, err := ownedOfCategory(catalog, p.Inventory.Components, componentID, domain.CategoryComponent)
	if err != nil {
		return domain.PlayerUpdate{}, err
	}
	if comp.SlotType != slot {
		return domain.PlayerUpdate{}, fmt.Errorf("%s needs a %s slot, not %s: %w", comp.Name, comp.SlotType, slot, ErrSlotTypeMismatch)
	}
	if lo.Components[slot] == componentID {
		return domain.PlayerUpdate{}, nil
	}
	if inUse(p.Loadouts, componentID, "") {
		return domain.PlayerUpdate{}, fmt.Errorf("%s: %w", comp.Name, ErrEquipmentInUse)
	}

	loadouts := domain.CloneLoadouts(p.Loadouts)
	if loadouts[idx].Components == nil {
		loadouts[idx].Components = make(map[string]string)
	}
	loadouts[idx].Components[slot] = componentID
	return domain.PlayerUpdate{Loadouts: &loadouts}, nil
}

func UninstallComponent(p domain.Player, loadoutID, slot string) (domain.PlayerUpdate, error) {
	idx, ok := findLoadout(p.Loadouts, loadoutID)
	if !ok {
		return domain.PlayerUpdate{}, ErrLoadoutNotFound
	}
	if _, ok := p.Loadouts[idx].Components[slot]; !ok {
		return domain.PlayerUpdate{}, fmt.Errorf("%s: %w", slot, ErrSlotEmpty)
	}
	loadouts := domain.CloneLoadouts(p.Loadouts)
	delete(loadouts[idx].Components, slot)
	return domain.PlayerUpdate{Loadouts: &loadouts}, nil
}

// DeleteLoadout removes a loadout. Deleting the active one leaves none active.
func DeleteLoadout(p domain.Player, id string) (domain.PlayerUpdate, error) {
	idx, ok := findLoadout(p.Loadouts, id)
	if !ok {
		return domain.PlayerUpdate{}, ErrLoadoutNotFound
	}
	loadouts := make([]domain.Loadout, 0, len(p.Loadouts)-1)
	for i, l := range p.Loadouts {
		if i != idx {
			loadouts = append(loadouts, l.Clone())
		}
	}
	return domain.PlayerUpdate{Loadouts: &loadouts}, nil
}

func hasSlot(slots []string, slot string) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}
