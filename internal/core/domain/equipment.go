package domain

type EquipmentCategory string

const (
	CategoryBase        EquipmentCategory = "base"
	CategoryMotherboard EquipmentCategory = "motherboard"
	CategoryComponent   EquipmentCategory = "component"
)

type Currency string

const (
	CurrencyCredits     Currency = "credits"
	CurrencyTorcoins    Currency = "torcoins"
	CurrencyWraithcoins Currency = "wraithcoins"
)

// EquipmentTemplate is a catalog item sold in the shop.
type EquipmentTemplate struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Category    EquipmentCategory `json:"category" yaml:"category"`
	Price       int               `json:"price" yaml:"price"`
	Currency    Currency          `json:"currency" yaml:"currency"`
	// Slots is only set on motherboards; each entry is a slot name.
	Slots []string `json:"slots,omitempty" yaml:"slots"`
	// SlotType is only set on components; it must match the slot it goes in.
	SlotType string `json:"slot_type,omitempty" yaml:"slot_type"`
}

// EventTemplate describes a puzzle event whose completion pays torcoins.
type EventTemplate struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Reward      int    `json:"reward_torcoins" yaml:"reward_torcoins"`
}
