package model

// ItemStack is a quantity of one item type, as produced by a loot roll
// or delivered to an inventory collaborator.
type ItemStack struct {
	ItemID int32
	Count  int32
}
