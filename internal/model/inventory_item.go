package model

// InventoryItem is a per-user counter of one item kind (e.g. "copper_ore").
// Quantity never goes below zero.
type InventoryItem struct {
	UserID   int64
	ItemType string
	Quantity int64
}
