package models

import "time"

const HoldingTable = "keynow_key_holders"

// The fixed key catalog. 両方 is a selector, not a key: it expands to the
// two physical keys and is audited under the composite label.
const (
	KeyOtokura = "音倉"
	KeyOnren   = "音練"

	SelectorBoth   = "両方"
	CompositeLabel = "音倉・音練"
)

// KeyHolding records that a key is currently checked out. A key with no row
// is free; the primary key on KeyName guarantees at most one holder per key.
type KeyHolding struct {
	KeyName    string    `gorm:"primaryKey;size:32" json:"keyName"`
	HolderID   string    `gorm:"size:64;not null;index" json:"holderId"`
	BorrowedAt time.Time `gorm:"not null" json:"borrowedAt"`
}

func (KeyHolding) TableName() string { return HoldingTable }

// ExpandLabel maps a user-supplied key label to the concrete key set.
// Returns false for anything outside the catalog.
func ExpandLabel(label string) ([]string, bool) {
	switch label {
	case KeyOtokura, KeyOnren:
		return []string{label}, true
	case SelectorBoth:
		return []string{KeyOtokura, KeyOnren}, true
	default:
		return nil, false
	}
}

// AuditLabel is the key_name recorded in the audit log for a key set.
func AuditLabel(keys []string) string {
	if len(keys) == 2 {
		return CompositeLabel
	}
	return keys[0]
}
