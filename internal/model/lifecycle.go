package model

import "gorm.io/gorm"

// Lifecycle is the soft-delete state of a row, independent of any domain status.
type Lifecycle string

const (
	LifecycleActive     Lifecycle = "active"
	LifecycleTombstoned Lifecycle = "tombstoned"
)

func lifecycleOf(d gorm.DeletedAt) Lifecycle {
	if d.Valid {
		return LifecycleTombstoned
	}
	return LifecycleActive
}
