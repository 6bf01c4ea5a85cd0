package db_models

import "gorm.io/datatypes"

// ReconcileRun stores the outcome of one reconciliation pass.
type ReconcileRun struct {
	BaseModel
	Mode          string `gorm:"size:16;not null"`
	Phase         string `gorm:"size:16;not null"`
	Accounts      int
	Discrepancies int
	Unmatched     int
	Updated       int
	Report        datatypes.JSON
}
