package db_models

import "github.com/google/uuid"

type WaiverAuditAction string

const (
	WaiverActionCreate WaiverAuditAction = "create"
	WaiverActionModify WaiverAuditAction = "modify"
	WaiverActionDelete WaiverAuditAction = "delete"
)

// WaiverAudit records waiver writes and rejected write attempts. Insert-only.
type WaiverAudit struct {
	BaseModel
	AccountID     *uuid.UUID        `gorm:"type:uuid;index"`
	Action        WaiverAuditAction `gorm:"size:16;not null"`
	Field         string
	PreviousValue string
	NewValue      string
	ModifiedBy    string
	IPAddress     string `gorm:"size:64"`
	UserAgent     string
	Rejected      bool
}
