package request_models

type AccountActionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type AdminNotesRequest struct {
	Notes string `json:"notes" binding:"max=5000"`
}

type ReconcileRequest struct {
	Mode string `json:"mode" binding:"required,oneof=analyze sync"`
}
