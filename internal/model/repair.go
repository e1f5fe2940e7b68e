package model

import (
	"strings"

	"github.com/google/uuid"
)

// RepairRequest is a customer's request to have an item repaired.
type RepairRequest struct {
	Name                   string `json:"name" validate:"required"`
	Email                  string `json:"email" validate:"required,email"`
	Phone                  string `json:"phone" validate:"required"`
	ItemDescription        string `json:"itemDescription" validate:"required"`
	IssueDescription       string `json:"issueDescription" validate:"required"`
	PreferredContactMethod string `json:"preferredContactMethod" validate:"required,oneof=email phone"`
	Urgency                string `json:"urgency" validate:"required,oneof=low medium high"`
}

// Urgent reports whether staff should treat the request as high priority.
func (r *RepairRequest) Urgent() bool { return r.Urgency == "high" }

// RepairRequestFields lists the JSON fields a repair request must carry.
var RepairRequestFields = []string{
	"name",
	"email",
	"phone",
	"itemDescription",
	"issueDescription",
	"preferredContactMethod",
	"urgency",
}

// repairIDLength is the number of hex digits in a repair reference.
const repairIDLength = 12

// NewRepairID returns a short upper-case reference for a repair request.
func NewRepairID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:repairIDLength])
}
