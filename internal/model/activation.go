package model

import "time"

type ActivationStep string

const (
	StepConnectDevice ActivationStep = "connect_device"
	StepFirstSync     ActivationStep = "first_sync"
	StepFirstInsight  ActivationStep = "first_insight"
	StepFirstRoute    ActivationStep = "first_route"
	StepFirstPlan     ActivationStep = "first_plan"
)

// ValidActivationStep reports whether step is one of the known milestones.
func ValidActivationStep(step ActivationStep) bool {
	switch step {
	case StepConnectDevice, StepFirstSync, StepFirstInsight, StepFirstRoute, StepFirstPlan:
		return true
	}
	return false
}

type ActivationRecord struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"userId"`
	Step        ActivationStep `db:"step" json:"step"`
	CompletedAt time.Time      `db:"completed_at" json:"completedAt"`
}
