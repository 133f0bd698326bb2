package steps

// Equipment is the exclusive resource a step occupies while running.
type Equipment string

const (
	EquipmentOven      Equipment = "oven"
	EquipmentStovetop  Equipment = "stovetop"
	EquipmentPrepArea  Equipment = "prep_area"
	EquipmentHandsFree Equipment = "hands_free"
	EquipmentNone      Equipment = ""
)

// Phase groups steps by when they happen during a cooking session.
type Phase string

const (
	PhasePrep      Phase = "prep"
	PhaseCooking   Phase = "cooking"
	PhaseFinishing Phase = "finishing"
	PhaseNone      Phase = ""
)

// PrepStep is a structured prep action parsed from a free-text instruction
// line. BatchKey is non-empty iff the step can merge with identical actions
// from other recipes; SourceRecipes has length > 1 only after such a merge.
type PrepStep struct {
	StepNumber      int       `json:"step_number"`
	Action          string    `json:"action"`
	Ingredient      string    `json:"ingredient,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	CanBatch        bool      `json:"can_batch"`
	BatchKey        string    `json:"batch_key,omitempty"`
	SourceRecipes   []string  `json:"source_recipes,omitempty"`
	Equipment       Equipment `json:"equipment,omitempty"`
	IsPassive       bool      `json:"is_passive"`
	Phase           Phase     `json:"phase,omitempty"`
}

// PhaseOrder returns the scheduling rank of a phase: prep before cooking
// before finishing; untagged steps last.
func PhaseOrder(p Phase) int {
	switch p {
	case PhasePrep:
		return 0
	case PhaseCooking:
		return 1
	case PhaseFinishing:
		return 2
	default:
		return 3
	}
}

// ValidEquipment reports whether e is one of the known equipment values.
func ValidEquipment(e Equipment) bool {
	switch e {
	case EquipmentOven, EquipmentStovetop, EquipmentPrepArea, EquipmentHandsFree, EquipmentNone:
		return true
	}
	return false
}

// ValidPhase reports whether p is one of the known phase values.
func ValidPhase(p Phase) bool {
	switch p {
	case PhasePrep, PhaseCooking, PhaseFinishing, PhaseNone:
		return true
	}
	return false
}
