package domain

// Step names one unit of work in the fulfillment saga.
type Step string

const (
	StepValidate Step = "validate"
	StepReserve  Step = "reserve"
	StepNotify   Step = "notify"
	StepRefund   Step = "refund"
	// StepDone ends the saga.
	StepDone Step = ""
)

// Field names a record field a step may require.
type Field string

const (
	FieldOrderID      Field = "orderId"
	FieldConnectionID Field = "connectionId"
	FieldSKU          Field = "sku"
	FieldStatus       Field = "status"
)

// requiredFields lists, in check order, the fields each step needs before any side effect.
var requiredFields = map[Step][]Field{
	StepValidate: {FieldOrderID, FieldConnectionID},
	StepReserve:  {FieldSKU, FieldOrderID, FieldConnectionID},
	StepNotify:   {FieldConnectionID, FieldOrderID, FieldStatus},
	StepRefund:   {FieldOrderID, FieldConnectionID},
}

// RequiredFields returns the ordered field schema for a step.
func RequiredFields(step Step) []Field {
	return append([]Field(nil), requiredFields[step]...)
}

// MissingField returns the first required field the record lacks for the step.
func (o OrderContext) MissingField(step Step) (Field, bool) {
	for _, field := range requiredFields[step] {
		if o.Value(field) == "" {
			return field, true
		}
	}
	return "", false
}

// InvalidInputPolicy decides what a step boundary does with a record that misses required fields.
type InvalidInputPolicy int

const (
	// PolicyFail surfaces the step error so the orchestrator routes to its failure branch.
	PolicyFail InvalidInputPolicy = iota
	// PolicyStatus returns the record with status INVALID_INPUT for the orchestrator to branch on.
	PolicyStatus
	// PolicyPassThrough returns the record untouched.
	PolicyPassThrough
)

var invalidInputPolicies = map[Step]InvalidInputPolicy{
	StepValidate: PolicyFail,
	StepReserve:  PolicyStatus,
	StepNotify:   PolicyPassThrough,
	StepRefund:   PolicyFail,
}

// PolicyFor returns the invalid-input policy of a step.
func PolicyFor(step Step) InvalidInputPolicy {
	if policy, ok := invalidInputPolicies[step]; ok {
		return policy
	}
	return PolicyFail
}

// NextStep routes the saga from the status a step returned. It is a pure table so
// durable and inline orchestrators chain steps identically.
func NextStep(current Step, status Status) Step {
	switch current {
	case StepValidate:
		if status == StatusValid {
			return StepReserve
		}
	case StepReserve:
		switch status {
		case StatusReserved, StatusInvalidInput:
			return StepNotify
		case StatusRefund:
			return StepRefund
		}
	case StepRefund:
		if status == StatusRefunded {
			return StepNotify
		}
	}
	return StepDone
}
