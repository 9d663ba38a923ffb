// Package intent implements the intent spec data model of §3.6: an
// ordered list of steps describing an automation, prior to compilation
// into a Petri net.
package intent

// StepType enumerates the step kinds of §3.6.
type StepType string

const (
	StepAction             StepType = "ACTION"
	StepSequence           StepType = "SEQUENCE"
	StepChoice             StepType = "CHOICE"
	StepParallel           StepType = "PARALLEL"
	StepSync               StepType = "SYNC"
	StepNestedConditional  StepType = "NESTED_CONDITIONAL"
	StepLoop               StepType = "LOOP"
	StepEventTrigger       StepType = "EVENT_TRIGGER"
	StepErrorHandler       StepType = "ERROR_HANDLER"
	StepCompensation       StepType = "COMPENSATION"
	StepCircuitBreaker     StepType = "CIRCUIT_BREAKER"
	StepFanOutFanIn        StepType = "FAN_OUT_FAN_IN"
	StepPipelineStage      StepType = "PIPELINE_STAGE"
	StepResourceConstrained StepType = "RESOURCE_CONSTRAINED"
)

// advancedPatternTypes are step types with builder/metadata support but no
// dedicated compiler fragment (§9, open question 2); the compiler falls
// back to a single flagged transition for these.
var advancedPatternTypes = map[StepType]bool{
	StepLoop:                true,
	StepNestedConditional:   true,
	StepEventTrigger:        true,
	StepErrorHandler:        true,
	StepCompensation:        true,
	StepCircuitBreaker:      true,
	StepFanOutFanIn:         true,
	StepPipelineStage:       true,
	StepResourceConstrained: true,
}

// IsAdvancedPattern reports whether t is one of the advanced-pattern types.
func (t StepType) IsAdvancedPattern() bool { return advancedPatternTypes[t] }

// RetryPolicy mirrors petri.RetryPolicy at the intent layer, expressed as a
// free-form map per §3.6 ("retry-policy map") so the surrounding service can
// carry extra fields without a schema change.
type RetryPolicy map[string]any

// IntentStep is one step of an intent spec (§3.6).
type IntentStep struct {
	ID                  string         `json:"id"`
	Type                StepType       `json:"type"`
	Description         string         `json:"description,omitempty"`
	Dependencies        []string       `json:"dependencies,omitempty"`
	Condition           map[string]any `json:"condition,omitempty"`
	When                string         `json:"when,omitempty"` // optional guard expression
	Metadata            map[string]any `json:"metadata,omitempty"`
	LoopCondition       string         `json:"loop_condition,omitempty"`
	ErrorHandling       map[string]any `json:"error_handling,omitempty"`
	Compensation        []string       `json:"compensation,omitempty"`
	TimeoutMs           *int           `json:"timeout_ms,omitempty"`
	RetryPolicy         RetryPolicy    `json:"retry_policy,omitempty"`
	ResourceConstraints map[string]any `json:"resource_constraints,omitempty"`
}

// IntentSpec is the ordered list of steps plus header fields (§3.6).
type IntentSpec struct {
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	OriginalPrompt string         `json:"original_prompt,omitempty"`
	TemplateID     string         `json:"template_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	SchemaVersion  string         `json:"schema_version,omitempty"`
	Steps          []IntentStep   `json:"steps"`
}

// Step looks up a step by id.
func (s IntentSpec) Step(id string) (IntentStep, bool) {
	for _, st := range s.Steps {
		if st.ID == id {
			return st, true
		}
	}
	return IntentStep{}, false
}

// StepsByType filters steps by type, preserving spec order.
func (s IntentSpec) StepsByType(t StepType) []IntentStep {
	var out []IntentStep
	for _, st := range s.Steps {
		if st.Type == t {
			out = append(out, st)
		}
	}
	return out
}

// DependentsOf returns the ids of every step that declares id as a
// dependency, preserving spec order.
func (s IntentSpec) DependentsOf(id string) []string {
	var out []string
	for _, st := range s.Steps {
		for _, dep := range st.Dependencies {
			if dep == id {
				out = append(out, st.ID)
				break
			}
		}
	}
	return out
}

// RootSteps returns the steps with no dependencies, in spec order. The
// compiler places the initial token in the pre-place of every root step.
func (s IntentSpec) RootSteps() []IntentStep {
	var out []IntentStep
	for _, st := range s.Steps {
		if len(st.Dependencies) == 0 {
			out = append(out, st)
		}
	}
	return out
}

// AdvancedPatternSteps returns every step whose type is an advanced
// pattern (§9, open question 2).
func (s IntentSpec) AdvancedPatternSteps() []IntentStep {
	var out []IntentStep
	for _, st := range s.Steps {
		if st.Type.IsAdvancedPattern() {
			out = append(out, st)
		}
	}
	return out
}

// WithSchemaVersionDefault returns s with SchemaVersion defaulted to "1.0"
// if unset (§6.1).
func (s IntentSpec) WithSchemaVersionDefault() IntentSpec {
	if s.SchemaVersion == "" {
		s.SchemaVersion = "1.0"
	}
	return s
}
