// Package policy contains the document-shaped domain types for the policy
// evaluation gateway: the on-disk rule document, the wire request/response
// shapes, and the small enums that tie them together.
package policy

// Kind identifies whether a piece of text is a prompt sent to a model or a
// response produced by one.
type Kind string

const (
	KindPrompt   Kind = "prompt"
	KindResponse Kind = "response"
)

// AppliesTo scopes a rule or semantic case to prompts, responses, or both.
type AppliesTo string

const (
	AppliesToPrompt   AppliesTo = "prompt"
	AppliesToResponse AppliesTo = "response"
	AppliesToBoth     AppliesTo = "both"
)

// Applies reports whether a rule scoped by AppliesTo applies to the given Kind.
func (a AppliesTo) Applies(k Kind) bool {
	switch a {
	case AppliesToBoth:
		return true
	case AppliesToPrompt:
		return k == KindPrompt
	case AppliesToResponse:
		return k == KindResponse
	default:
		return false
	}
}

// Action is the outcome of a rule or semantic case match.
type Action string

const (
	ActionAllow Action = "allow"
	ActionBlock Action = "block"
)

// Field identifies which part of an evaluation request a match expression reads.
type Field string

const (
	FieldText   Field = "text"
	FieldTenant Field = "tenant"
	FieldModel  Field = "model"
)

// MatchType constants mirror the original Rust tagged-union discriminator values.
const (
	MatchExact    = "exact"
	MatchRegex    = "regex"
	MatchKeywords = "keywords"
)

// Rule is one entry in a policy document.
type Rule struct {
	ID          string      `yaml:"id" json:"id"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	AppliesTo   AppliesTo   `yaml:"applies_to" json:"applies_to"`
	Action      Action      `yaml:"action" json:"action"`
	Priority    int         `yaml:"priority" json:"priority"`
	When        When        `yaml:"when" json:"when"`
}

// When holds the disjunction of match expressions for a rule: the rule
// matches if any contained expression matches ("when any of these").
type When struct {
	Any []RawMatchExpr `yaml:"any" json:"any"`
}

// RawMatchExpr is the YAML/JSON-facing representation of a match expression,
// carrying the "type" discriminator field alongside its payload.
type RawMatchExpr struct {
	Type   string   `yaml:"type" json:"type"`
	Field  Field    `yaml:"field" json:"field"`
	Value  string   `yaml:"value,omitempty" json:"value,omitempty"`
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// PiiMode selects what Stage 2 does with PII findings.
type PiiMode string

const (
	PiiModeRedact PiiMode = "redact"
	PiiModeOff    PiiMode = "off"
)

// Detectors independently enables each PII finder. A missing block in the
// document disables detection entirely (all flags false) without disabling
// the stage itself.
type Detectors struct {
	Email      bool `yaml:"email" json:"email"`
	IP         bool `yaml:"ip" json:"ip"`
	CreditCard bool `yaml:"credit_card" json:"credit_card"`
	Phone      bool `yaml:"phone" json:"phone"`
}

// PiiConfig configures optional PII detection and redaction (Stage 2) and
// the payload guard that runs ahead of it.
type PiiConfig struct {
	// Enabled defaults to true when the document omits it; a pointer is
	// needed to tell "absent" apart from an explicit false, the same way
	// SemanticConfig.NgramMin/NgramMax distinguish absent from zero.
	Enabled         *bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	AppliesTo       AppliesTo `yaml:"applies_to,omitempty" json:"applies_to,omitempty"`
	Mode            PiiMode   `yaml:"mode,omitempty" json:"mode,omitempty"`
	RedactionToken  string    `yaml:"redaction_token,omitempty" json:"redaction_token,omitempty"`
	Detectors       Detectors `yaml:"detectors,omitempty" json:"detectors,omitempty"`
	MaxBytes        uint      `yaml:"max_bytes,omitempty" json:"max_bytes,omitempty"`
	IncludeFindings bool      `yaml:"include_findings,omitempty" json:"include_findings,omitempty"`
}

// SemanticConfig configures optional near-duplicate semantic matching (Stage 1.5).
type SemanticConfig struct {
	Enabled   bool             `yaml:"enabled" json:"enabled"`
	AppliesTo AppliesTo        `yaml:"applies_to" json:"applies_to"`
	Action    Action           `yaml:"action" json:"action"`
	Threshold float64          `yaml:"threshold" json:"threshold"`
	NgramMin  *int             `yaml:"ngram_min,omitempty" json:"ngram_min,omitempty"`
	NgramMax  *int             `yaml:"ngram_max,omitempty" json:"ngram_max,omitempty"`
	Cases     []SemanticCase   `yaml:"cases" json:"cases"`
}

// SemanticCase is a named cluster of example texts that an incoming prompt
// or response is compared against.
type SemanticCase struct {
	ID          string            `yaml:"id" json:"id"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Examples    []SemanticExample `yaml:"examples" json:"examples"`
}

// SemanticExample is a single labeled example text within a SemanticCase.
type SemanticExample struct {
	Text string `yaml:"text" json:"text"`
}

// PolicyFile is the on-disk policy document: an ordered list of rules plus
// the optional Stage 1.5 / Stage 2 configuration blocks.
type PolicyFile struct {
	Version  string          `yaml:"version,omitempty" json:"version,omitempty"`
	Rules    []Rule          `yaml:"rules" json:"rules"`
	Pii      PiiConfig       `yaml:"pii,omitempty" json:"pii,omitempty"`
	Semantic SemanticConfig  `yaml:"semantic,omitempty" json:"semantic,omitempty"`
}

// EvalRequest is the wire shape of a POST /v1/eval request.
type EvalRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Kind      Kind   `json:"kind"`
	Text      string `json:"text"`
	Tenant    string `json:"tenant,omitempty"`
	Model     string `json:"model,omitempty"`
}

// PiiEntity is one redacted finding surfaced in an EvalResponse.
type PiiEntity struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// EvalResponse is the wire shape of a POST /v1/eval response.
type EvalResponse struct {
	RequestID   string      `json:"request_id"`
	Action      Action      `json:"action"`
	MatchedRule string      `json:"matched_rule,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	OutputText  *string     `json:"output_text,omitempty"`
	Pii         []PiiEntity `json:"pii,omitempty"`
}
