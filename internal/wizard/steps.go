// Package wizard implements the report collection state machine: a
// fixed sequence of questions, per-user session state, media
// accumulation, preview rendering, and delivery to the target chat.
package wizard

// Phase is the current position in the step sequence. PhaseNone means
// no active session.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCategory
	PhaseTitle
	PhaseDevice
	PhaseVersion
	PhaseConfig
	PhasePerformance
	PhaseIssues
	PhaseExtra
	PhaseAuthor
	PhaseMedia
	PhaseConfirm
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseCategory:
		return "category"
	case PhaseTitle:
		return "title"
	case PhaseDevice:
		return "device"
	case PhaseVersion:
		return "version"
	case PhaseConfig:
		return "config"
	case PhasePerformance:
		return "performance"
	case PhaseIssues:
		return "issues"
	case PhaseExtra:
		return "extra"
	case PhaseAuthor:
		return "author"
	case PhaseMedia:
		return "media"
	case PhaseConfirm:
		return "confirm"
	}
	return "unknown"
}

// Field names used as keys in the session record.
const (
	FieldCategory = "category"
	FieldTitle    = "title"
	FieldDevice   = "device"
	FieldVersion  = "version"
	FieldConfig   = "config"
	FieldPerf     = "performance"
	FieldIssues   = "issues"
	FieldExtra    = "extra"
	FieldAuthor   = "author"
)

// Product categories a report can be filed for.
const (
	CategoryWinlator = "winlator"
	CategoryGameHub  = "gamehub"
)

// ValidCategory reports whether cat is one of the enumerated categories.
func ValidCategory(cat string) bool {
	return cat == CategoryWinlator || cat == CategoryGameHub
}

// CategoryName returns the product name shown in prompts and posts.
func CategoryName(cat string) string {
	if cat == CategoryWinlator {
		return "Winlator"
	}
	return "GameHub"
}

// Step is one text-collection step of the wizard: which field the
// answer lands in, which phase follows, and whether negative tokens
// collapse to an empty value.
type Step struct {
	Phase     Phase
	Field     string
	Next      Phase
	Normalize bool
}

// textSteps maps each linear text phase to its step definition.
// CATEGORY, MEDIA and CONFIRM have dedicated handlers in the controller.
var textSteps = map[Phase]Step{
	PhaseTitle:       {Phase: PhaseTitle, Field: FieldTitle, Next: PhaseDevice},
	PhaseDevice:      {Phase: PhaseDevice, Field: FieldDevice, Next: PhaseVersion},
	PhaseVersion:     {Phase: PhaseVersion, Field: FieldVersion, Next: PhaseConfig},
	PhaseConfig:      {Phase: PhaseConfig, Field: FieldConfig, Next: PhasePerformance},
	PhasePerformance: {Phase: PhasePerformance, Field: FieldPerf, Next: PhaseIssues},
	PhaseIssues:      {Phase: PhaseIssues, Field: FieldIssues, Next: PhaseExtra, Normalize: true},
	PhaseExtra:       {Phase: PhaseExtra, Field: FieldExtra, Next: PhaseAuthor, Normalize: true},
	PhaseAuthor:      {Phase: PhaseAuthor, Field: FieldAuthor, Next: PhaseMedia},
}
