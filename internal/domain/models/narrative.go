package models

import "time"

type NarrativeStatus string

const (
	NarrativeDraft     NarrativeStatus = "DRAFT"
	NarrativePublished NarrativeStatus = "PUBLISHED"
)

type ContentSection struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	KeyPoints  []string `json:"keyPoints"`
	Confidence float64  `json:"confidence"`
}

type NarrativeMetadata struct {
	ReadingTime     int      `json:"readingTime"`
	ComplexityLevel string   `json:"complexityLevel"`
	TargetAudience  string   `json:"targetAudience"`
	TopicalTags     []string `json:"topicalTags"`
	Sentiment       float64  `json:"sentiment"`
	Version         int      `json:"version"`
	AdaptedFor      string   `json:"adaptedFor,omitempty"`
	SourceID        string   `json:"sourceId,omitempty"`
}

type IntelligentNarrative struct {
	ID             string            `json:"id"`
	EventID        string            `json:"eventId"`
	Headline       string            `json:"headline"`
	Summary        ContentSection    `json:"summary"`
	Explanation    ContentSection    `json:"explanation"`
	Prediction     ContentSection    `json:"prediction"`
	DeepDive       *ContentSection   `json:"deepDive,omitempty"`
	Metadata       NarrativeMetadata `json:"metadata"`
	Visualizations []Visualization   `json:"visualizations,omitempty"`
	Status         NarrativeStatus   `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Sections returns the populated content sections in reading order.
func (n *IntelligentNarrative) Sections() []*ContentSection {
	out := []*ContentSection{&n.Summary, &n.Explanation, &n.Prediction}
	if n.DeepDive != nil {
		out = append(out, n.DeepDive)
	}
	return out
}

// NarrativeValidation is the persisted outcome of a quality check.
type NarrativeValidation struct {
	NarrativeID  string    `json:"narrativeId"`
	QualityScore float64   `json:"qualityScore"`
	Accuracy     float64   `json:"accuracy"`
	Readability  float64   `json:"readability"`
	Bias         float64   `json:"bias"`
	Passed       bool      `json:"passed"`
	ValidatedAt  time.Time `json:"validatedAt"`
}

type UserProfile struct {
	UserID              string   `json:"userId"`
	ExperienceLevel     string   `json:"experienceLevel" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	PreferredComplexity string   `json:"preferredComplexity" validate:"omitempty,oneof=simple moderate detailed"`
	RiskTolerance       string   `json:"riskTolerance" validate:"omitempty,oneof=conservative moderate aggressive"`
	Interests           []string `json:"interests"`
}
