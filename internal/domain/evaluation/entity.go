package evaluation

import "time"

// Aspect names. The two groups are evaluated by separate model calls so a
// failure in one does not cost the other; summary is derived afterwards.
const (
	AspectWriting       = "writing"
	AspectSpelling      = "spelling"
	AspectRelevance     = "relevance"
	AspectKeywords      = "keywords"
	AspectAchievements  = "achievements"
	AspectStructure     = "structure"
	AspectFormatting    = "formatting"
	AspectCustomization = "customization"
	AspectSummary       = "summary"
)

var (
	contentAspects   = []string{AspectWriting, AspectSpelling, AspectRelevance, AspectKeywords, AspectAchievements}
	structureAspects = []string{AspectStructure, AspectFormatting, AspectCustomization}
)

// Evaluation is one stored aspect result for a file.
type Evaluation struct {
	ID        string    `db:"id" json:"id"`
	FileID    string    `db:"file_id" json:"file_id"`
	Aspect    string    `db:"aspect" json:"aspect"`
	Score     int       `db:"score" json:"score"`
	Feedback  string    `db:"feedback" json:"feedback"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// aspectResult is the shape the model returns per aspect.
type aspectResult struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// failedResult marks an aspect whose model call did not complete. The score
// floor is 1, so 0 is recognizable as "no result".
var failedResult = aspectResult{Score: 0, Feedback: "Analysis failed"}
