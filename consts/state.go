package consts

// Session artifact keys.
const (
	ArtifactContext    = "context"
	ArtifactBull       = "bull-opinion"
	ArtifactBear       = "bear-opinion"
	ArtifactScore      = "score-breakdown"
	ArtifactDraft      = "report-draft"
	ArtifactDirective  = "correction-directive"
	ArtifactNarrative  = "narrative"
	ArtifactClassified = "classification"
)

// Terminal session statuses.
const (
	StatusCompleted   = "completed"
	StatusUnvalidated = "unvalidated"
	StatusRejected    = "rejected"
	StatusUnresolved  = "unresolved-instrument"
	StatusFetchFailed = "failed-at-fetch"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)
