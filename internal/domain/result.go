package domain

// PipelineResult is the assembled outcome of one similarity search request.
// This is the payload the full-response cache stores.
type PipelineResult struct {
	Matches              []SimilarityMatch
	UserText             string
	GeneratedTitle       string
	GeneratedDescription string
}
