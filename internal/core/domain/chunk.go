package domain

type SectionType string

const (
	SectionDefinitions    SectionType = "definitions"
	SectionCoverage       SectionType = "coverage"
	SectionExclusions     SectionType = "exclusions"
	SectionWaitingPeriods SectionType = "waiting_periods"
	SectionConditions     SectionType = "conditions"
	SectionClaims         SectionType = "claims"
	SectionLimits         SectionType = "limits"
	SectionGeneral        SectionType = "general"
)

func (s SectionType) Valid() bool {
	switch s {
	case SectionDefinitions, SectionCoverage, SectionExclusions, SectionWaitingPeriods,
		SectionConditions, SectionClaims, SectionLimits, SectionGeneral:
		return true
	default:
		return false
	}
}

// RiskSections are the labels searched for clauses that restrict a claim.
var RiskSections = []SectionType{SectionExclusions, SectionConditions, SectionLimits, SectionWaitingPeriods}

// Chunk is an immutable slice of a policy document. ChunkIndex is
// monotonic within its document.
type Chunk struct {
	Content     string      `json:"content"`
	PageNumber  int         `json:"page_number"`
	ChunkIndex  int         `json:"chunk_index"`
	SectionType SectionType `json:"section_type"`
}

// SearchResult is one hit of a retrieval pass. Score is only comparable
// within the pass that produced it.
type SearchResult struct {
	ChunkID     string      `json:"chunk_id"`
	DocumentID  string      `json:"document_id"`
	Content     string      `json:"content"`
	PageNumber  int         `json:"page_number"`
	ChunkIndex  int         `json:"chunk_index"`
	SectionType SectionType `json:"section_type"`
	Score       float64     `json:"score"`
}
