package domain

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mode      TurnMode  `json:"mode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"session_name,omitempty"`
	Context   SessionContext `json:"context"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SessionContext is the per-session state accumulated across turns.
// Version is owned by the session store and bumped on every save.
type SessionContext struct {
	Version                    int64    `json:"version"`
	Budget                     *float64 `json:"budget,omitempty"`
	Diseases                   []string `json:"diseases,omitempty"`
	FamilySize                 *int     `json:"family_size,omitempty"`
	LastRecommendedDocumentIDs []string `json:"last_recommended_uploaded_ids,omitempty"`
}

// ContextUpdate carries the facts a single turn learned.
type ContextUpdate struct {
	Budget          *float64
	Diseases        []string
	FamilySize      *int
	RecommendedDocs []string
}

// Merge returns a new context with the update applied. Previously set
// fields are only replaced, never cleared; diseases accumulate.
func (c SessionContext) Merge(u ContextUpdate) (SessionContext, bool) {
	next := c
	next.Diseases = slices.Clone(c.Diseases)
	next.LastRecommendedDocumentIDs = slices.Clone(c.LastRecommendedDocumentIDs)
	changed := false

	if u.Budget != nil && *u.Budget > 0 && (c.Budget == nil || *c.Budget != *u.Budget) {
		v := *u.Budget
		next.Budget = &v
		changed = true
	}
	if u.FamilySize != nil && *u.FamilySize > 0 && (c.FamilySize == nil || *c.FamilySize != *u.FamilySize) {
		v := *u.FamilySize
		next.FamilySize = &v
		changed = true
	}
	for _, d := range u.Diseases {
		d = strings.TrimSpace(d)
		if d == "" || slices.ContainsFunc(next.Diseases, func(existing string) bool {
			return strings.EqualFold(existing, d)
		}) {
			continue
		}
		next.Diseases = append(next.Diseases, d)
		changed = true
	}
	if len(u.RecommendedDocs) > 0 && !slices.Equal(c.LastRecommendedDocumentIDs, u.RecommendedDocs) {
		next.LastRecommendedDocumentIDs = slices.Clone(u.RecommendedDocs)
		changed = true
	}
	return next, changed
}

type Intent string

const (
	IntentGatherInfo    Intent = "gather_info"
	IntentRecommend     Intent = "recommend"
	IntentExplainTerm   Intent = "explain_term"
	IntentExplainPolicy Intent = "explain_policy"
	IntentChatReply     Intent = "chat_reply"
)

// IntentClassification is the decoded result of classifying one turn.
type IntentClassification struct {
	Intent               Intent
	HasBudget            bool
	HasMembers           bool
	HasNeedsOrConditions bool
	NextQuestion         string
	TermToExplain        string
	PolicyNameAsked      string
	Extracted            RequirementProfile
}

func (c IntentClassification) MissingEssentials() bool {
	return !c.HasBudget || !c.HasMembers || !c.HasNeedsOrConditions
}

type TurnMode string

const (
	ModeGather    TurnMode = "GATHER"
	ModeChat      TurnMode = "CHAT"
	ModeExplain   TurnMode = "EXPLAIN"
	ModeRecommend TurnMode = "RECOMMEND"
	ModeNoResults TurnMode = "NO_RESULTS"
)

// TurnResponse is one of GatherResponse, ChatResponse, ExplainResponse,
// RecommendResponse or NoResultsResponse.
type TurnResponse interface {
	Mode() TurnMode
	Text() string
	turnResponse()
}

type GatherResponse struct {
	Question string `json:"message"`
}

type ChatResponse struct {
	Answer string `json:"message"`
}

type ExplainResponse struct {
	Explanation string `json:"message"`
	Example     string `json:"example,omitempty"`
	Citation    string `json:"citation,omitempty"`
	PolicyName  string `json:"policy_name,omitempty"`
	Found       bool   `json:"found"`
}

type RecommendResponse struct {
	Message             string             `json:"message"`
	Requirements        RequirementProfile `json:"extracted_requirements"`
	Policies            []RankedPolicy     `json:"policies"`
	TotalFound          int                `json:"total_found"`
	UploadedDocumentIDs []string           `json:"uploaded_policy_ids"`
}

type NoResultsResponse struct {
	Message      string             `json:"message"`
	Requirements RequirementProfile `json:"extracted_requirements"`
}

func (GatherResponse) Mode() TurnMode    { return ModeGather }
func (ChatResponse) Mode() TurnMode      { return ModeChat }
func (ExplainResponse) Mode() TurnMode   { return ModeExplain }
func (RecommendResponse) Mode() TurnMode { return ModeRecommend }
func (NoResultsResponse) Mode() TurnMode { return ModeNoResults }

func (r GatherResponse) Text() string    { return r.Question }
func (r ChatResponse) Text() string      { return r.Answer }
func (r ExplainResponse) Text() string   { return r.Explanation }
func (r RecommendResponse) Text() string { return r.Message }
func (r NoResultsResponse) Text() string { return r.Message }

func (GatherResponse) turnResponse()    {}
func (ChatResponse) turnResponse()      {}
func (ExplainResponse) turnResponse()   {}
func (RecommendResponse) turnResponse() {}
func (NoResultsResponse) turnResponse() {}
