package domain

type Origin string

const (
	OriginHuman Origin = "human"
	OriginAI    Origin = "ai"
)

type ConversationTurn struct {
	Origin Origin `json:"origin"`
	Text   string `json:"text"`
}

// AskRequest is the transport-neutral query envelope used by the HTTP, NATS and MCP surfaces.
type AskRequest struct {
	Question string             `json:"question"`
	History  []ConversationTurn `json:"history,omitempty"`
}

// AskResponse is the wire form of a RouteResult.
type AskResponse struct {
	Answer       string     `json:"answer"`
	RelevantDocs []string   `json:"relevant_docs"`
	RerankedDocs []Document `json:"reranked_docs"`
	Scores       []float64  `json:"scores"`
	Label        string     `json:"label"`
	Branch       Branch     `json:"branch"`
}

func NewAskResponse(result RouteResult) AskResponse {
	return AskResponse{
		Answer:       result.Answer,
		RelevantDocs: result.RelevantDocs,
		RerankedDocs: result.RerankedDocs,
		Scores:       result.Scores,
		Label:        result.Label,
		Branch:       result.Branch,
	}
}
