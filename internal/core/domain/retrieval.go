package domain

import (
	"math"
	"strconv"
	"strings"
)

// NoneMarker is the single relevant-docs entry of an out-of-scope answer.
const NoneMarker = "none"

// Instruction prefixes expected by the e5 family of embedding models.
const (
	QueryInstruction   = "query: "
	PassageInstruction = "passage: "
)

type ThresholdConfig struct {
	PrimaryThreshold     float64 `json:"primary_threshold" yaml:"primary_threshold"`
	AlternativeThreshold float64 `json:"alternative_threshold" yaml:"alternative_threshold"`
	TopK                 int     `json:"top_k" yaml:"top_k"`
	RerankCap            int     `json:"rerank_cap" yaml:"rerank_cap"`
	ContextCap           int     `json:"context_cap" yaml:"context_cap"`
}

func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		PrimaryThreshold:     5.0,
		AlternativeThreshold: -2.0,
		TopK:                 5,
		RerankCap:            8,
		ContextCap:           3,
	}
}

// Normalize fills non-positive counts with defaults. Thresholds are kept as given.
func (c ThresholdConfig) Normalize() ThresholdConfig {
	def := DefaultThresholds()
	if c.TopK <= 0 {
		c.TopK = def.TopK
	}
	if c.RerankCap <= 0 {
		c.RerankCap = def.RerankCap
	}
	if c.ContextCap <= 0 {
		c.ContextCap = def.ContextCap
	}
	return c
}

// Institution identifies who the assistant speaks for. It also provides the
// metadata of the placeholder document used for out-of-scope answers.
type Institution struct {
	Name     string `json:"name" yaml:"name"`
	FullName string `json:"full_name" yaml:"full_name"`
	URL      string `json:"url" yaml:"url"`
}

func DefaultInstitution() Institution {
	return Institution{
		Name:     "THA",
		FullName: "Technical University of Applied Sciences Augsburg (THA)",
		URL:      "https://tha.de/",
	}
}

// DisplayName is the name used when addressing users.
func (i Institution) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	return i.Name
}

func (i Institution) SentinelDocument() Document {
	return Document{
		Title: i.Name + " Website",
		URL:   i.URL,
	}
}

type Branch string

const (
	BranchPrimary     Branch = "primary"
	BranchAlternative Branch = "alternative"
	BranchRefusal     Branch = "refusal"
)

type RouteResult struct {
	Answer       string     `json:"answer"`
	RelevantDocs []string   `json:"relevant_docs"`
	RerankedDocs []Document `json:"reranked_docs"`
	Scores       []float64  `json:"scores"`
	Label        string     `json:"label"`
	Branch       Branch     `json:"branch"`
}

// FormatScore renders a score the way labels have always shown it: shortest
// representation, with a ".0" suffix for integral values and "-inf" for no score.
func FormatScore(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsNaN(v):
		return "nan"
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
