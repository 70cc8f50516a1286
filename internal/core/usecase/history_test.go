package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

func TestFormatHistoryPairsQuestionsWithAnswers(t *testing.T) {
	got := FormatHistory([]domain.ConversationTurn{
		{Origin: domain.OriginHuman, Text: "When does\nthe semester start?"},
		{Origin: domain.OriginAI, Text: "On 1 October."},
	})
	want := "USER: When does the semester start? ASSISTANT: On 1 October.\n"
	if got != want {
		t.Fatalf("FormatHistory() = %q, want %q", got, want)
	}
}

func TestFormatHistorySkipsLongTurns(t *testing.T) {
	long := repeatWord(351, "word")
	cases := []struct {
		name  string
		turns []domain.ConversationTurn
		want  string
	}{
		{
			name: "long answer",
			turns: []domain.ConversationTurn{
				{Origin: domain.OriginHuman, Text: "question"},
				{Origin: domain.OriginAI, Text: long},
			},
			want: "",
		},
		{
			name: "long question",
			turns: []domain.ConversationTurn{
				{Origin: domain.OriginHuman, Text: long},
				{Origin: domain.OriginAI, Text: "answer"},
			},
			want: "",
		},
		{
			name: "exactly at limit",
			turns: []domain.ConversationTurn{
				{Origin: domain.OriginHuman, Text: "q"},
				{Origin: domain.OriginAI, Text: repeatWord(350, "w")},
			},
			want: "USER: q ASSISTANT: " + repeatWord(350, "w") + "\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatHistory(tc.turns)
			if got != tc.want {
				t.Fatalf("FormatHistory() = %q, want %q", got, tc.want)
			}
			if strings.Contains(got, long) {
				t.Fatalf("long turn leaked into history")
			}
		})
	}
}

func TestFormatHistoryIgnoresUnpairedQuestion(t *testing.T) {
	got := FormatHistory([]domain.ConversationTurn{
		{Origin: domain.OriginAI, Text: "Welcome!"},
		{Origin: domain.OriginHuman, Text: "dangling"},
	})
	if got != "" {
		t.Fatalf("FormatHistory() = %q, want empty", got)
	}
}

func TestRecentTurnsKeepsLastExchange(t *testing.T) {
	turns := []domain.ConversationTurn{
		{Origin: domain.OriginHuman, Text: "old q"},
		{Origin: domain.OriginAI, Text: "old a"},
		{Origin: domain.OriginHuman, Text: "new q"},
		{Origin: domain.OriginAI, Text: "new a"},
	}
	if got := FormatHistory(recentTurns(turns)); got != "USER: new q ASSISTANT: new a\n" {
		t.Fatalf("unexpected history %q", got)
	}
}
