package usecase

import (
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const (
	maxHistoryTurnWords = 350
	historyWindow       = 2
)

// FormatHistory renders question/answer pairs as "USER: q ASSISTANT: a\n"
// lines. Turns longer than maxHistoryTurnWords are skipped, and a question
// only pairs with an answer that follows it.
func FormatHistory(turns []domain.ConversationTurn) string {
	var sb strings.Builder
	question := ""
	for _, turn := range turns {
		text := strings.ReplaceAll(turn.Text, "\n", " ")
		if len(strings.Split(text, " ")) > maxHistoryTurnWords {
			continue
		}
		switch turn.Origin {
		case domain.OriginHuman:
			question = "USER: " + text
		case domain.OriginAI:
			if question != "" {
				sb.WriteString(question)
				sb.WriteString(" ASSISTANT: ")
				sb.WriteString(text)
				sb.WriteString("\n")
				question = ""
			}
		}
	}
	return sb.String()
}

// recentTurns is the slice of history the router formats: the last exchange.
func recentTurns(turns []domain.ConversationTurn) []domain.ConversationTurn {
	if len(turns) <= historyWindow {
		return turns
	}
	return turns[len(turns)-historyWindow:]
}
