package prompt

import (
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

// Builder renders the answer prompt for one institution.
type Builder struct {
	institution domain.Institution
}

func NewBuilder(institution domain.Institution) *Builder {
	return &Builder{institution: institution}
}

// System is the instruction part of the prompt, shared by completion and chat models.
func (b *Builder) System() string {
	name := b.institution.DisplayName()
	return "You are a chatbot that should answer questions about the " + name + ". " +
		"Questions can appear in German or English. You should provide the most relevant information based on the given context " +
		"and answer either in English or German depending on the user question. " +
		"Answer without introduction of yourself and provide only relevant information. " +
		"Only answer questions that are related to the " + b.institution.Name + ". " +
		"Use the following pieces of context to answer the user question at the end."
}

// Context joins the passages of the context documents.
func Context(docs []domain.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Passage())
	}
	return strings.Join(parts, "\n\n")
}

// User renders everything after the instructions: context, history and question.
func (b *Builder) User(question string, docs []domain.Document, history string) string {
	var sb strings.Builder
	sb.WriteString("CONTEXT: ")
	sb.WriteString(Context(docs))
	sb.WriteString(" \nIf the answer is not contained in the context, just say that you don't know, don't try to make up an answer. ")
	sb.WriteString("Answer in German, if the user question appeared in German or answer in English if the user question appeared in English!\n")
	sb.WriteString(history)
	sb.WriteString(" USER: ")
	sb.WriteString(question)
	sb.WriteString(" ASSISTANT:")
	return sb.String()
}

// Answer is the complete prompt for completion style models.
func (b *Builder) Answer(question string, docs []domain.Document, history string) string {
	return b.System() + " \n" + b.User(question, docs, history)
}
