package qa

import (
	"bufio"
	"strings"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

const (
	questionPrefix = "Q: "
	answerPrefix   = "A: "
	sourcePrefix   = "# Source: "
	commentPrefix  = "# "
)

// ParseText reads Q/A records. A "Q: " line opens a question, an "A: " line
// opens its answer, and following lines continue whichever is open.
// "# Source: " names the page the answers of the file come from; other "# "
// lines are comments.
func ParseText(content string) []domain.QARecord {
	var (
		questions []string
		answers   []string
		data      strings.Builder
		source    string
		asking    = true
	)

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text() + "\n"
		switch {
		case strings.HasPrefix(line, sourcePrefix):
			source = strings.TrimSpace(strings.TrimPrefix(line, sourcePrefix))
			continue
		case strings.HasPrefix(line, commentPrefix):
			continue
		case strings.HasPrefix(line, questionPrefix):
			if !asking {
				answers = append(answers, finishAnswer(data.String(), source))
				data.Reset()
				asking = true
			} else if strings.TrimSpace(data.String()) == "" {
				data.Reset()
			}
		case strings.HasPrefix(line, answerPrefix):
			if asking {
				questions = append(questions, clean(data.String())+" ")
				data.Reset()
				asking = false
			}
		}
		data.WriteString(line)
	}
	if !asking {
		answers = append(answers, finishAnswer(data.String(), source))
	}

	n := min(len(questions), len(answers))
	out := make([]domain.QARecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.QARecord{Question: questions[i], Answer: answers[i]})
	}
	return out
}

func finishAnswer(data, source string) string {
	return clean(withSource(data, source))
}

// withSource points to the source page unless the answer already links somewhere.
func withSource(answer, source string) string {
	if source == "" || strings.Contains(answer, "https://") {
		return answer
	}
	return answer + " Find more information here: " + source
}

// clean drops the record prefix and line breaks and collapses indentation runs.
func clean(data string) string {
	if len(data) > len(questionPrefix) {
		data = data[len(questionPrefix):]
	} else {
		data = ""
	}
	data = strings.ReplaceAll(data, "\r", "")
	data = strings.ReplaceAll(data, "\n", "")
	return strings.ReplaceAll(data, "    ", " ")
}
