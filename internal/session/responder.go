package session

import (
	"context"
	"fmt"
	"strings"

	"opsvoice/internal/domain"
)

// Responder turns a finalized utterance plus retrieved evidence into a
// streamed reply. It must answer only from the supplied evidence and
// signal uncertainty when there is none. Model-backed responders are
// external collaborators behind this seam.
type Responder interface {
	Respond(ctx context.Context, utterance string, evidence *domain.SearchResult, emit func(delta string)) error
}

// TemplateResponder renders deterministic evidence-grounded replies.
// It keeps the system usable end to end without a generation model.
type TemplateResponder struct{}

func NewTemplateResponder() *TemplateResponder { return &TemplateResponder{} }

const uncertaintyReply = "I couldn't find anything about that in the manual. Could you rephrase the question or add more detail?"

func (r *TemplateResponder) Respond(_ context.Context, utterance string, evidence *domain.SearchResult, emit func(string)) error {
	if isSmalltalk(utterance) {
		emit("Hello! Ask me anything about the manual.")
		return nil
	}
	if evidence == nil || len(evidence.Snippets) == 0 {
		emit(uncertaintyReply)
		return nil
	}

	top := evidence.Snippets[0]
	emit("From the manual:\n\n")
	emit(snippetBody(top.Text))
	emit(fmt.Sprintf("\n\n(Section %q, %s, score %.3f)", top.Heading, top.Source, top.Similarity))
	if len(evidence.Snippets) > 1 {
		var more []string
		for _, sn := range evidence.Snippets[1:] {
			more = append(more, fmt.Sprintf("%q", sn.Heading))
		}
		emit("\nRelated sections: " + strings.Join(more, ", "))
	}
	return nil
}

// snippetBody strips the heading prefix the splitter inserted.
func snippetBody(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return text
}
