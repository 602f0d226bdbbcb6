package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/simd-personal/Inno-Supps/llm"
)

// Reply types returned by ClassifyIntent.
const (
	ReplyPositive = "positive"
	ReplyNegative = "negative"
	ReplyNeutral  = "neutral"
	ReplyQuestion = "question"
)

// Intent is the classification of an inbound email.
type Intent struct {
	ReplyType   string   `json:"reply_type"`
	Urgency     string   `json:"urgency"`
	BookMeeting bool     `json:"book_meeting"`
	Sentiment   string   `json:"sentiment,omitempty"`
	KeyTopics   []string `json:"key_topics,omitempty"`
}

// ClassifyIntent decides how an email should be answered.
func (k *Kit) ClassifyIntent(ctx context.Context, emailText string) (Intent, error) {
	if k.mock {
		return Intent{ReplyType: ReplyPositive, Urgency: "medium", BookMeeting: true}, nil
	}
	if err := k.requireLLM(); err != nil {
		return Intent{}, err
	}

	var out Intent
	o, err := k.completeJSON(ctx, "classify_intent", llm.Request{
		Prompt: fmt.Sprintf(`Analyze this email and classify its intent.

Email: %s

Return a JSON object with:
- reply_type: "positive", "negative", "neutral", or "question"
- urgency: "low", "medium", or "high"
- book_meeting: true if they want to schedule a meeting
- sentiment: "positive", "negative", or "neutral"
- key_topics: list of main topics mentioned`, emailText),
		Temperature: llm.Temp(0.1),
	}, &out)
	if err != nil {
		return Intent{}, err
	}

	switch o {
	case outcomeUpstream:
		return Intent{ReplyType: ReplyNeutral, Urgency: "low", Sentiment: "neutral", KeyTopics: []string{}}, nil
	case outcomeUnparseable:
		return Intent{ReplyType: ReplyNeutral, Urgency: "medium", Sentiment: "neutral", KeyTopics: []string{}}, nil
	}
	return out, nil
}

// Draft is a generated email.
type Draft struct {
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	Tone         string `json:"tone,omitempty"`
	CallToAction string `json:"call_to_action,omitempty"`
}

// DraftEmail writes an email for the given context. Recognised context
// keys include company, name and topic; style is professional, casual,
// urgent or follow_up.
func (k *Kit) DraftEmail(ctx context.Context, draftCtx map[string]any, style string) (Draft, error) {
	if style == "" {
		style = "professional"
	}
	subject := "Quick question about " + str(draftCtx, "company", "your business")
	name := str(draftCtx, "name", "there")

	if k.mock {
		return Draft{
			Subject: subject,
			Body: fmt.Sprintf("Hi %s,\n\nI hope this email finds you well. I wanted to reach out regarding %s.\n\nBest regards,\n[Your Name]",
				name, str(draftCtx, "topic", "a potential opportunity")),
		}, nil
	}
	if err := k.requireLLM(); err != nil {
		return Draft{}, err
	}

	encoded, err := json.MarshalIndent(draftCtx, "", "  ")
	if err != nil {
		return Draft{}, fmt.Errorf("draft_email: encode context: %w", err)
	}

	var out Draft
	o, err := k.completeJSON(ctx, "draft_email", llm.Request{
		Prompt: fmt.Sprintf(`Draft a %s email with the following context:

Context: %s

Return a JSON object with:
- subject: compelling subject line
- body: email body
- tone: the tone used
- call_to_action: the main CTA`, style, encoded),
		Temperature: llm.Temp(0.7),
	}, &out)
	if err != nil {
		return Draft{}, err
	}
	if o != outcomeOK {
		return Draft{
			Subject:      subject,
			Body:         fmt.Sprintf("Hi %s,\n\nI hope this email finds you well.\n\nBest regards,\n[Your Name]", name),
			Tone:         style,
			CallToAction: "Schedule a call",
		}, nil
	}
	return out, nil
}
