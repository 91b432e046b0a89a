package core

import (
	"fmt"
)

// Strategy is a named prompt template governing one refinement attempt's
// transformation intent. Strategies are immutable and defined at process
// start; selection depends only on the attempt index, never on outcomes.
type Strategy struct {
	Name        string
	Description string
	template    string
}

// BuildPrompt wraps the current email text into the strategy's instruction.
func (s Strategy) BuildPrompt(text string) string {
	return fmt.Sprintf(s.template, text)
}

var strategies = []Strategy{
	{
		Name:        "standard",
		Description: "general spam-indicator removal, professional tone",
		template: `You are an expert email writer. I need you to transform the following email content, which has been flagged as potential spam, into a professional, legitimate email that would pass spam filters.

Requirements:
1. Maintain the core message and intent if it's legitimate
2. Remove any spam-like language, excessive capitalization, or suspicious elements
3. Use professional, clear, and concise language
4. Ensure proper email structure and formatting
5. Make it sound natural and trustworthy
6. Remove any misleading or deceptive content

Original email content:
%s

Please provide only the refined email content without any explanations or additional text:`,
	},
	{
		Name:        "aggressive",
		Description: "strip all commercial and promotional language",
		template: `You are an expert email writer. The following email keeps getting flagged as spam. Rewrite it so that every commercial, promotional or sales-oriented element is removed entirely.

Requirements:
1. Delete all promotional phrases, offers, discounts, and calls to action
2. Remove every urgency cue, exclamation mark, and capitalized emphasis
3. Keep only the purely informational content
4. Use a neutral, matter-of-fact tone throughout
5. Do not mention prices, deals, or limited availability

Original email content:
%s

Please provide only the rewritten email content without any explanations or additional text:`,
	},
	{
		Name:        "rewrite",
		Description: "regenerate a new email on the same topic from scratch",
		template: `You are an expert email writer. Write a completely new, professional email on the same topic as the email below. Do not reuse its wording, structure, or phrasing; only carry over the underlying subject matter.

Requirements:
1. Start from a blank slate; ignore the original sentences entirely
2. Communicate the topic plainly, as one colleague writing to another
3. Use a standard greeting, short body paragraphs, and a simple sign-off
4. Avoid anything that resembles marketing or persuasion

Email describing the topic:
%s

Please provide only the new email content without any explanations or additional text:`,
	},
	{
		Name:        "conservative",
		Description: "maximally formal, institutional register",
		template: `You are an expert email writer. Rewrite the following email in the most formal, conservative register possible, as if it were official correspondence from an established institution.

Requirements:
1. Use formal salutations and closings
2. Prefer complete, measured sentences; no contractions or colloquialisms
3. State facts without any embellishment or enthusiasm
4. Remove every element that could be read as promotional
5. Keep the text brief and strictly informational

Original email content:
%s

Please provide only the rewritten email content without any explanations or additional text:`,
	},
}

// StrategyFor selects the strategy for a 1-based attempt index: attempt 1
// uses standard, 2 aggressive, 3 rewrite, and every attempt from 4 on reuses
// conservative.
func StrategyFor(attempt int) Strategy {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(strategies) {
		attempt = len(strategies)
	}
	return strategies[attempt-1]
}

// Strategies returns the ordered catalog, primarily for display.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategies))
	copy(out, strategies)
	return out
}
