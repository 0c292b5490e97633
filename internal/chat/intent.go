package chat

import (
	"strings"

	"github.com/spigell/mentor-matcher/internal/tools"
)

type Intent string

const (
	IntentGeneral      Intent = "general"
	IntentMentorLookup Intent = "mentor_lookup"
	IntentStatistics   Intent = "statistics"
)

const (
	keywordSearchLimit = 5
	browseLimit        = 10
)

// keywords is the technology vocabulary recognised in chat messages.
var keywords = []string{
	"react", "python", "javascript", "typescript", "java", "node", "aws", "cloud",
	"database", "frontend", "backend", "mobile", "devops", "docker", "kubernetes",
}

type intentRule struct {
	intent Intent
	match  func(msg string) bool
}

// intentRules are evaluated in order against the lower-cased message; the first match wins.
var intentRules = []intentRule{
	{
		intent: IntentMentorLookup,
		match: func(msg string) bool {
			return strings.Contains(msg, "mentor") && containsAny(msg, "find", "search", "recommend")
		},
	},
	{
		intent: IntentStatistics,
		match: func(msg string) bool {
			return containsAny(msg, "statistic", "how many")
		},
	},
}

// Classify returns the intent of a chat message.
func Classify(message string) Intent {
	msg := strings.ToLower(message)
	for _, rule := range intentRules {
		if rule.match(msg) {
			return rule.intent
		}
	}
	return IntentGeneral
}

// Keywords returns the vocabulary terms found in message, in vocabulary order.
func Keywords(message string) []string {
	msg := strings.ToLower(message)
	found := make([]string, 0)
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// ToolCall is a single tool invocation chosen for grounding.
type ToolCall struct {
	Name string
	Args map[string]any
}

type groundingRule struct {
	applies func(intent Intent, keywords []string) bool
	call    func(keywords []string) ToolCall
}

// groundingRules pick at most one tool per turn; the first applicable rule wins.
var groundingRules = []groundingRule{
	{
		applies: func(intent Intent, kws []string) bool { return intent == IntentMentorLookup && len(kws) > 0 },
		call: func(kws []string) ToolCall {
			return ToolCall{Name: tools.SearchMentorsByTechnology, Args: map[string]any{"technologies": kws, "limit": keywordSearchLimit}}
		},
	},
	{
		applies: func(intent Intent, _ []string) bool { return intent == IntentMentorLookup },
		call: func([]string) ToolCall {
			return ToolCall{Name: tools.GetAllMentors, Args: map[string]any{"limit": browseLimit}}
		},
	},
	{
		applies: func(intent Intent, _ []string) bool { return intent == IntentStatistics },
		call: func([]string) ToolCall {
			return ToolCall{Name: tools.GetSystemStatistics, Args: map[string]any{}}
		},
	},
}

// Plan returns the tool to call for grounding a message, if any.
func Plan(intent Intent, message string) (ToolCall, bool) {
	kws := Keywords(message)
	for _, rule := range groundingRules {
		if rule.applies(intent, kws) {
			return rule.call(kws), true
		}
	}
	return ToolCall{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
