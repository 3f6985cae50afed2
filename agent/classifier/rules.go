package classifier

import (
	"regexp"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

// Rule tables are evaluated exhaustively (accumulate-all, not first-match) so
// multi-intent text yields multiple intents. Keeping them as data keeps each
// rule independently testable.

type intentRule struct {
	Intent   contractx.Intent
	Keywords []string
}

var intentRules = []intentRule{
	{contractx.IntentBilling, []string{
		"billing", "charged", "payment", "invoice", "refund",
	}},
	{contractx.IntentUpgrade, []string{
		"upgrade", "upgrading", "premium", "plan change", "tier",
	}},
	{contractx.IntentAccount, []string{
		"account", "profile", "password", "login",
		"update my", "change my", "my email", "my phone",
	}},
	{contractx.IntentSupport, []string{
		"help", "support", "issue", "problem", "assistance",
		"not working", "broken", "cancel", "can't", "cannot",
	}},
	{contractx.IntentDataLookup, []string{
		"customer information", "get customer", "show me customer",
		"list", "history", "ticket", "tickets", "lookup", "what is",
	}},
}

type urgencyRule struct {
	Priority contractx.Priority
	Markers  []string
}

// Urgency markers form a vocabulary disjoint from the intent keywords. The
// highest-ranked matching rule decides the priority, whatever the intent.
var urgencyRules = []urgencyRule{
	{contractx.PriorityHigh, []string{
		"urgent", "immediately", "critical", "emergency", "asap",
		"charged twice", "cannot access", "locked out", "security",
		"fraud", "unauthorized", "hacked",
	}},
	{contractx.PriorityMedium, []string{
		"refund", "payment failed", "not working", "broken", "error", "failed",
		"double charge",
	}},
}

// Aggregate/filter requests imply a traversal plan (multi-step), whatever the
// intent count.
var aggregateRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:all|every)\s+(?:\w+\s+)?customers?\b.*\b(?:who|with|that)\b`),
	regexp.MustCompile(`(?i)\ball\b.*\btickets\b`),
}

// Entity extraction runs in a fixed order; the first matching pattern wins
// per entity type.
var customerIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)customer\s+id\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bid\s*:?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bcustomer\s+(\d+)`),
	regexp.MustCompile(`(?i)i'?m\s+customer\s+(\d+)`),
}

var (
	emailPattern      = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)
	phonePattern      = regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b|\b\d{3}-\d{4}\b`)
	historyPattern    = regexp.MustCompile(`(?i)\b(?:history|tickets?)\b`)
	listPattern       = regexp.MustCompile(`(?i)\b(?:list|show me all|get all|all)\b.*\bcustomers?\b`)
	openTicketPattern = regexp.MustCompile(`(?i)\bopen\b`)
	createTicketRe    = regexp.MustCompile(`(?i)\b(?:create|open|file)\b.*\bticket\b`)
	priorityFilterRe  = regexp.MustCompile(`(?i)\b(high|medium|low)[\s-]*priority\b`)
)
