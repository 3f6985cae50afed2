// Package classifier infers intent, priority, complexity, and entities from
// raw query text. Classification is a pure function of the text and the rule
// tables in rules.go: it is total, deterministic, and never fails.
package classifier

import (
	"strconv"
	"strings"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

// Classify derives a Classification from free text. Unrecognized text yields
// intents={general}, priority=low, complexity=simple.
func Classify(text string) contractx.Classification {
	lower := strings.ToLower(text)

	cls := contractx.Classification{
		Intents:  IntentsOf(text),
		Priority: PriorityOf(text),
	}
	cls.Entities = extractEntities(text, lower, cls)
	cls.Complexity = deriveComplexity(lower, cls)
	return cls
}

// IntentsOf evaluates every intent rule and accumulates all matches.
func IntentsOf(text string) []contractx.Intent {
	lower := strings.ToLower(text)

	var intents []contractx.Intent
	for _, rule := range intentRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				intents = append(intents, rule.Intent)
				break
			}
		}
	}
	if len(intents) == 0 {
		intents = []contractx.Intent{contractx.IntentGeneral}
	}
	return intents
}

// PriorityOf evaluates the urgency markers independently of intent. When
// markers of different ranks match, the highest rank wins.
func PriorityOf(text string) contractx.Priority {
	lower := strings.ToLower(text)

	best := contractx.PriorityLow
	for _, rule := range urgencyRules {
		if rule.Priority.Rank() <= best.Rank() {
			continue
		}
		for _, marker := range rule.Markers {
			if strings.Contains(lower, marker) {
				best = rule.Priority
				break
			}
		}
	}
	return best
}

// deriveComplexity applies the precedence multi_step > coordinated >
// multi_intent > simple. A traversal request outranks everything because
// filtering implies a fan-out plan regardless of intent count; an explicit
// customer entity alongside a support intent outranks plain multi-intent.
func deriveComplexity(lower string, cls contractx.Classification) contractx.Complexity {
	for _, re := range aggregateRules {
		if re.MatchString(lower) {
			return contractx.ComplexityMultiStep
		}
	}

	if _, ok := cls.CustomerID(); ok && cls.HasIntent(contractx.IntentSupport) {
		return contractx.ComplexityCoordinated
	}
	if len(cls.Intents) > 1 {
		return contractx.ComplexityMultiIntent
	}
	return contractx.ComplexitySimple
}

func extractEntities(text, lower string, cls contractx.Classification) map[string]any {
	entities := make(map[string]any, 4)

	for _, re := range customerIDPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				entities["customer_id"] = id
			}
			break
		}
	}
	if m := emailPattern.FindString(text); m != "" {
		entities["email"] = m
	}
	if m := phonePattern.FindString(text); m != "" {
		entities["phone"] = m
	}
	if historyPattern.MatchString(lower) {
		entities["history"] = true
	}
	if listPattern.MatchString(lower) {
		entities["list"] = true
	}
	if createTicketRe.MatchString(lower) {
		entities["create_ticket"] = true
	}
	if cls.HasIntent(contractx.IntentSupport) || cls.HasIntent(contractx.IntentBilling) {
		entities["issue"] = strings.TrimSpace(text)
	}

	if m := priorityFilterRe.FindStringSubmatch(lower); m != nil {
		entities["priority_filter"] = m[1]
	}
	if openTicketPattern.MatchString(lower) && historyPattern.MatchString(lower) {
		entities["status_filter"] = contractx.TicketOpen
	}
	if strings.Contains(lower, "disabled") {
		entities["customer_status"] = contractx.CustomerDisabled
	} else if strings.Contains(lower, "active") {
		entities["customer_status"] = contractx.CustomerActive
	}

	return entities
}
