// SPDX-License-Identifier: Apache-2.0

package errors

import "strings"

// Classify derives the structured classification for any error.
// ToolErrors report their own classification; raw errors are matched
// against message pattern rules, falling back to the unknown category.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	if te, ok := err.(*ToolError); ok {
		return te.Classification()
	}

	category := classifyMessage(err.Error())
	d := defaultsFor(category)
	cls := Classification{
		Category:           category,
		Severity:           d.Severity,
		Retryable:          d.Retryable,
		Recoverable:        d.Recoverable,
		RequiresUserAction: d.RequiresUserAction,
		Escalate:           d.Escalate,
	}
	if category == CategoryNetwork && isHardNetworkFailure(err.Error()) {
		cls.Severity = SeverityHigh
	}
	return cls
}

// patternRule matches message substrings to a category. Rules are checked
// in order; the first match wins.
type patternRule struct {
	category Category
	patterns []string
}

var messageRules = []patternRule{
	{CategoryTimeout, []string{
		"timeout", "timed out", "deadline exceeded", "context canceled",
	}},
	{CategoryRateLimit, []string{
		"rate limit", "too many requests", "quota exceeded", "429",
	}},
	{CategoryPermission, []string{
		"permission denied", "unauthorized", "forbidden", "access denied",
		"not allowed",
	}},
	{CategoryNetwork, []string{
		"connection refused", "connection reset", "no such host",
		"network", "dns", "unreachable", "broken pipe", "econnrefused",
	}},
	{CategoryResource, []string{
		"out of memory", "resource exhausted", "no space", "overloaded",
		"too many open files", "insufficient resources",
	}},
	{CategoryValidation, []string{
		"validation", "invalid parameter", "invalid argument", "malformed",
		"missing required", "schema",
	}},
	{CategoryBusinessLogic, []string{
		"insufficient funds", "insufficient balance", "slippage",
		"rejected by policy", "business rule",
	}},
}

// hardNetworkPatterns elevate network errors to high severity: the remote
// end is not merely slow, it is gone.
var hardNetworkPatterns = []string{
	"connection refused", "no such host", "unreachable", "econnrefused",
}

func classifyMessage(msg string) Category {
	lower := strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, p := range rule.patterns {
			if strings.Contains(lower, p) {
				return rule.category
			}
		}
	}
	return CategoryUnknown
}

func isHardNetworkFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range hardNetworkPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
