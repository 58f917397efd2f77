package memory

import "strings"

// topicBuckets maps each topic tag to the keywords that signal it.
// Order is the order tags are appended for a single query.
var topicBuckets = []struct {
	topic    string
	keywords []string
}{
	{"staking", []string{"staking", "stake", "validator"}},
	{"yield_farming", []string{"yield", "farming", "farm", "liquidity"}},
	{"defi_protocols", []string{"uniswap", "aave", "compound", "makerdao"}},
	{"tokens", []string{"token", "coin", "ethereum", "bitcoin"}},
	{"trading", []string{"swap", "trade", "exchange", "price"}},
}

// ExtractTopics returns the topic tags whose keywords appear in query.
func ExtractTopics(query string) []string {
	lower := strings.ToLower(query)
	var found []string
	for _, b := range topicBuckets {
		for _, k := range b.keywords {
			if strings.Contains(lower, k) {
				found = append(found, b.topic)
				break
			}
		}
	}
	return found
}

// mergeTopics appends added to existing, keeps the first occurrence of
// each tag in insertion order, and returns the last MaxTopics tags.
func mergeTopics(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	var out []string
	for _, t := range append(append([]string(nil), existing...), added...) {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTopics {
		out = out[len(out)-MaxTopics:]
	}
	return out
}

func joinStrings(s []string) string {
	return strings.Join(s, ", ")
}

func joinParts(parts []string) string {
	return strings.Join(parts, " | ")
}
