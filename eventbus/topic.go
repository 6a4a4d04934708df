package eventbus

import "strings"

// topicMatches reports whether topic matches pattern, where pattern may use
// ":"-delimited segments with a trailing "*" wildcard matching any single
// remaining suffix (e.g. pattern "agent:*" matches topic "agent:state-change"
// but not "agent:state:change"; a pattern ending in ":**" is not supported —
// the spec only calls for simple segment wildcards).
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, ":*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(topic, prefix) && !strings.Contains(topic[len(prefix):], ":")
	}
	if pattern == "*" {
		return true
	}
	return false
}
