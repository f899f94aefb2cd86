package mqtt

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// topicSeparator splits a topic list such as "home/+/state,home/alarm".
const topicSeparator = ","

// ParseTopics splits a comma-separated topic list.
//
// Surrounding whitespace is trimmed and empty segments are skipped, so
// "a, b,,c" yields [a b c] and "" yields no topics.
func ParseTopics(list string) []string {
	if list == "" {
		return nil
	}

	parts := strings.Split(list, topicSeparator)
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		topics = append(topics, p)
	}
	return topics
}

// BrokerURL builds the paho broker URL for a host and port.
//
// Example: BrokerURL("broker.local", 8883, true) returns "ssl://broker.local:8883".
func BrokerURL(host string, port int, secure bool) string {
	scheme := "tcp"
	if secure {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}
