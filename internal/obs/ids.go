package obs

import (
	"fmt"
	"regexp"
	"strconv"
)

var completeRequestID = []*regexp.Regexp{
	regexp.MustCompile(`^(?:open)?SUSE:Maintenance:\d+:(\d+)$`),
	regexp.MustCompile(`^(?:open)?SUSE:PI:.+:(\d+)$`),
	regexp.MustCompile(`^(?:open)?openSUSE:Maintenance:\d+:(\d+)$`),
}

// ParseRequestID accepts a bare request number or a complete id such as
// SUSE:Maintenance:123:45678 and returns the request number.
func ParseRequestID(s string) (string, error) {
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return s, nil
	}
	for _, re := range completeRequestID {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("invalid request id %q", s)
}
