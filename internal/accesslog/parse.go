// Package accesslog reads the load balancer's key=value access log: it
// parses single lines into entries and follows a growing log file.
package accesslog

import (
	"regexp"
	"strings"
)

var kvPattern = regexp.MustCompile(`([a-zA-Z_]+)=(".*?"|[^"\s]+)`)

// Entry is the subset of an access-log line the watcher cares about.
// Missing keys are left empty.
type Entry struct {
	Pool                 string
	Release              string
	UpstreamStatus       string
	UpstreamAddr         string
	RequestTime          string
	UpstreamResponseTime string
	Raw                  string
}

// Parse extracts the known keys from line. Quoted values lose their quotes
// and a later duplicate key wins. upstream_status falls back to status.
func Parse(line string) Entry {
	fields := make(map[string]string)
	for _, m := range kvPattern.FindAllStringSubmatch(line, -1) {
		fields[m[1]] = strings.Trim(m[2], `"`)
	}

	status := fields["upstream_status"]
	if status == "" {
		status = fields["status"]
	}

	return Entry{
		Pool:                 fields["pool"],
		Release:              fields["release"],
		UpstreamStatus:       status,
		UpstreamAddr:         fields["upstream_addr"],
		RequestTime:          fields["request_time"],
		UpstreamResponseTime: fields["upstream_response_time"],
		Raw:                  strings.TrimSpace(line),
	}
}

// IsServerError reports whether the upstream status is a numeric 5xx code.
// Composite statuses such as "502, 200" do not count.
func (e Entry) IsServerError() bool {
	code, ok := statusCode(e.UpstreamStatus)
	return ok && code >= 500 && code <= 599
}

func statusCode(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	code := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
		code = code*10 + int(r-'0')
		if code > 999 {
			return 0, false
		}
	}
	return code, true
}
