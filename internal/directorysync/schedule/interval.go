// Package schedule runs the directory sync in the background and serializes runs
// across triggers and instances.
package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	dErrors "dirsync/pkg/domain-errors"
)

var (
	everyRe = regexp.MustCompile(`^every\s+(?:(\d+)\s+)?(second|minute|hour|day|week)s?$`)

	cronParser = cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	units = map[string]time.Duration{
		"second": time.Second,
		"minute": time.Minute,
		"hour":   time.Hour,
		"day":    24 * time.Hour,
		"week":   7 * 24 * time.Hour,
	}
)

// ParseInterval accepts "every N units" text ("Every 24 hours", "every hour"),
// cron descriptors ("@daily", "@every 90m") and cron expressions with an optional
// seconds field.
func ParseInterval(expr string) (cron.Schedule, error) {
	normalized := strings.Join(strings.Fields(expr), " ")
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "sync interval is empty")
	}
	lower := strings.ToLower(normalized)

	if m := everyRe.FindStringSubmatch(lower); m != nil {
		n := 1
		if m[1] != "" {
			parsed, err := strconv.Atoi(m[1])
			if err != nil || parsed <= 0 {
				return nil, dErrors.New(dErrors.CodeConfiguration, "sync interval must be a positive count: "+expr)
			}
			n = parsed
		}
		return cron.Every(time.Duration(n) * units[m[2]]), nil
	}

	// Time zone names in a CRON_TZ= prefix are case-sensitive; descriptors are not.
	if strings.HasPrefix(lower, "@") {
		normalized = lower
	}
	schedule, err := cronParser.Parse(normalized)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid sync interval "+strconv.Quote(expr))
	}
	return schedule, nil
}
