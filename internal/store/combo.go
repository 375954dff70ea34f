package store

import "time"

const dayFormat = "2006-01-02"

// comboFromDays takes distinct commit days sorted newest first and returns the
// run of consecutive days ending at the newest one, plus the longest run overall.
func comboFromDays(days []string) (current, longest int) {
	var (
		prev   time.Time
		run    int
		broken bool
	)
	for _, d := range days {
		day, err := time.Parse(dayFormat, d)
		if err != nil {
			continue
		}
		if run > 0 && prev.Sub(day) == 24*time.Hour {
			run++
		} else {
			if run > 0 && !broken {
				current = run
				broken = true
			}
			run = 1
		}
		prev = day
		longest = max(longest, run)
	}
	if !broken {
		current = run
	}
	return current, longest
}
