package helper

import (
	"fmt"
	"math"
	"strings"
)

// LapTime formats seconds as mm:ss.mmm, "-" when there is no lap.
func LapTime(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	millis := int64(math.Round(seconds * 1000))
	minutes := millis / 60000
	millis -= minutes * 60000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, millis/1000, millis%1000)
}

// Gap formats the difference to a reference lap, right aligned.
func Gap(seconds, reference float64) string {
	if seconds <= 0 || reference <= 0 {
		return "-"
	}
	diff := fmt.Sprintf("+%.3fs", seconds-reference)
	if len(diff) < 9 {
		diff = strings.Repeat(" ", 9-len(diff)) + diff
	}
	return diff
}

// Score formats a kart score, "-" when the kart has none yet.
func Score(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *score)
}

// TeamCode shortens a team name to three letters: the first letter of the
// first word and two of the second, or the first three of a single word.
func TeamCode(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	first := []rune(words[0])
	code := string(first[0])
	if len(words) > 1 {
		second := []rune(words[1])
		if len(second) > 2 {
			second = second[:2]
		}
		code += string(second)
	} else if len(first) > 1 {
		end := 3
		if len(first) < end {
			end = len(first)
		}
		code += string(first[1:end])
	}
	return strings.ToUpper(code)
}
