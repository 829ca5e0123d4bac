// Package speech prepares document text for speech synthesis.
package speech

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	strongRegex    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	emRegex        = regexp.MustCompile(`\*(.*?)\*`)
	bulletRegex    = regexp.MustCompile(`(?m)^\s*[\*\-]\s`)
	numberedRegex  = regexp.MustCompile(`(?m)^\s*\d+\.\s`)
	citationRegex  = regexp.MustCompile(`\s*\[\d+(?:\s*,\s*\d+)*\]\s*`)
	mrnLineRegex   = regexp.MustCompile(`(?m)^.*MRN:.*(?:\n|$)`)
	genderAgeRegex = regexp.MustCompile(`\(([A-Za-z]),\s*(\d+)\)`)
	labelRegex     = regexp.MustCompile(`(?i)\b(?:Patient|Admission Date|Reason for Admission|Hospital Course|Discharge Diagnoses|Discharge Condition|Discharge Plan|Medications|Follow-up|Diet|Activity|Return Precautions)\s*:`)
	isoDateRegex   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	yearsOldRegex  = regexp.MustCompile(`y/o`)
	spaceRunRegex  = regexp.MustCompile(`\s+`)
)

// Speakify converts a markdown handoff document into plain text suited
// for text-to-speech. Steps run in a fixed order; later rules see the
// output of earlier ones.
func Speakify(markdown string) string {
	text := strongRegex.ReplaceAllString(markdown, "$1")
	text = emRegex.ReplaceAllString(text, "$1")

	text = bulletRegex.ReplaceAllString(text, "")
	text = numberedRegex.ReplaceAllString(text, "")

	text = citationRegex.ReplaceAllString(text, " ")

	text = mrnLineRegex.ReplaceAllString(text, "")

	text = genderAgeRegex.ReplaceAllStringFunc(text, func(match string) string {
		m := genderAgeRegex.FindStringSubmatch(match)
		gender := "male"
		if strings.EqualFold(m[1], "f") {
			gender = "female"
		}
		return "is a " + m[2] + " year-old " + gender
	})

	text = labelRegex.ReplaceAllString(text, "")

	text = isoDateRegex.ReplaceAllStringFunc(text, formatDate)

	text = yearsOldRegex.ReplaceAllString(text, "year old")

	return strings.TrimSpace(spaceRunRegex.ReplaceAllString(text, " "))
}

// formatDate rewrites YYYY-MM-DD as "Month D, YYYY". Out-of-range parts
// roll over into the next unit.
func formatDate(match string) string {
	m := isoDateRegex.FindStringSubmatch(match)
	year, err1 := strconv.Atoi(m[1])
	month, err2 := strconv.Atoi(m[2])
	day, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return match
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format("January 2, 2006")
}
