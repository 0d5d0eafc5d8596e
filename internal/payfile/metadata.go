package payfile

import (
	"strings"
	"time"
)

// Metadata holds what can be derived from an uploaded filename alone.
type Metadata struct {
	Filename         string
	IntermediaryCode string
	SubmissionDate   time.Time
}

// ExtractMetadata derives the intermediary code and submission date from a
// filename. The code is the first entry of codes found as a case-insensitive
// substring; the date is the first run of eight consecutive digits read as
// DDMMYYYY. Either may be absent (zero value); the pipeline decides whether
// that is fatal.
func ExtractMetadata(filename string, codes []string) Metadata {
	md := Metadata{Filename: filename}

	lower := strings.ToLower(filename)
	for _, code := range codes {
		if code == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(code)) {
			md.IntermediaryCode = code
			break
		}
	}

	if digits, ok := firstDigitRun(filename, 8); ok {
		day := atoi(digits[0:2])
		month := atoi(digits[2:4])
		year := atoi(digits[4:8])
		md.SubmissionDate = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}

	return md
}

// firstDigitRun returns the first n-digit prefix of the first run of at
// least n consecutive digits in s.
func firstDigitRun(s string, n int) (string, bool) {
	run := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			run++
			if run == n {
				return s[i+1-n : i+1], true
			}
		} else {
			run = 0
		}
	}
	return "", false
}

func atoi(s string) int {
	v := 0
	for _, r := range s {
		v = v*10 + int(r-'0')
	}
	return v
}
