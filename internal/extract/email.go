package extract

import "regexp"

// EmailNotFound is stored in Document.Email when the text has no address.
const EmailNotFound = "not found"

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// FindEmail returns the first email-shaped substring of text or EmailNotFound.
func FindEmail(text string) string {
	if match := emailPattern.FindString(text); match != "" {
		return match
	}
	return EmailNotFound
}
