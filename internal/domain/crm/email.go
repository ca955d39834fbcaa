package crm

import (
	"fmt"
	"strings"
)

// EmailClass is the result of classifying a customer email address.
type EmailClass int

const (
	// EmailValid addresses are forwarded untouched.
	EmailValid EmailClass = iota
	// EmailBlacklisted addresses are marketplace relays, replaced with a
	// placeholder and mailing-disabled.
	EmailBlacklisted
	// EmailReview addresses come from a domain outside both lists and get
	// tagged for manual review.
	EmailReview
)

// EmailPolicy drives email classification. Blacklist entries match as
// case-insensitive substrings; Trusted is an exact-domain whitelist and an
// empty Trusted list trusts everything not blacklisted.
type EmailPolicy struct {
	Blacklist         []string
	Trusted           []string
	PlaceholderDomain string
}

// Classify decides how an email address should be treated.
func (p EmailPolicy) Classify(email string) EmailClass {
	if email == "" {
		return EmailValid
	}
	lower := strings.ToLower(email)
	for _, domain := range p.Blacklist {
		if strings.Contains(lower, strings.ToLower(domain)) {
			return EmailBlacklisted
		}
	}
	if len(p.Trusted) == 0 {
		return EmailValid
	}
	at := strings.LastIndex(lower, "@")
	if at < 0 {
		return EmailReview
	}
	domain := lower[at+1:]
	for _, trusted := range p.Trusted {
		if domain == strings.ToLower(trusted) {
			return EmailValid
		}
	}
	return EmailReview
}

// Placeholder builds the replacement address for blacklisted emails.
func (p EmailPolicy) Placeholder(document string) string {
	domain := p.PlaceholderDomain
	if domain == "" {
		domain = "noemail.com"
	}
	return fmt.Sprintf("%s@%s", document, domain)
}
