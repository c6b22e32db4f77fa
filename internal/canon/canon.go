// Package canon holds the static lookup tables the statement engine is built on:
// the canonical-merchant table, the transaction-kind precedence table, sign
// rules, signal categories and the token stopword list.
//
// Every table is an ordered list of (pattern, result) pairs evaluated top-down;
// the first match wins. Order is part of the contract: existing categorizations
// depend on it, so new entries go where their precedence requires, not at the end
// by default.
package canon

import "regexp"

// Merchant maps descriptors matching Pattern onto a canonical merchant name
type Merchant struct {
	Pattern *regexp.Regexp
	Name    string
}

// Merchants is the canon table. More specific patterns precede the general
// ones they overlap with (Uber Eats before Uber, Sam's Club before Walmart).
var Merchants = []Merchant{
	{regexp.MustCompile(`(?i)\b(?:amazon|amzn)\b`), "Amazon"},
	{regexp.MustCompile(`(?i)\bsam'?s\s*club\b`), "Sam's Club"},
	{regexp.MustCompile(`(?i)\b(?:wal-?mart|wm\s+supercenter)\b`), "Walmart"},
	{regexp.MustCompile(`(?i)\btarget\b`), "Target"},
	{regexp.MustCompile(`(?i)\bfood\s+lion\b`), "Food Lion"},
	{regexp.MustCompile(`(?i)\bharris\s+teeter\b`), "Harris Teeter"},
	{regexp.MustCompile(`(?i)\bkroger\b`), "Kroger"},
	{regexp.MustCompile(`(?i)\bcostco\b`), "Costco"},
	{regexp.MustCompile(`(?i)\baldi\b`), "Aldi"},
	{regexp.MustCompile(`(?i)\bstarbucks\b`), "Starbucks"},
	{regexp.MustCompile(`(?i)\bmcdonald'?s\b`), "McDonald's"},
	{regexp.MustCompile(`(?i)\bchick-?fil-?a\b`), "Chick-fil-A"},
	{regexp.MustCompile(`(?i)\bwawa\b`), "Wawa"},
	{regexp.MustCompile(`(?i)\b7-?eleven\b`), "7-Eleven"},
	{regexp.MustCompile(`(?i)\bshell\s+(?:oil|service)\b`), "Shell"},
	{regexp.MustCompile(`(?i)\bexxon(?:mobil)?\b`), "Exxon"},
	{regexp.MustCompile(`(?i)\bnetflix\b`), "Netflix"},
	{regexp.MustCompile(`(?i)\bspotify\b`), "Spotify"},
	{regexp.MustCompile(`(?i)\b(?:apple\.com|itunes)\b`), "Apple"},
	{regexp.MustCompile(`(?i)\buber\s*eats\b`), "Uber Eats"},
	{regexp.MustCompile(`(?i)\buber\b`), "Uber"},
	{regexp.MustCompile(`(?i)\blyft\b`), "Lyft"},
	{regexp.MustCompile(`(?i)\bdoordash\b`), "DoorDash"},
	{regexp.MustCompile(`(?i)\bcvs\b`), "CVS"},
	{regexp.MustCompile(`(?i)\bwalgreens\b`), "Walgreens"},
	{regexp.MustCompile(`(?i)\bhome\s+depot\b`), "Home Depot"},
	{regexp.MustCompile(`(?i)\blowe'?s\b`), "Lowe's"},
	{regexp.MustCompile(`(?i)\bverizon\b`), "Verizon"},
	{regexp.MustCompile(`(?i)\b(?:comcast|xfinity)\b`), "Xfinity"},
	{regexp.MustCompile(`(?i)\bdominion\s+energy\b`), "Dominion Energy"},
	{regexp.MustCompile(`(?i)\bgeico\b`), "GEICO"},
	{regexp.MustCompile(`(?i)\bstate\s+farm\b`), "State Farm"},
	{regexp.MustCompile(`(?i)\bcity\s+of\s+norfolk\b`), "City of Norfolk"},
	{regexp.MustCompile(`(?i)\bpaypal\b`), "PayPal"},
	{regexp.MustCompile(`(?i)\bvenmo\b`), "Venmo"},
}

// CanonicalMerchant returns the first canon name whose pattern matches
func CanonicalMerchant(descriptor string) (string, bool) {
	for _, m := range Merchants {
		if m.Pattern.MatchString(descriptor) {
			return m.Name, true
		}
	}
	return "", false
}
