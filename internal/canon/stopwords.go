package canon

import "strings"

// banking boilerplate that carries no merchant identity
var bankingWords = `
purchase authorized on card recurring payment pos debit credit ach online
transfer to from ref the of and at inc llc co corp com www store pmt
withdrawal deposit check web id ppd ccd with cash back return visa
mastercard mc sq tst pp checkcard chkcard bill autopay mobile branch
transaction trans txn des indn conf number no xx xxxx
`

var stateCodes = `
al ak az ar ca co ct de dc fl ga hi id il in ia ks ky la me md ma mi mn ms
mo mt ne nv nh nj nm ny nc nd oh ok or pa ri sc sd tn tx ut vt va wa wv wi wy
`

var cityNames = `
norfolk virginia beach chesapeake portsmouth suffolk hampton newport news
williamsburg richmond new york los angeles chicago houston phoenix san
francisco diego seattle atlanta charlotte raleigh dallas austin boston
miami denver
`

// Stopwords are removed before token keys are taken from a descriptor
var Stopwords = buildStopwords(bankingWords, stateCodes, cityNames)

func buildStopwords(lists ...string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, list := range lists {
		for _, w := range strings.Fields(list) {
			words[w] = struct{}{}
		}
	}
	return words
}

// IsStopword reports whether a lowercased token is on the stopword list
func IsStopword(token string) bool {
	_, ok := Stopwords[token]
	return ok
}
