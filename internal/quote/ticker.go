package quote

import (
	"regexp"
	"sort"
	"strings"
)

var defaultAliases = map[string]string{
	"TATA MOTORS": "TATAMOTORS.NS",
	"TATAMOTORS":  "TATAMOTORS.NS",
	"RELIANCE":    "RELIANCE.NS",
	"INFOSYS":     "INFY",
	"WIPRO":       "WIPRO.NS",
	"HDFC":        "HDFCBANK.NS",
	"HDFC BANK":   "HDFCBANK.NS",
	"ICICI":       "ICICIBANK.NS",
	"ICICI BANK":  "ICICIBANK.NS",
	"SBI":         "SBIN.NS",
	"AXIS BANK":   "AXISBANK.NS",
}

var stopwords = map[string]bool{
	"WHAT": true, "IS": true, "THE": true, "PRICE": true, "STOCK": true,
	"OF": true, "PLEASE": true, "CURRENT": true, "FOR": true, "TELL": true,
	"ME": true, "SHARE": true, "SHARES": true, "TICKER": true, "QUOTE": true,
	"TODAY": true, "TODAY'S": true, "NOW": true, "SHOW": true, "GET": true,
	"CHECK": true, "A": true, "AN": true, "WHAT'S": true, "LATEST": true,
}

var (
	leadingPhrases = []string{"WHAT IS THE PRICE OF", "STOCK PRICE OF", "SHARE PRICE OF", "PRICE OF"}
	symbolPattern  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-^=]{0,14}$`)
)

// MergeAliases overlays configured aliases on the built-in table. Keys
// are matched case-insensitively.
func MergeAliases(extra map[string]string) map[string]string {
	out := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		out[k] = v
	}
	for k, v := range extra {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}

// ResolveTicker finds the symbol a price query is about: an alias
// match first, longest alias winning, then the first word that is not a
// stopword. It returns "" when nothing plausible remains.
func ResolveTicker(query string, aliases map[string]string) string {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, p := range leadingPhrases {
		q = strings.ReplaceAll(q, p, " ")
	}
	q = strings.Join(strings.Fields(q), " ")

	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	padded := " " + q + " "
	for _, name := range names {
		if strings.Contains(padded, " "+name+" ") || strings.Contains(padded, " "+name+"?") {
			return aliases[name]
		}
	}

	for _, word := range strings.Fields(q) {
		word = strings.Trim(word, "?!,.:;\"'()")
		word = strings.TrimPrefix(word, "$")
		if word == "" || stopwords[word] {
			continue
		}
		if symbolPattern.MatchString(word) {
			return word
		}
	}
	return ""
}
