package utils

import (
	"sort"
	"strconv"
	"strings"
)

// DetermineLocale picks the locale for a request from an explicit query
// parameter first, then the Accept-Language header, constrained to the
// supported set. Region variants collapse to their base language
// (fr-CA -> fr).
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := map[string]bool{}
	for _, s := range supported {
		sup[strings.ToLower(s)] = true
	}
	pick := func(lang string) (string, bool) {
		l := strings.ToLower(strings.TrimSpace(lang))
		if l == "" {
			return "", false
		}
		if sup[l] {
			return l, true
		}
		if i := strings.Index(l, "-"); i > 0 && sup[l[:i]] {
			return l[:i], true
		}
		return "", false
	}

	if v, ok := pick(queryLang); ok {
		return v
	}

	type cand struct {
		lang string
		q    float64
	}
	var cands []cand
	for _, part := range strings.Split(acceptLang, ",") {
		lang, q := part, 1.0
		if semi := strings.Index(part, ";"); semi >= 0 {
			lang = part[:semi]
			if params := strings.TrimSpace(part[semi+1:]); strings.HasPrefix(params, "q=") {
				if v, err := strconv.ParseFloat(strings.TrimPrefix(params, "q="), 64); err == nil {
					q = v
				}
			}
		}
		if l, ok := pick(lang); ok {
			cands = append(cands, cand{lang: l, q: q})
		}
	}
	if len(cands) > 0 {
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].q > cands[j].q })
		return cands[0].lang
	}

	if v, ok := pick(def); ok {
		return v
	}
	if len(supported) > 0 {
		return strings.ToLower(supported[0])
	}
	return "fr"
}
