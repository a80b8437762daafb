package stacktrace

import (
	"regexp"
	"strings"
)

// Rewriter normalises the locations embedded in a raw failure so that they
// point at project-relative files. The rewrite rules, applied in order:
//
//	| # | Match                                      | Replacement                      |
//	|---|--------------------------------------------|----------------------------------|
//	| 1 | text before "\n\n<Name>Error: "            | dropped                          |
//	| 2 | http(s)://localhost:<port>/base/<path>     | ./<path>                         |
//	| 3 | http(s)://localhost:<port>/absolute<root>/ | ./<path relative to root>        |
//	| 4 | webpack:///<path>                          | ./<path>, a leading ./ collapsed |
//	| 5 | <root>/<path>                              | ./<path>                         |
//	| 6 | ?<hash> before :line                       | dropped                          |
//
// Rules 2 to 6 only touch tokens preceded by a space, "(" or the "@" of a
// Firefox/Safari frame, and followed by ":line" or ":line:col". After "@"
// one of the prefixes of rules 2 to 5 must be present.
type Rewriter struct {
	root  string
	rules []rewriteRule
}

type rewriteRule struct {
	name  string
	apply func(string) string
}

var preambleRe = regexp.MustCompile(`(?s)^.+\n\n([A-Za-z]*Error: )`)

// NewRewriter returns a Rewriter anchored at the project root directory. An
// empty root disables root-relative rewriting.
func NewRewriter(root string) *Rewriter {
	root = strings.TrimRight(root, "/")

	prefixes := []string{
		`https?://localhost:\d+/base/`,
		`webpack:///`,
	}
	if root != "" {
		quoted := regexp.QuoteMeta(root)
		prefixes = append(prefixes,
			`https?://localhost:\d+/absolute`+quoted+`/+`,
			quoted+`/+`,
		)
	}
	location := regexp.MustCompile(
		`( |\(|@)(` + strings.Join(prefixes, "|") + `)?(?:\./)?([^\s():?/][^\s():?]*?)(?:\?[a-zA-Z0-9]+?)?(:\d+(?::\d+)?)`,
	)

	return &Rewriter{
		root: root,
		rules: []rewriteRule{
			{name: "preamble", apply: func(s string) string {
				return preambleRe.ReplaceAllString(s, "${1}")
			}},
			{name: "location", apply: func(s string) string {
				return location.ReplaceAllStringFunc(s, func(tok string) string {
					m := location.FindStringSubmatch(tok)
					// Bare "word:1" tokens in prose are not file locations.
					if m[2] == "" && !strings.ContainsAny(m[3], "./") {
						return tok
					}
					// After "@" only known prefixes count.
					if m[1] == "@" && m[2] == "" {
						return tok
					}
					return m[1] + "./" + m[3] + m[4]
				})
			}},
		},
	}
}

// Rewrite applies every rule to s.
func (r *Rewriter) Rewrite(s string) string {
	for _, rule := range r.rules {
		s = rule.apply(s)
	}
	return s
}

// Root returns the directory locations are made relative to.
func (r *Rewriter) Root() string {
	return r.root
}
