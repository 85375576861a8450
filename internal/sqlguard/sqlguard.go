// Package sqlguard validates SQL before the gateway executes it.
// It enforces the read-only contract of the query surface:
//
//   - single statement only (no stacked statements)
//   - no data-modification or data-definition keywords, regardless of
//     case, whitespace, or comment obfuscation
//   - every referenced table must exist in the current schema snapshot
//
// Rejections are *models.QueryError values naming the offending
// keyword or identifier. The guard rejects rather than strips: a query
// containing a write keyword fails outright.
package sqlguard

import (
	"strings"
	"unicode"

	"github.com/rnalens/rnalens/pkg/models"
)

// forbiddenKeywords are statement verbs and pragmas that can mutate the
// database or its attached files. PRAGMA is rejected entirely: the
// write/read split of pragmas is not worth litigating at this layer,
// and schema metadata is available through the gateway's Schema call.
var forbiddenKeywords = map[string]struct{}{
	"insert":   {},
	"update":   {},
	"delete":   {},
	"drop":     {},
	"alter":    {},
	"create":   {},
	"replace":  {},
	"truncate": {},
	"attach":   {},
	"detach":   {},
	"pragma":   {},
	"vacuum":   {},
	"reindex":  {},
	"grant":    {},
	"revoke":   {},
}

// Check validates one query against the read-only contract and the
// schema snapshot. A nil return means the query is safe to execute.
func Check(query string, schema models.Schema) error {
	cleaned := stripLiteralsAndComments(query)
	trimmed := strings.TrimSpace(cleaned)
	if trimmed == "" {
		return &models.QueryError{Query: query, Reason: "empty statement"}
	}

	if rest, ok := afterStatementEnd(trimmed); ok {
		return &models.QueryError{
			Query:  query,
			Reason: "multiple statements are not allowed (found " + firstWord(rest) + " after ;)",
		}
	}

	tokens := tokenize(trimmed)
	if len(tokens) == 0 {
		return &models.QueryError{Query: query, Reason: "empty statement"}
	}

	if first := tokens[0]; first != "select" && first != "with" {
		return &models.QueryError{
			Query:  query,
			Reason: "only SELECT queries are allowed (statement starts with " + strings.ToUpper(first) + ")",
		}
	}

	for _, tok := range tokens {
		if _, bad := forbiddenKeywords[tok]; bad {
			return &models.QueryError{
				Query:  query,
				Reason: "forbidden keyword " + strings.ToUpper(tok),
			}
		}
	}

	cte := cteNames(tokens)
	for _, table := range tableRefs(tokens) {
		if _, isCTE := cte[table]; isCTE {
			continue
		}
		if !schema.HasTable(table) {
			return &models.QueryError{
				Query:  query,
				Reason: "unknown table " + table,
			}
		}
	}

	return nil
}

// stripLiteralsAndComments blanks out single-quoted string literals,
// line comments (-- ...) and block comments (/* ... */) so keyword and
// identifier scanning cannot be fooled by quoted or commented text.
// Quoted text is replaced by spaces to keep token boundaries intact.
func stripLiteralsAndComments(q string) string {
	var b strings.Builder
	b.Grow(len(q))
	for i := 0; i < len(q); {
		switch {
		case q[i] == '\'':
			// string literal, '' escapes a quote
			j := i + 1
			for j < len(q) {
				if q[j] == '\'' {
					if j+1 < len(q) && q[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			b.WriteByte(' ')
			i = min(j+1, len(q))
		case strings.HasPrefix(q[i:], "--"):
			j := strings.IndexByte(q[i:], '\n')
			if j < 0 {
				i = len(q)
			} else {
				i += j // keep the newline as a separator
			}
			b.WriteByte(' ')
		case strings.HasPrefix(q[i:], "/*"):
			j := strings.Index(q[i+2:], "*/")
			if j < 0 {
				i = len(q)
			} else {
				i += j + 4
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(q[i])
			i++
		}
	}
	return b.String()
}

// afterStatementEnd reports whether non-whitespace follows a statement
// terminator, i.e. the input stacks a second statement.
func afterStatementEnd(q string) (string, bool) {
	idx := strings.IndexByte(q, ';')
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(q[idx+1:])
	return rest, rest != ""
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// tokenize lower-cases the statement and splits it into identifier and
// keyword tokens plus single-rune punctuation tokens. Double-quoted,
// backtick-quoted, and bracket-quoted identifiers come out unquoted.
func tokenize(q string) []string {
	var tokens []string
	runes := []rune(strings.ToLower(q))
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '"' || r == '`':
			close := r
			j := i + 1
			for j < len(runes) && runes[j] != close {
				j++
			}
			tokens = append(tokens, string(runes[i+1:min(j, len(runes))]))
			i = j + 1
		case r == '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			tokens = append(tokens, string(runes[i+1:min(j, len(runes))]))
			i = j + 1
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == 'e' || runes[j] == '+' || runes[j] == '-') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		default:
			tokens = append(tokens, string(r))
			i++
		}
	}
	return tokens
}

// cteNames collects common-table-expression names so tableRefs does not
// flag them as unknown tables. A CTE name is an identifier followed by
// AS and an opening parenthesis.
func cteNames(tokens []string) map[string]struct{} {
	names := make(map[string]struct{})
	for i := 0; i+2 < len(tokens); i++ {
		if isIdent(tokens[i]) && tokens[i+1] == "as" && tokens[i+2] == "(" {
			names[tokens[i]] = struct{}{}
		}
	}
	return names
}

// tableRefs returns the identifiers appearing after FROM or JOIN.
// Subqueries (an opening parenthesis in table position) contribute
// their own FROM clauses, which this scan also visits.
func tableRefs(tokens []string) []string {
	var refs []string
	for i, tok := range tokens {
		if tok != "from" && tok != "join" {
			continue
		}
		if i+1 >= len(tokens) {
			continue
		}
		next := tokens[i+1]
		if !isIdent(next) {
			continue
		}
		// strip a schema qualifier like main.genes
		if dot := strings.LastIndexByte(next, '.'); dot >= 0 {
			next = next[dot+1:]
		}
		refs = append(refs, next)
	}
	return refs
}

func isIdent(tok string) bool {
	if tok == "" {
		return false
	}
	r := rune(tok[0])
	return unicode.IsLetter(r) || r == '_'
}
