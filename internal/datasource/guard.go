package datasource

import (
	"strings"
	"unicode"

	"qwery/internal/apperr"
	"qwery/internal/model"
)

var readOnlyKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"EXPLAIN":  true,
	"PRAGMA":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"VALUES":   true,
}

// writeKeywords are rejected anywhere in a read-only statement, outside
// string literals and quoted identifiers. A keyword directly followed by '('
// is a function call (replace(), for one) and is allowed.
var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"MERGE":    true,
	"UPSERT":   true,
	"REPLACE":  true,
	"CREATE":   true,
	"DROP":     true,
	"ALTER":    true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"ATTACH":   true,
	"DETACH":   true,
	"VACUUM":   true,
	"REINDEX":  true,
	"ANALYZE":  true,
	"COPY":     true,
	"EXECUTE":  true,
	"INTO":     true,
}

// readPragmas are the sqlite pragmas that only report state.
var readPragmas = map[string]bool{
	"TABLE_INFO":       true,
	"TABLE_XINFO":      true,
	"TABLE_LIST":       true,
	"INDEX_LIST":       true,
	"INDEX_INFO":       true,
	"INDEX_XINFO":      true,
	"FOREIGN_KEY_LIST": true,
	"DATABASE_LIST":    true,
	"COLLATION_LIST":   true,
	"FUNCTION_LIST":    true,
	"COMPILE_OPTIONS":  true,
	"USER_VERSION":     true,
	"SCHEMA_VERSION":   true,
	"PAGE_COUNT":       true,
	"PAGE_SIZE":        true,
	"ENCODING":         true,
}

// CheckReadOnly is a fast pre-filter for read-only datasources: a single
// statement starting with a read keyword and carrying no write keyword.
// The connection itself is opened read-only as well.
func CheckReadOnly(query string) error {
	stmt := strings.TrimSpace(stripComments(query))
	stmt = strings.TrimRight(stmt, "; \t\r\n")
	if stmt == "" {
		return apperr.BadRequest("query is empty")
	}
	if strings.Contains(stmt, ";") && hasSecondStatement(stmt) {
		return apperr.QueryRejected("multiple statements are not allowed on a read-only datasource")
	}

	words := keywords(stmt)
	if len(words) == 0 || !readOnlyKeywords[words[0].text] {
		first := ""
		if len(words) > 0 {
			first = words[0].text
		}
		return apperr.QueryRejected("datasource is read-only: " + first + " is not allowed")
	}
	for _, w := range words[1:] {
		if writeKeywords[w.text] && !w.call && !w.qualified {
			return apperr.QueryRejected("datasource is read-only: " + w.text + " is not allowed")
		}
	}
	if words[0].text == "PRAGMA" {
		return checkPragma(stmt, words)
	}
	return nil
}

func checkPragma(stmt string, words []word) error {
	if len(words) < 2 {
		return apperr.QueryRejected("datasource is read-only: empty PRAGMA")
	}
	name := words[1].text
	// schema-qualified: PRAGMA main.table_info(t)
	if len(words) > 2 && words[2].qualified {
		name = words[2].text
	}
	if !readPragmas[name] || strings.Contains(unquoted(stmt), "=") {
		return apperr.QueryRejected("datasource is read-only: PRAGMA " + strings.ToLower(name) + " is not allowed")
	}
	if (name == "USER_VERSION" || name == "SCHEMA_VERSION" || name == "PAGE_SIZE" || name == "ENCODING") && strings.Contains(unquoted(stmt), "(") {
		return apperr.QueryRejected("datasource is read-only: PRAGMA " + strings.ToLower(name) + " cannot be set")
	}
	return nil
}

type word struct {
	text string
	// call reports a '(' directly after the word.
	call bool
	// qualified reports a '.' directly before the word.
	qualified bool
}

// keywords returns the upper-cased bare words of stmt, skipping string
// literals and quoted identifiers.
func keywords(stmt string) []word {
	src := unquoted(stmt)
	var words []word
	for i := 0; i < len(src); {
		c := rune(src[i])
		if !(unicode.IsLetter(c) || c == '_') {
			i++
			continue
		}
		j := i
		for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_' || src[j] == '$') {
			j++
		}
		w := word{text: strings.ToUpper(src[i:j]), qualified: i > 0 && src[i-1] == '.'}
		k := j
		for k < len(src) && (src[k] == ' ' || src[k] == '\t' || src[k] == '\n' || src[k] == '\r') {
			k++
		}
		w.call = k < len(src) && src[k] == '('
		// digits glued to a word start (1e5, x1) are not keywords
		if i > 0 && unicode.IsDigit(rune(src[i-1])) {
			i = j
			continue
		}
		words = append(words, w)
		i = j
	}
	return words
}

// unquoted blanks the content of string literals and quoted identifiers.
func unquoted(stmt string) string {
	b := []byte(stmt)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			} else {
				b[i] = ' '
			}
			continue
		}
		if c == '\'' || c == '"' || c == '`' {
			quote = c
		}
	}
	return string(b)
}

// stripComments drops -- and /* */ comments outside string literals.
func stripComments(q string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(q); i++ {
		c := q[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(q) && q[i+1] == '-':
			for i < len(q) && q[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(q) && q[i+1] == '*':
			i += 2
			for i+1 < len(q) && !(q[i] == '*' && q[i+1] == '/') {
				i++
			}
			i++
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// hasSecondStatement reports a ';' outside string literals.
func hasSecondStatement(stmt string) bool {
	var quote byte
	for i := 0; i < len(stmt); i++ {
		c := stmt[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' || c == '`' {
			quote = c
			continue
		}
		if c == ';' {
			return true
		}
	}
	return false
}

// QuoteIdentifier quotes a possibly schema-qualified table name for the
// provider's dialect.
func QuoteIdentifier(provider, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.BadRequest("table name is empty")
	}

	lq, rq := `"`, `"`
	if provider == model.ProviderMySQL {
		lq, rq = "`", "`"
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		if part == "" {
			return "", apperr.BadRequest("invalid table name: " + name)
		}
		parts[i] = lq + strings.ReplaceAll(part, rq, rq+rq) + rq
	}
	return strings.Join(parts, "."), nil
}
