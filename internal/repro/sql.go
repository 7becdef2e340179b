package repro

import "strings"

// splitSQL splits a script on semicolons outside quotes and comments.
// Comments are kept with the statement they precede.
func splitSQL(input string) []string {
	var (
		out   []string
		buf   strings.Builder
		quote byte // active quote character, 0 outside literals
		line  bool // inside -- or # comment
		block bool // inside /* */ comment
	)
	flush := func() {
		if stmt := strings.TrimSpace(buf.String()); stmt != "" && !onlyComments(stmt) {
			out = append(out, stmt)
		}
		buf.Reset()
	}
	for i := 0; i < len(input); i++ {
		ch := input[i]
		var next byte
		if i+1 < len(input) {
			next = input[i+1]
		}
		switch {
		case line:
			line = ch != '\n'
		case block:
			if ch == '*' && next == '/' {
				block = false
				buf.WriteByte(ch)
				i++
				ch = next
			}
		case quote != 0:
			if ch == '\\' && quote != '`' && next != 0 {
				buf.WriteByte(ch)
				i++
				ch = next
			} else if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '#' || (ch == '-' && next == '-' && (i == 0 || isSpace(input[i-1]))):
			line = true
		case ch == '/' && next == '*':
			block = true
			buf.WriteByte(ch)
			i++
			ch = next
		case ch == ';':
			flush()
			continue
		}
		buf.WriteByte(ch)
	}
	flush()
	return out
}

func onlyComments(stmt string) bool {
	for _, l := range strings.Split(stmt, "\n") {
		l = strings.TrimSpace(l)
		if l != "" && !strings.HasPrefix(l, "--") && !strings.HasPrefix(l, "#") {
			return false
		}
	}
	return true
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
