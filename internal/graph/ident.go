package graph

import "strings"

// ParseIdent splits "Name <email>" into its parts. An ident without a
// complete <...> pair yields the whole trimmed string as name and no email.
func ParseIdent(ident string) (name, email string) {
	open := strings.Index(ident, "<")
	if open < 0 {
		return strings.TrimSpace(ident), ""
	}
	end := strings.Index(ident[open+1:], ">")
	if end < 0 {
		return strings.TrimSpace(ident), ""
	}
	return strings.TrimSpace(ident[:open]), strings.TrimSpace(ident[open+1 : open+1+end])
}
