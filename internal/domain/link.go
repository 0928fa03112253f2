package domain

import "github.com/nurole/shorttoken/internal/record"

// Link is a short link: a token that redirects to a target URL.
type Link struct {
	Meta
	Token     string `json:"token"`
	TargetURL string `json:"target_url"`
	Title     string `json:"title,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	Visits    int64  `json:"visits"`
}

// Param returns the value used for the link in URLs, which is its token.
func (l *Link) Param() string {
	return l.Token
}

// LinkID returns the primary key of a link.
func LinkID(l *Link) string { return l.ID }

// LinkToken is the link's token field.
var LinkToken = record.Field[Link]{
	Name:   "token",
	Get:    func(l *Link) string { return l.Token },
	Set:    func(l *Link, v string) { l.Token = v },
	Unique: true,
}
