// Package navigation describes the app's pages and the command used to move
// between them.
//
// Opening a page with its creation form already shown is part of the
// navigation itself: the request travels in the route as ?create=1 and is
// read once by the page that receives it.
package navigation

import (
	"net/url"
	"strings"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
)

// CreateParam is the query parameter carrying the create request.
const CreateParam = "create"

// Command asks to show the page at To, optionally with its creation form open.
type Command struct {
	To         string `json:"to"`
	OpenCreate bool   `json:"openCreate,omitempty"`
}

// Href encodes c as a route.
func (c Command) Href() string {
	if !c.OpenCreate {
		return c.To
	}
	u := url.URL{Path: c.To, RawQuery: url.Values{CreateParam: {"1"}}.Encode()}
	return u.String()
}

// Parse decodes a route built by Href. Other query parameters are dropped.
func Parse(href string) (Command, error) {
	u, err := url.Parse(href)
	if err != nil {
		return Command{}, apperrors.Wrap(apperrors.ErrInvalid, "invalid route", err)
	}
	if u.IsAbs() || u.Host != "" {
		return Command{}, apperrors.Newf(apperrors.ErrInvalid, "route %q must be a local path", href)
	}
	if !strings.HasPrefix(u.Path, "/") {
		return Command{}, apperrors.Newf(apperrors.ErrInvalid, "route %q must start with /", href)
	}

	cmd := Command{To: u.Path}
	switch u.Query().Get(CreateParam) {
	case "1", "true":
		cmd.OpenCreate = true
	}
	return cmd, nil
}

// Create returns the command opening the creation form of a sub-page.
// Only sub-pages listed in the pillar catalogue accept it.
func Create(to string) (Command, error) {
	sub, ok := FindSubPage(to)
	if !ok || !sub.OpenCreate {
		return Command{}, apperrors.Newf(apperrors.ErrInvalid, "page %q has no creation form", to)
	}
	return Command{To: sub.To, OpenCreate: true}, nil
}

// Consume reports whether href asks its page to open the creation
// form, and returns the route to replace the current one with so that a
// reload does not open it again.
func Consume(href string) (open bool, clean string, err error) {
	cmd, err := Parse(href)
	if err != nil {
		return false, "", err
	}
	return cmd.OpenCreate, cmd.To, nil
}
