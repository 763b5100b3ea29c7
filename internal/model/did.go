// Package model defines the wire-level data model of the DWN core
// engine: DIDs and DID documents, the descriptor tagged union, the
// message envelope, records, and protocol definitions.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDID is returned when a string does not parse as `did:<method>:<id>`.
var ErrInvalidDID = errors.New("model: invalid DID")

// DID is a decentralized identifier of the form did:<method>:<method-specific-id>.
type DID string

// DIDURL extends a DID with the optional path/query/fragment a
// verification method `kid` reference carries.
type DIDURL struct {
	DID      DID
	Path     string
	Query    string
	Fragment string
}

// ParseDID validates that s has the `did:<method>:<id>` shape.
func ParseDID(s string) (DID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDID, s)
	}

	return DID(s), nil
}

// Method returns the method segment of the DID (e.g. "key", "web").
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) < 2 {
		return ""
	}

	return parts[1]
}

// ParseDIDURL splits a DID URL into its DID and path/query/fragment components.
func ParseDIDURL(s string) (DIDURL, error) {
	rest := s

	var fragment string
	if idx := strings.IndexByte(rest, '#'); idx >= 0 {
		fragment = rest[idx+1:]
		rest = rest[:idx]
	}

	var query string
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		query = rest[idx+1:]
		rest = rest[:idx]
	}

	// A DID is "did:<method>:<method-specific-id>"; anything after a
	// third ':'-delimited segment boundary marked by '/' is path.
	did := rest
	path := ""

	if idx := strings.Index(rest, "/"); idx >= 0 {
		did = rest[:idx]
		path = rest[idx+1:]
	}

	parsedDID, err := ParseDID(did)
	if err != nil {
		return DIDURL{}, err
	}

	return DIDURL{DID: parsedDID, Path: path, Query: query, Fragment: fragment}, nil
}

// String renders the DID URL back to its canonical string form.
func (u DIDURL) String() string {
	s := string(u.DID)
	if u.Path != "" {
		s += "/" + u.Path
	}

	if u.Query != "" {
		s += "?" + u.Query
	}

	if u.Fragment != "" {
		s += "#" + u.Fragment
	}

	return s
}
