// Package tle fetches two-line element sets over HTTPS and shields the rest
// of the system from transient connectivity loss with a timestamped disk
// cache. Cached data older than the staleness limit is never returned.
package tle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/akhenakh/sgp4"
)

// Element is one tracked object's element set: the human-readable catalog
// name used as a lookup key plus the two fixed-format lines. Immutable once
// fetched.
type Element struct {
	Name    string
	Line1   string
	Line2   string
	NoradID int
}

// ElementSet is the full refreshed catalog, in source order.
type ElementSet []Element

// ByName returns the element for a catalog name, or false if absent.
func (s ElementSet) ByName(name string) (Element, bool) {
	for _, e := range s {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// ErrNoElements is returned when a TLE payload contains no parsable
// three-line groups.
var ErrNoElements = errors.New("tle: no valid element groups in input")

// Parse splits raw TLE text into three-line groups (name, line 1, line 2)
// and validates each group through the sgp4 parser. Groups that fail
// validation are skipped rather than trusted; an input yielding zero valid
// groups is an error.
func Parse(raw string) (ElementSet, error) {
	lines := nonEmptyLines(raw)

	var set ElementSet
	for i := 0; i+2 < len(lines); i += 3 {
		name := lines[i]
		l1 := lines[i+1]
		l2 := lines[i+2]

		parsed, err := sgp4.ParseTLE(name + "\n" + l1 + "\n" + l2)
		if err != nil {
			continue
		}

		set = append(set, Element{
			Name:    name,
			Line1:   l1,
			Line2:   l2,
			NoradID: parsed.SatelliteNumber,
		})
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("%w (%d lines)", ErrNoElements, len(lines))
	}
	return set, nil
}

func nonEmptyLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(strings.TrimSpace(line), "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
