// Package semver implements the version-range matcher that answers
// "does component version V satisfy requirement R"
// queries (§4.7). Version parsing and precedence comparison are
// delegated to Masterminds/semver/v3; the requirement grammar (AND via
// whitespace, OR via "||", the six comparison operators plus "~" and
// "^") and the pre-release visibility rule are implemented directly
// against that library's Version type rather than relied upon from its
// own constraint parser, since the exact pre-release rule below is a
// hard requirement, not an implementation detail to leave implicit.
package semver

import (
	"fmt"
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Version parses a semantic version string. It is a thin rename of the
// underlying library's type so callers of this package never import
// Masterminds/semver directly.
type Version = mmsemver.Version

// Parse parses a version string, rejecting anything that is not a
// valid semantic version per semver.org.
func Parse(v string) (*Version, error) {
	return mmsemver.StrictNewVersion(v)
}

type comparator struct {
	op  string
	ver *Version
}

// InRange reports whether version satisfies requirement. A malformed
// version or requirement never matches. An empty requirement matches
// every valid version.
func InRange(version, requirement string) bool {
	v, err := Parse(version)
	if err != nil {
		return false
	}
	if strings.TrimSpace(requirement) == "" {
		return true
	}
	groups, err := parseRequirement(requirement)
	if err != nil {
		return false
	}
	for _, g := range groups {
		if satisfiesGroup(v, g) {
			return true
		}
	}
	return false
}

func parseRequirement(requirement string) ([][]comparator, error) {
	disjuncts := strings.Split(requirement, "||")
	groups := make([][]comparator, 0, len(disjuncts))
	for _, d := range disjuncts {
		terms := strings.Fields(d)
		if len(terms) == 0 {
			return nil, fmt.Errorf("semver: empty clause in requirement %q", requirement)
		}
		group := make([]comparator, 0, len(terms))
		for _, term := range terms {
			c, err := parseComparator(term)
			if err != nil {
				return nil, err
			}
			group = append(group, c)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func parseComparator(term string) (comparator, error) {
	op, rest := splitOperator(term)
	ver, err := mmsemver.NewVersion(rest)
	if err != nil {
		return comparator{}, fmt.Errorf("semver: bad version in requirement term %q: %w", term, err)
	}
	return comparator{op: op, ver: ver}, nil
}

func splitOperator(term string) (op, rest string) {
	for _, two := range []string{">=", "<=", "!="} {
		if strings.HasPrefix(term, two) {
			return two, strings.TrimSpace(term[len(two):])
		}
	}
	for _, one := range []string{"=", "<", ">", "~", "^"} {
		if strings.HasPrefix(term, one) {
			return one, strings.TrimSpace(term[len(one):])
		}
	}
	return "=", term
}

func satisfiesGroup(v *Version, group []comparator) bool {
	for _, c := range group {
		if !termSatisfied(v, c) {
			return false
		}
	}
	if v.Prerelease() == "" {
		return true
	}
	// A pre-release version only satisfies a range if some comparator in
	// this (AND-ed) group names a pre-release at the identical
	// major.minor.patch — the common node-semver rule, applied here
	// explicitly rather than via the upstream library's own (looser)
	// default.
	for _, c := range group {
		if c.ver.Prerelease() != "" &&
			c.ver.Major() == v.Major() &&
			c.ver.Minor() == v.Minor() &&
			c.ver.Patch() == v.Patch() {
			return true
		}
	}
	return false
}

func termSatisfied(v *Version, c comparator) bool {
	switch c.op {
	case "=":
		return v.Compare(c.ver) == 0
	case "!=":
		return v.Compare(c.ver) != 0
	case "<":
		return v.Compare(c.ver) < 0
	case "<=":
		return v.Compare(c.ver) <= 0
	case ">":
		return v.Compare(c.ver) > 0
	case ">=":
		return v.Compare(c.ver) >= 0
	case "~":
		return tildeMatch(v, c.ver)
	case "^":
		return caretMatch(v, c.ver)
	default:
		return false
	}
}

// tildeMatch allows patch-level changes within the same minor:
// ~1.2.3 := >=1.2.3 <1.3.0.
func tildeMatch(v, base *Version) bool {
	if v.Major() != base.Major() || v.Minor() != base.Minor() {
		return false
	}
	return v.Compare(base) >= 0
}

// caretMatch allows changes that do not modify the left-most non-zero
// digit: ^1.2.3 := >=1.2.3 <2.0.0; ^0.2.3 := >=0.2.3 <0.3.0;
// ^0.0.3 := >=0.0.3 <0.0.4.
func caretMatch(v, base *Version) bool {
	if v.Compare(base) < 0 {
		return false
	}
	switch {
	case base.Major() > 0:
		return v.Major() == base.Major()
	case base.Minor() > 0:
		return v.Major() == 0 && v.Minor() == base.Minor()
	default:
		return v.Major() == 0 && v.Minor() == 0 && v.Patch() == base.Patch()
	}
}
