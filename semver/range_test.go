package semver_test

import (
	"testing"

	"github.com/aws-greengrass-lite/corebus/semver"
)

func TestInRangeOperators(t *testing.T) {
	cases := []struct {
		version, requirement string
		want                 bool
	}{
		{"1.2.3", "=1.2.3", true},
		{"1.2.4", "=1.2.3", false},
		{"1.2.3", ">1.2.0", true},
		{"1.2.3", ">=1.2.3", true},
		{"1.2.3", "<1.2.3", false},
		{"1.2.3", "<=1.2.3", true},
		{"1.2.3", "!=1.2.4", true},
		{"1.3.0", "~1.2.0", false},
		{"1.2.9", "~1.2.0", true},
		{"2.0.0", "^1.2.3", false},
		{"1.9.0", "^1.2.3", true},
		{"0.3.0", "^0.2.3", false},
		{"0.2.9", "^0.2.3", true},
		{"0.0.4", "^0.0.3", false},
		{"0.0.3", "^0.0.3", true},
	}
	for _, c := range cases {
		got := semver.InRange(c.version, c.requirement)
		if got != c.want {
			t.Errorf("InRange(%q, %q) = %v, want %v", c.version, c.requirement, got, c.want)
		}
	}
}

func TestInRangeAndOr(t *testing.T) {
	if !semver.InRange("1.5.0", ">=1.0.0 <2.0.0") {
		t.Fatal("expected AND clause to match")
	}
	if semver.InRange("2.5.0", ">=1.0.0 <2.0.0") {
		t.Fatal("expected AND clause to reject out-of-range version")
	}
	if !semver.InRange("3.0.0", "<1.0.0 || >=3.0.0") {
		t.Fatal("expected OR clause to match second disjunct")
	}
}

func TestInRangeEmptyRequirementMatchesAny(t *testing.T) {
	if !semver.InRange("0.0.1", "") {
		t.Fatal("empty requirement should match any valid version")
	}
}

func TestInRangeMalformedNeverMatches(t *testing.T) {
	if semver.InRange("not-a-version", ">=1.0.0") {
		t.Fatal("malformed version must not match")
	}
	if semver.InRange("1.0.0", ">=not-a-version") {
		t.Fatal("malformed requirement must not match")
	}
}

func TestInRangePrereleaseVisibility(t *testing.T) {
	if semver.InRange("1.2.3-beta", ">=1.0.0") {
		t.Fatal("pre-release must not satisfy a range with no pre-release comparator at the same major.minor.patch")
	}
	if !semver.InRange("1.2.3-beta", ">=1.2.3-alpha <1.2.4") {
		t.Fatal("pre-release should satisfy a range explicitly naming a pre-release at the same major.minor.patch")
	}
	if semver.InRange("1.2.3-beta", ">=1.2.2-alpha") {
		t.Fatal("pre-release comparator at a different major.minor.patch must not open visibility")
	}
}
