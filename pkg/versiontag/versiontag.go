package versiontag

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// tagExpr matches v?MAJOR.MINOR.PATCH(-PRERELEASE)?
var tagExpr = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-(.+))?$`)

// xRangeExpr matches 1.x, 1.2.x, 1.x.x style specs.
var xRangeExpr = regexp.MustCompile(`^(\d+)(?:\.(\d+|x|X))?(?:\.(x|X))?$`)

// tildeExpr matches a bare-major tilde spec: ~1, ~12.
var tildeExpr = regexp.MustCompile(`^~(\d+)$`)

// Parsed is the numeric triple plus optional pre-release suffix of a tag.
type Parsed struct {
	Major, Minor, Patch int
	Prerelease          string
	HasV                bool
}

// parse returns the parsed form of tag, or ok=false if tag is not a
// valid version tag.
func parse(tag string) (Parsed, bool) {
	m := tagExpr.FindStringSubmatch(tag)
	if m == nil {
		return Parsed{}, false
	}
	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])
	patch, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return Parsed{}, false
	}
	return Parsed{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: m[4],
		HasV:       strings.HasPrefix(tag, "v"),
	}, true
}

// IsValid reports whether tag parses as a version tag.
func IsValid(tag string) bool {
	_, ok := parse(tag)
	return ok
}

// IsPrerelease reports whether tag carries a pre-release suffix.
func IsPrerelease(tag string) bool {
	p, ok := parse(tag)
	return ok && p.Prerelease != ""
}

// Compare orders tags first by the numeric (major, minor, patch) triple,
// then by pre-release precedence: a version with a pre-release sorts
// strictly before the same version without one. Unparseable tags sort
// after all parseable ones, and compare equal to each other.
func Compare(a, b string) int {
	pa, oka := parse(a)
	pb, okb := parse(b)
	if !oka && !okb {
		return 0
	}
	if !oka {
		return 1
	}
	if !okb {
		return -1
	}
	if pa.Major != pb.Major {
		return sign(pa.Major - pb.Major)
	}
	if pa.Minor != pb.Minor {
		return sign(pa.Minor - pb.Minor)
	}
	if pa.Patch != pb.Patch {
		return sign(pa.Patch - pb.Patch)
	}
	switch {
	case pa.Prerelease == "" && pb.Prerelease == "":
		return 0
	case pa.Prerelease == "":
		return 1 // a is a release, b is a pre-release: a is greater
	case pb.Prerelease == "":
		return -1
	default:
		return strings.Compare(pa.Prerelease, pb.Prerelease)
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// Sort orders tags ascending using Compare.
func Sort(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool {
		return Compare(tags[i], tags[j]) < 0
	})
}

// Match reports whether version satisfies spec. Malformed specs never
// panic or error; they simply return false.
func Match(version, spec string) bool {
	spec = strings.TrimSpace(spec)
	if spec == "*" || spec == "master" {
		return true
	}

	v, ok := parse(version)
	if !ok {
		return false
	}

	if m := tildeExpr.FindStringSubmatch(spec); m != nil {
		major, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}
		return v.Major == major
	}

	if m := xRangeExpr.FindStringSubmatch(spec); m != nil && strings.ContainsAny(spec, "xX") {
		major, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}
		if v.Major != major {
			return false
		}
		if m[2] != "" && !strings.EqualFold(m[2], "x") {
			minor, err := strconv.Atoi(m[2])
			if err != nil {
				return false
			}
			return v.Minor == minor
		}
		return true
	}

	return matchRange(v, spec)
}

// matchRange evaluates a standard semver range expression: a
// comma-separated conjunction of `<op><version>` clauses (>=, <=, >, <,
// =), or a bare version for an exact match. Any parse failure returns
// false rather than propagating an error, per spec.
func matchRange(v Parsed, spec string) bool {
	clauses := strings.Split(spec, ",")
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		op, rest := splitOp(clause)
		other, ok := parse(rest)
		if !ok {
			return false
		}
		cmp := compareParsed(v, other)
		var satisfied bool
		switch op {
		case ">=":
			satisfied = cmp >= 0
		case "<=":
			satisfied = cmp <= 0
		case ">":
			satisfied = cmp > 0
		case "<":
			satisfied = cmp < 0
		case "=", "":
			satisfied = cmp == 0
		default:
			return false
		}
		if !satisfied {
			return false
		}
	}
	return true
}

func compareParsed(a, b Parsed) int {
	if a.Major != b.Major {
		return sign(a.Major - b.Major)
	}
	if a.Minor != b.Minor {
		return sign(a.Minor - b.Minor)
	}
	if a.Patch != b.Patch {
		return sign(a.Patch - b.Patch)
	}
	switch {
	case a.Prerelease == "" && b.Prerelease == "":
		return 0
	case a.Prerelease == "":
		return 1
	case b.Prerelease == "":
		return -1
	default:
		return strings.Compare(a.Prerelease, b.Prerelease)
	}
}

func splitOp(clause string) (op, rest string) {
	for _, candidate := range []string{">=", "<=", ">", "<", "="} {
		if strings.HasPrefix(clause, candidate) {
			return candidate, strings.TrimSpace(strings.TrimPrefix(clause, candidate))
		}
	}
	return "", clause
}

// DefaultVersion returns the version readers should see by default: the
// latest non-pre-release tag if one exists, otherwise the latest
// pre-release tag, otherwise "" if versions is empty. versions need not
// be pre-sorted.
func DefaultVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	sorted := append([]string(nil), versions...)
	Sort(sorted)

	for i := len(sorted) - 1; i >= 0; i-- {
		if !IsPrerelease(sorted[i]) {
			return sorted[i]
		}
	}
	return sorted[len(sorted)-1]
}

// Category is the classification Categorize assigns a candidate tag
// relative to a library's existing versions.
type Category string

const (
	CategoryUnknown    Category = "unknown"
	CategoryPrerelease Category = "pre-release"
	CategoryMajor      Category = "major"
	CategoryMinor      Category = "minor"
	CategoryPatch      Category = "patch"
)

// Categorize classifies candidate relative to existing. It never panics
// on malformed input; unparseable candidates (or an empty existing set)
// categorize as CategoryUnknown.
func Categorize(candidate string, existing []string) Category {
	cp, ok := parse(candidate)
	if !ok || len(existing) == 0 {
		return CategoryUnknown
	}
	if cp.Prerelease != "" {
		return CategoryPrerelease
	}

	var largestLess Parsed
	found := false
	for _, e := range existing {
		ep, ok := parse(e)
		if !ok {
			continue
		}
		if compareParsed(ep, cp) < 0 && (!found || compareParsed(ep, largestLess) > 0) {
			largestLess = ep
			found = true
		}
	}
	if !found {
		return CategoryMajor
	}

	switch {
	case cp.Major != largestLess.Major:
		return CategoryMajor
	case cp.Minor != largestLess.Minor:
		return CategoryMinor
	default:
		return CategoryPatch
	}
}
