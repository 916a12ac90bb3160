// Package versiontag implements the version-tag algebra used to parse,
// compare, range-match and categorize the tags a library's upstream
// ecosystem exposes, and to pick the tag that readers should see by
// default.
//
// Tags have the shape v?MAJOR.MINOR.PATCH(-PRERELEASE)?. None of this
// repository's dependencies provide semantic-version range matching, so
// the algebra below is hand-rolled against regexp/strconv.
package versiontag
