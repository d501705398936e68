// Package pushshift downloads, samples and reads the monthly Reddit dumps
// published by Pushshift.
package pushshift

import (
	"regexp"
	"strings"
	"time"

	"github.com/meigma/nastydata/core"
	"github.com/meigma/nastydata/internal/monthly"
)

// Default locations of the dumps.
const (
	LinksURL    = "https://files.pushshift.io/reddit/submissions/"
	CommentsURL = "https://files.pushshift.io/reddit/comments/"
)

// Checksum list file names. The two directories differ.
const (
	linksChecksums    = "sha256sums.txt"
	commentsChecksums = "sha256sum.txt"
)

// MetaField is the document field that carries the dump a document came from.
const MetaField = "pushshift_dump_meta"

const monthPlaceholder = "{month}"

// Pattern is a dump file naming scheme, e.g. "RS_{month}.zst".
type Pattern struct {
	Type     core.DumpType
	template string
	re       *regexp.Regexp
}

func newPattern(t core.DumpType, template string) Pattern {
	prefix, suffix, _ := strings.Cut(template, monthPlaceholder)
	re := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `(\d{4}-\d{2})` + regexp.QuoteMeta(suffix) + "$")
	return Pattern{Type: t, template: template, re: re}
}

// FileName returns the file name for month.
func (p Pattern) FileName(month time.Time) string {
	return strings.Replace(p.template, monthPlaceholder, monthly.Format(month), 1)
}

// String returns the template.
func (p Pattern) String() string { return p.template }

// patterns lists the naming schemes per type, most preferred first.
var patterns = map[core.DumpType][]Pattern{
	core.Links: {
		newPattern(core.Links, "RS_{month}.zst"),
		newPattern(core.Links, "RS_{month}.xz"),
		newPattern(core.Links, "RS_{month}.bz2"),
		newPattern(core.Links, "RS_v2_{month}.xz"),
	},
	core.Comments: {
		newPattern(core.Comments, "RC_{month}.zst"),
		newPattern(core.Comments, "RC_{month}.xz"),
		newPattern(core.Comments, "RC_{month}.bz2"),
	},
}

// earliest is the first month a dump exists for.
var earliest = map[core.DumpType]time.Time{
	core.Links:    time.Date(2005, time.June, 1, 0, 0, 0, 0, time.UTC),
	core.Comments: time.Date(2005, time.December, 1, 0, 0, 0, 0, time.UTC),
}

// Patterns returns the naming schemes for t in preference order.
func Patterns(t core.DumpType) []Pattern {
	return patterns[t]
}

// EarliestMonth returns the first month a dump of type t exists for.
func EarliestMonth(t core.DumpType) time.Time {
	return earliest[t]
}

// MatchFile reports whether name is a dump file and, if so, its type and month.
func MatchFile(name string) (core.DumpType, time.Time, bool) {
	for _, t := range core.DumpTypes {
		for _, p := range patterns[t] {
			m := p.re.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			month, err := monthly.Parse(m[1])
			if err != nil {
				return 0, time.Time{}, false
			}
			return t, month, true
		}
	}
	return 0, time.Time{}, false
}

// DumpMeta returns the metadata attached to documents read from file name,
// or nil if name is not a dump file.
func DumpMeta(name string) core.Document {
	t, month, ok := MatchFile(name)
	if !ok {
		return nil
	}
	return core.Document{
		"dump_file": name,
		"dump_type": t.String(),
		"dump_date": monthly.FormatDay(month),
	}
}
