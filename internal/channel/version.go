package channel

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two package version strings, returning -1, 0 or 1.
// Versions that both parse as semantic versions are compared as such; any
// other pair falls back to a conda-style segment comparison.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return compareSegments(splitVersion(a), splitVersion(b))
}

// segment is one run of digits or letters in a version string.
type segment struct {
	num   int64
	word  string
	isNum bool
}

// Word ranks relative to numbers. Pre-release words sort below any number,
// "post" sorts above.
func wordRank(w string) int {
	switch w {
	case "dev":
		return -3
	case "post":
		return 1
	default:
		return -1
	}
}

func splitVersion(v string) []segment {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexByte(v, '+'); i >= 0 {
		v = v[:i]
	}
	var segs []segment
	var cur strings.Builder
	curDigit := false
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		cur.Reset()
		if curDigit {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				segs = append(segs, segment{word: s})
				return
			}
			segs = append(segs, segment{num: n, isNum: true})
			return
		}
		segs = append(segs, segment{word: s})
	}
	for _, r := range v {
		switch {
		case unicode.IsDigit(r):
			if cur.Len() > 0 && !curDigit {
				flush()
			}
			curDigit = true
			cur.WriteRune(r)
		case unicode.IsLetter(r):
			if cur.Len() > 0 && curDigit {
				flush()
			}
			curDigit = false
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return segs
}

func compareSegments(a, b []segment) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		// Missing trailing segments count as zero, so 1.0 == 1.0.0.
		sa, sb := segment{isNum: true}, segment{isNum: true}
		if i < len(a) {
			sa = a[i]
		}
		if i < len(b) {
			sb = b[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b segment) int {
	switch {
	case a.isNum && b.isNum:
		return cmpInt(a.num, b.num)
	case a.isNum:
		return -cmpInt(int64(wordRank(b.word)), 0)
	case b.isNum:
		return cmpInt(int64(wordRank(a.word)), 0)
	}
	ra, rb := wordRank(a.word), wordRank(b.word)
	if ra != rb {
		return cmpInt(int64(ra), int64(rb))
	}
	return strings.Compare(a.word, b.word)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
