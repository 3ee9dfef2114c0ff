// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionRegex accepts the public PEP 440 shape: optional epoch, dotted release,
// and an optional pre/post/dev suffix. Local versions (+abc) are tolerated.
var versionRegex = regexp.MustCompile(`^(?:(\d+)!)?(\d+(?:\.\d+)*)((?:[-_.]?(?:a|b|rc|alpha|beta|c|pre|preview|post|rev|r|dev)[-_.]?\d*)*)(?:\+[a-z0-9.]+)?$`)

// Version is a parsed release version. Only the epoch and release segments take
// part in ordering; the suffix breaks ties (a release without suffix sorts after
// its pre-releases).
type Version struct {
	Epoch    int
	Release  []int
	Suffix   string
	Original string
}

// ParseVersion parses s as a PEP 440 version.
func ParseVersion(s string) (Version, error) {
	clean := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "v"))
	m := versionRegex.FindStringSubmatch(clean)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	v := Version{Original: s, Suffix: m[3]}
	if m[1] != "" {
		epoch, err := strconv.Atoi(m[1])
		if err != nil {
			return Version{}, fmt.Errorf("invalid epoch in %q: %w", s, err)
		}
		v.Epoch = epoch
	}
	for part := range strings.SplitSeq(m[2], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid release segment in %q: %w", s, err)
		}
		v.Release = append(v.Release, n)
	}
	return v, nil
}

// Compare returns -1, 0 or 1. Missing release segments compare as zero,
// so 1.0 == 1.0.0.
func (v Version) Compare(o Version) int {
	if v.Epoch != o.Epoch {
		return cmpInt(v.Epoch, o.Epoch)
	}
	n := max(len(v.Release), len(o.Release))
	for i := range n {
		a, b := segment(v.Release, i), segment(o.Release, i)
		if a != b {
			return cmpInt(a, b)
		}
	}
	switch {
	case v.Suffix == o.Suffix:
		return 0
	case v.Suffix == "":
		return suffixRank(o.Suffix) * -1
	case o.Suffix == "":
		return suffixRank(v.Suffix)
	default:
		return strings.Compare(v.Suffix, o.Suffix)
	}
}

// suffixRank tells whether a suffixed version sorts after (post) or before
// (pre/dev) the bare release.
func suffixRank(suffix string) int {
	s := strings.TrimLeft(suffix, "-_.")
	if strings.HasPrefix(s, "post") || strings.HasPrefix(s, "rev") ||
		(strings.HasPrefix(s, "r") && !strings.HasPrefix(s, "rc")) {
		return 1
	}
	return -1
}

// bumpPrefix returns the smallest version above every version starting with
// the first n release segments of v (1.4 with n=1 gives 2).
func (v Version) bumpPrefix(n int) Version {
	release := make([]int, n)
	copy(release, v.Release)
	release[n-1]++
	return Version{Epoch: v.Epoch, Release: release, Original: v.Original}
}

func segment(r []int, i int) int {
	if i < len(r) {
		return r[i]
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
