package resolver

import (
	"strings"
)

type boundKind int

const (
	unbounded boundKind = iota
	included
	excluded
)

type bound struct {
	kind boundKind
	v    Version
}

func (b bound) flip() bound {
	switch b.kind {
	case included:
		return bound{kind: excluded, v: b.v}
	case excluded:
		return bound{kind: included, v: b.v}
	default:
		return b
	}
}

// compareLower 比较两个下界：unbounded 最小，同版本时 included 更小。
func compareLower(a, b bound) int {
	switch {
	case a.kind == unbounded && b.kind == unbounded:
		return 0
	case a.kind == unbounded:
		return -1
	case b.kind == unbounded:
		return 1
	}
	if c := a.v.Compare(b.v); c != 0 {
		return c
	}
	switch {
	case a.kind == b.kind:
		return 0
	case a.kind == included:
		return -1
	default:
		return 1
	}
}

// compareUpper 比较两个上界：unbounded 最大，同版本时 excluded 更小。
func compareUpper(a, b bound) int {
	switch {
	case a.kind == unbounded && b.kind == unbounded:
		return 0
	case a.kind == unbounded:
		return 1
	case b.kind == unbounded:
		return -1
	}
	if c := a.v.Compare(b.v); c != 0 {
		return c
	}
	switch {
	case a.kind == b.kind:
		return 0
	case a.kind == excluded:
		return -1
	default:
		return 1
	}
}

type segment struct {
	lo, hi bound
}

func (s segment) valid() bool {
	if s.lo.kind == unbounded || s.hi.kind == unbounded {
		return true
	}
	c := s.lo.v.Compare(s.hi.v)
	if c < 0 {
		return true
	}
	return c == 0 && s.lo.kind == included && s.hi.kind == included
}

func (s segment) contains(v Version) bool {
	switch s.lo.kind {
	case included:
		if v.Compare(s.lo.v) < 0 {
			return false
		}
	case excluded:
		if v.Compare(s.lo.v) <= 0 {
			return false
		}
	}
	switch s.hi.kind {
	case included:
		return v.Compare(s.hi.v) <= 0
	case excluded:
		return v.Compare(s.hi.v) < 0
	}
	return true
}

// Range 是版本区间的并集，segments 有序且互不相交。零值表示空集。
type Range struct {
	segments []segment
}

// Full 包含所有版本。
func Full() Range {
	return Range{segments: []segment{{lo: bound{kind: unbounded}, hi: bound{kind: unbounded}}}}
}

// Empty 不包含任何版本。
func Empty() Range { return Range{} }

// Singleton 只包含 v。
func Singleton(v Version) Range {
	return Range{segments: []segment{{lo: bound{included, v}, hi: bound{included, v}}}}
}

// StrictlyLowerThan 表示 < v。
func StrictlyLowerThan(v Version) Range {
	return Range{segments: []segment{{lo: bound{kind: unbounded}, hi: bound{excluded, v}}}}
}

// StrictlyHigherThan 表示 > v。
func StrictlyHigherThan(v Version) Range {
	return Range{segments: []segment{{lo: bound{excluded, v}, hi: bound{kind: unbounded}}}}
}

// HigherThan 表示 >= v。
func HigherThan(v Version) Range {
	return Range{segments: []segment{{lo: bound{included, v}, hi: bound{kind: unbounded}}}}
}

// Between 表示 [lo, hi)。
func Between(lo, hi Version) Range {
	s := segment{lo: bound{included, lo}, hi: bound{excluded, hi}}
	if !s.valid() {
		return Empty()
	}
	return Range{segments: []segment{s}}
}

// IsEmpty 判断区间是否为空集。
func (r Range) IsEmpty() bool { return len(r.segments) == 0 }

// Contains 判断 v 是否落在区间内。
func (r Range) Contains(v Version) bool {
	for _, s := range r.segments {
		if s.contains(v) {
			return true
		}
	}
	return false
}

// Complement 返回补集。
func (r Range) Complement() Range {
	if r.IsEmpty() {
		return Full()
	}
	var out []segment
	push := func(s segment) {
		// 相邻区间之间的空隙为空集，跳过。
		if s.valid() {
			out = append(out, s)
		}
	}
	first := r.segments[0]
	if first.lo.kind != unbounded {
		push(segment{lo: bound{kind: unbounded}, hi: first.lo.flip()})
	}
	for i := 0; i+1 < len(r.segments); i++ {
		push(segment{lo: r.segments[i].hi.flip(), hi: r.segments[i+1].lo.flip()})
	}
	last := r.segments[len(r.segments)-1]
	if last.hi.kind != unbounded {
		push(segment{lo: last.hi.flip(), hi: bound{kind: unbounded}})
	}
	return Range{segments: out}
}

// Intersection 返回两个区间的交集。
func (r Range) Intersection(other Range) Range {
	var out []segment
	i, j := 0, 0
	for i < len(r.segments) && j < len(other.segments) {
		a, b := r.segments[i], other.segments[j]
		s := segment{lo: a.lo, hi: a.hi}
		if compareLower(b.lo, s.lo) > 0 {
			s.lo = b.lo
		}
		if compareUpper(b.hi, s.hi) < 0 {
			s.hi = b.hi
		}
		if s.valid() {
			out = append(out, s)
		}
		if compareUpper(a.hi, b.hi) < 0 {
			i++
		} else {
			j++
		}
	}
	return Range{segments: out}
}

// Union 返回两个区间的并集。
func (r Range) Union(other Range) Range {
	return r.Complement().Intersection(other.Complement()).Complement()
}

// String 以 PEP 440 风格输出区间，便于日志。
func (r Range) String() string {
	if r.IsEmpty() {
		return "∅"
	}
	parts := make([]string, 0, len(r.segments))
	for _, s := range r.segments {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, " | ")
}

func (s segment) String() string {
	if s.lo.kind == unbounded && s.hi.kind == unbounded {
		return "*"
	}
	if s.lo.kind == included && s.hi.kind == included && s.lo.v.Equal(s.hi.v) {
		return "==" + s.lo.v.String()
	}
	var parts []string
	switch s.lo.kind {
	case included:
		parts = append(parts, ">="+s.lo.v.String())
	case excluded:
		parts = append(parts, ">"+s.lo.v.String())
	}
	switch s.hi.kind {
	case included:
		parts = append(parts, "<="+s.hi.v.String())
	case excluded:
		parts = append(parts, "<"+s.hi.v.String())
	}
	return strings.Join(parts, ", ")
}
