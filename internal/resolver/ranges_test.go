package resolver

import "testing"

func TestRangeContains(t *testing.T) {
	v := MustParseVersion
	cases := []struct {
		name string
		rng  Range
		in   []string
		out  []string
	}{
		{"full", Full(), []string{"0.0.1", "99.0.0"}, nil},
		{"empty", Empty(), nil, []string{"1.0.0"}},
		{"singleton", Singleton(v("1.2.0")), []string{"1.2.0"}, []string{"1.1.0", "1.3.0"}},
		{"lower", StrictlyLowerThan(v("2.0.0")), []string{"1.9.9"}, []string{"2.0.0", "2.1.0"}},
		{"higher", StrictlyHigherThan(v("2.0.0")), []string{"2.0.1"}, []string{"2.0.0", "1.0.0"}},
		{"higher-eq", HigherThan(v("2.0.0")), []string{"2.0.0", "3.0.0"}, []string{"1.9.0"}},
		{"between", Between(v("1.0.0"), v("2.0.0")), []string{"1.0.0", "1.5.0"}, []string{"2.0.0", "0.9.0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, raw := range tc.in {
				if !tc.rng.Contains(v(raw)) {
					t.Fatalf("%s should contain %s", tc.rng, raw)
				}
			}
			for _, raw := range tc.out {
				if tc.rng.Contains(v(raw)) {
					t.Fatalf("%s should not contain %s", tc.rng, raw)
				}
			}
		})
	}
}

func TestRangeComplementAndIntersection(t *testing.T) {
	v := MustParseVersion
	rng := Between(v("1.0.0"), v("2.0.0"))
	punched := rng.Intersection(Singleton(v("1.5.0")).Complement())

	if punched.Contains(v("1.5.0")) {
		t.Fatalf("punched range still contains 1.5.0: %s", punched)
	}
	for _, raw := range []string{"1.0.0", "1.4.9", "1.5.1", "1.9.9"} {
		if !punched.Contains(v(raw)) {
			t.Fatalf("punched range lost %s: %s", raw, punched)
		}
	}

	if !Full().Complement().IsEmpty() {
		t.Fatalf("complement of full should be empty")
	}
	if !Empty().Complement().Contains(v("3.0.0")) {
		t.Fatalf("complement of empty should be full")
	}
	if !rng.Intersection(StrictlyHigherThan(v("5.0.0"))).IsEmpty() {
		t.Fatalf("disjoint ranges should intersect to empty")
	}
	if got := Singleton(v("1.0.0")).Complement().Complement(); !got.Contains(v("1.0.0")) || got.Contains(v("1.0.1")) {
		t.Fatalf("double complement should round trip, got %s", got)
	}
}

func TestRangeUnion(t *testing.T) {
	v := MustParseVersion
	u := Between(v("1.0.0"), v("2.0.0")).Union(Between(v("2.0.0"), v("3.0.0")))
	if !u.Contains(v("2.0.0")) || !u.Contains(v("1.0.0")) || u.Contains(v("3.0.0")) {
		t.Fatalf("unexpected union %s", u)
	}
	if len(u.segments) != 1 {
		t.Fatalf("adjacent intervals should merge, got %s", u)
	}
	if u.String() != ">=1.0.0, <3.0.0" {
		t.Fatalf("unexpected string %q", u.String())
	}
}

func TestRangeString(t *testing.T) {
	v := MustParseVersion
	if Full().String() != "*" || Empty().String() != "∅" {
		t.Fatalf("unexpected trivial strings %q %q", Full(), Empty())
	}
	if got := Singleton(v("1.0.0")).String(); got != "==1.0.0" {
		t.Fatalf("unexpected singleton string %q", got)
	}
	if got := Singleton(v("1.0.0")).Complement().String(); got != "<1.0.0 | >1.0.0" {
		t.Fatalf("unexpected complement string %q", got)
	}
}
