package ranges

import (
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []Range
		want []Range
	}{
		{"empty", nil, nil},
		{"single", []Range{{1, 5}}, []Range{{1, 5}}},
		{
			"adjacent coalesces",
			[]Range{{1, 5}, {6, 10}},
			[]Range{{1, 10}},
		},
		{
			"overlapping coalesces",
			[]Range{{1, 5}, {3, 10}},
			[]Range{{1, 10}},
		},
		{
			"gap stays disjoint",
			[]Range{{1, 5}, {7, 10}},
			[]Range{{1, 5}, {7, 10}},
		},
		{
			"unsorted input",
			[]Range{{20, 25}, {1, 5}},
			[]Range{{1, 5}, {20, 25}},
		},
		{
			"invalid ranges dropped",
			[]Range{{0, 5}, {10, 8}, {1, 3}},
			[]Range{{1, 3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Merge(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMergeIdempotent(t *testing.T) {
	in := []Range{{5, 9}, {1, 3}, {3, 6}, {20, 20}}
	once := Merge(in)
	twice := Merge(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge not idempotent: once=%v twice=%v", once, twice)
	}
}

func TestIntersectionLength(t *testing.T) {
	tests := []struct {
		name string
		a, b []Range
		want int
	}{
		{"no overlap", []Range{{1, 5}}, []Range{{10, 15}}, 0},
		{"exact match", []Range{{10, 20}}, []Range{{10, 20}}, 11},
		{"superset", []Range{{10, 20}}, []Range{{1, 100}}, 11},
		{"partial overlap", []Range{{10, 20}}, []Range{{15, 25}}, 6},
		{
			"multiple ranges",
			[]Range{{1, 5}, {10, 15}},
			[]Range{{4, 12}},
			2 + 3, // [4,5] and [10,12]
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IntersectionLength(tt.a, tt.b)
			if got != tt.want {
				t.Fatalf("IntersectionLength(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			reverse := IntersectionLength(tt.b, tt.a)
			if reverse != got {
				t.Fatalf("IntersectionLength not symmetric: %d vs %d", got, reverse)
			}
		})
	}
}

func TestLengthBoundedByMerge(t *testing.T) {
	in := []Range{{1, 5}, {3, 8}, {20, 25}}
	sumParts := 0
	for _, r := range in {
		sumParts += r.Len()
	}
	mergedLen := Length(Merge(in))
	if mergedLen > sumParts {
		t.Fatalf("merged length %d exceeds sum of parts %d", mergedLen, sumParts)
	}
}

func TestCluster(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		gap  int
		want []Range
	}{
		{"empty", nil, 3, nil},
		{"single line", []int{5}, 3, []Range{{5, 5}}},
		{
			"tight run",
			[]int{1, 2, 3},
			3,
			[]Range{{1, 3}},
		},
		{
			"gap within tolerance merges",
			[]int{1, 5},
			3,
			[]Range{{1, 5}},
		},
		{
			"gap exceeds tolerance splits",
			[]int{1, 6},
			3,
			[]Range{{1, 1}, {6, 6}},
		},
		{
			"duplicates and unsorted",
			[]int{10, 1, 2, 10, 2},
			0,
			[]Range{{1, 2}, {10, 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cluster(tt.in, tt.gap)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Cluster(%v, %d) = %v, want %v", tt.in, tt.gap, got, tt.want)
			}
		})
	}
}

func TestClusterStability(t *testing.T) {
	got := Cluster([]int{1, 2, 10, 11, 12, 30}, 2)
	for i := 1; i < len(got); i++ {
		gapBetween := got[i].Start - got[i-1].End
		if gapBetween <= 2+1 {
			t.Fatalf("adjacent clusters %v and %v differ by only %d, want > %d", got[i-1], got[i], gapBetween, 3)
		}
	}
}

func TestContainsAndClamp(t *testing.T) {
	outer := Range{Start: 10, End: 20}
	if !Contains(outer, Range{12, 18}) {
		t.Fatal("expected inner range to be contained")
	}
	if Contains(outer, Range{5, 15}) {
		t.Fatal("expected partially-outside range to not be contained")
	}

	clamped, ok := Clamp(Range{5, 15}, outer)
	if !ok || clamped != (Range{10, 15}) {
		t.Fatalf("Clamp = %v, %v, want {10 15}, true", clamped, ok)
	}

	_, ok = Clamp(Range{1, 5}, outer)
	if ok {
		t.Fatal("expected no overlap to report ok=false")
	}
}
