package metrics_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/humanbeeng/codelocbench/internal/dataset"
	"github.com/humanbeeng/codelocbench/internal/metrics"
	"github.com/humanbeeng/codelocbench/internal/ranges"
)

func rs(pairs ...int) []ranges.Range {
	var out []ranges.Range
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, ranges.Range{Start: pairs[i], End: pairs[i+1]})
	}
	return out
}

var _ = Describe("file-level metrics", func() {
	// S1 — exact match.
	It("scores a perfectly matched single file as 1.0 on every axis", func() {
		returned := metrics.Files{"a.go": rs(1, 10)}
		gt := metrics.Files{"a.go": rs(1, 10)}

		Expect(metrics.FileRecall(returned, gt, "")).To(BeNumerically("==", 1.0))
		Expect(metrics.FilePrecision(returned, gt, "")).To(BeNumerically("==", 1.0))
		Expect(metrics.LineCoverage(returned, gt, "")).To(BeNumerically("==", 1.0))
		Expect(metrics.LinePrecision(returned, gt, "")).To(BeNumerically("==", 1.0))
	})

	// S2 — superset returned: extra file hurts precision, not recall.
	It("penalizes an unrelated extra file only on precision", func() {
		returned := metrics.Files{"a.go": rs(1, 10), "b.go": rs(1, 5)}
		gt := metrics.Files{"a.go": rs(1, 10)}

		Expect(metrics.FileRecall(returned, gt, "")).To(BeNumerically("==", 1.0))
		Expect(metrics.FilePrecision(returned, gt, "")).To(BeNumerically("==", 0.5))
	})

	// S3 — wrong file only: zero recall and precision, not a crash.
	It("scores a completely wrong file as zero on both axes", func() {
		returned := metrics.Files{"wrong.go": rs(1, 10)}
		gt := metrics.Files{"right.go": rs(1, 10)}

		Expect(metrics.FileRecall(returned, gt, "")).To(BeNumerically("==", 0.0))
		Expect(metrics.FilePrecision(returned, gt, "")).To(BeNumerically("==", 0.0))
	})

	// S4 — partial line overlap within the same file.
	It("computes partial line coverage and precision for overlapping ranges", func() {
		returned := metrics.Files{"a.go": rs(5, 14)} // 10 lines
		gt := metrics.Files{"a.go": rs(1, 10)}        // 10 lines, overlap [5,10] = 6 lines

		Expect(metrics.LineCoverage(returned, gt, "")).To(BeNumerically("~", 6.0/10.0, 1e-9))
		Expect(metrics.LinePrecision(returned, gt, "")).To(BeNumerically("~", 6.0/10.0, 1e-9))
	})

	// S5 — path normalization makes differently-prefixed paths match.
	It("matches files that differ only by a/ b/ ./ prefixes or repo root", func() {
		returned := metrics.Files{"a/pkg/widget.go": rs(1, 10)}
		gt := metrics.Files{"pkg/widget.go": rs(1, 10)}

		Expect(metrics.FileRecall(returned, gt, "")).To(BeNumerically("==", 1.0))
		Expect(metrics.FilePrecision(returned, gt, "")).To(BeNumerically("==", 1.0))
	})

	It("never matches files by basename alone", func() {
		returned := metrics.Files{"other/widget.go": rs(1, 10)}
		gt := metrics.Files{"pkg/widget.go": rs(1, 10)}

		Expect(metrics.FileRecall(returned, gt, "")).To(BeNumerically("==", 0.0))
	})

	It("treats an empty ground truth as vacuously fully recalled", func() {
		Expect(metrics.FileRecall(metrics.Files{"a.go": rs(1, 2)}, metrics.Files{}, "")).To(BeNumerically("==", 1.0))
	})

	It("treats no returned files as a clean zero, not an error", func() {
		Expect(metrics.FilePrecision(metrics.Files{}, metrics.Files{"a.go": rs(1, 2)}, "")).To(BeNumerically("==", 0.0))
		Expect(metrics.FileRecall(metrics.Files{}, metrics.Files{"a.go": rs(1, 2)}, "")).To(BeNumerically("==", 0.0))
	})
})

var _ = Describe("line precision variants and IoU", func() {
	It("computes matched-only line precision without penalizing unrelated files", func() {
		returned := metrics.Files{"a.go": rs(1, 10), "unrelated.go": rs(1, 100)}
		gt := metrics.Files{"a.go": rs(1, 10)}

		Expect(metrics.LinePrecisionMatched(returned, gt, "")).To(BeNumerically("==", 1.0))
		Expect(metrics.LinePrecision(returned, gt, "")).To(BeNumerically("<", 1.0))
	})

	It("computes IoU over matched files only", func() {
		returned := metrics.Files{"a.go": rs(1, 10)}
		gt := metrics.Files{"a.go": rs(6, 15)}
		// intersection = [6,10] = 5 lines; union = 10+10-5 = 15
		Expect(metrics.LineIoUMatched(returned, gt, "")).To(BeNumerically("~", 5.0/15.0, 1e-9))
	})
})

var _ = Describe("function hits", func() {
	It("counts a hit when any returned line overlaps the target function", func() {
		returned := metrics.Files{"a.go": rs(8, 12)}
		targets := []dataset.FunctionTarget{
			{Path: "a.go", Name: "Foo", Ranges: rs(1, 10)},
			{Path: "b.go", Name: "Bar", Ranges: rs(1, 10)},
		}
		hits, total := metrics.FunctionHits(returned, targets, "")
		Expect(total).To(Equal(2))
		Expect(hits).To(Equal(1))
	})
})

var _ = Describe("Fβ and joint score", func() {
	It("matches Fβ=(1+β²)PR/(β²P+R) for β=1 balanced precision/recall", func() {
		Expect(metrics.FBeta(0.8, 0.8, 1.0)).To(BeNumerically("~", 0.8, 1e-9))
	})

	It("returns 0 when both precision and recall are 0", func() {
		Expect(metrics.FBeta(0, 0, 1.0)).To(BeNumerically("==", 0.0))
	})

	It("weights precision more heavily as β decreases below 1", func() {
		high := metrics.FBeta(0.9, 0.5, 0.5)
		low := metrics.FBeta(0.9, 0.5, 2.0)
		Expect(high).To(BeNumerically(">", low))
	})

	It("defaults file_weight to 0.5 and returns 1.0 on a perfect match", func() {
		returned := metrics.Files{"a.go": rs(1, 10)}
		gt := metrics.Files{"a.go": rs(1, 10)}
		score := metrics.JointFBeta(returned, gt, 1.0, 0, "")
		Expect(score.JointF).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("keeps joint score at 1.0 regardless of file_weight on a perfect match", func() {
		returned := metrics.Files{"a.go": rs(1, 10)}
		gt := metrics.Files{"a.go": rs(1, 10)}
		Expect(metrics.JointFBeta(returned, gt, 1.0, 0.9, "").JointF).To(BeNumerically("~", 1.0, 1e-9))
		Expect(metrics.JointFBeta(returned, gt, 1.0, 0.1, "").JointF).To(BeNumerically("~", 1.0, 1e-9))
	})
})
