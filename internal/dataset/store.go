package dataset

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
)

// LoadJSONL reads a DatasetCase JSONL file, one object per line. A
// malformed line is dropped with its error returned in skipped rather
// than aborting the whole load, matching the input-error policy of
// "drop the offending record with a structured warning; continue
// loading."
func LoadJSONL(path string) (cases []Case, skipped []error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var c Case
		if decodeErr := json.Unmarshal(line, &c); decodeErr != nil {
			skipped = append(skipped, errors.Wrapf(decodeErr, "dataset: line %d", lineNo))
			continue
		}
		if validateErr := validate(c); validateErr != nil {
			skipped = append(skipped, errors.Wrapf(validateErr, "dataset: line %d", lineNo))
			continue
		}
		cases = append(cases, c)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return cases, skipped, errors.Wrapf(scanErr, "dataset: scan %s", path)
	}

	return cases, skipped, nil
}

// validate rejects cases a complete implementation must never accept:
// an empty id, or empty hard_gt (per spec, "a case with empty hard_gt
// is not accepted into the dataset").
func validate(c Case) error {
	if c.ID == "" {
		return errors.New("missing id")
	}
	if len(c.HardGT) == 0 {
		return errors.New("empty hard_gt")
	}
	for _, gt := range c.HardGT {
		if gt.Range[1] < gt.Range[0] || gt.Range[0] < 1 {
			return errors.Newf("invalid range %v for %s.%s", gt.Range, gt.Path, gt.Function)
		}
	}
	return nil
}

// SaveJSONL writes cases as a newline-delimited JSON file, overwriting
// path if it exists. The file is append-only in spirit: callers that
// want append semantics should use AppendJSONL instead.
func SaveJSONL(path string, cases []Case) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return errors.Wrapf(err, "dataset: encode case %s", c.ID)
		}
	}
	return w.Flush()
}

// AppendJSONL appends a single case as one JSON line to path, creating
// the file if necessary. Used by pipeline stages that emit cases one
// at a time rather than batching the whole dataset in memory.
func AppendJSONL(path string, c Case) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "dataset: open %s for append", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	return enc.Encode(c)
}
