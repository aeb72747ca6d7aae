package logging

import "context"

type contextKey string

const fieldsKey contextKey = "logging_fields"

// Fields carries structured, request-scoped identifiers that
// TraceHandler attaches to every log record emitted within a context:
// the benchmark case, its repo, the enclosing run, and the component
// that's logging, named for this domain (case_id/repo/run_id/component)
// rather than the teacher's relay-specific field set.
type Fields struct {
	CaseID    string
	Repo      string
	RunID     string
	Component string
}

// WithFields enriches ctx with fields, merging over any fields already
// present (non-empty values in fields take precedence).
func WithFields(ctx context.Context, fields Fields) context.Context {
	merged := mergeFields(GetFields(ctx), fields)
	return context.WithValue(ctx, fieldsKey, merged)
}

// GetFields retrieves the Fields stored in ctx, or a zero Fields if none.
func GetFields(ctx context.Context) Fields {
	if fields, ok := ctx.Value(fieldsKey).(Fields); ok {
		return fields
	}
	return Fields{}
}

func mergeFields(existing, next Fields) Fields {
	result := existing
	if next.CaseID != "" {
		result.CaseID = next.CaseID
	}
	if next.Repo != "" {
		result.Repo = next.Repo
	}
	if next.RunID != "" {
		result.RunID = next.RunID
	}
	if next.Component != "" {
		result.Component = next.Component
	}
	return result
}
