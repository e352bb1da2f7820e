package query

import (
	"fmt"
	"strings"
)

const (
	DefaultLimit = 100
	MaxLimit     = 10000
)

// sortFields maps the accepted sort_by values onto the indexed fields.
var sortFields = map[string]string{
	"timestamp": "timestamp",
	"level":     "level",
	"source":    "source",
	"file":      "file_id",
	"log_type":  "log_type",
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// validatedQuery is a LogQueryRequest with defaults applied and every field
// checked, ready for the query builder.
type validatedQuery struct {
	request   LogQueryRequest
	limit     int
	offset    int
	sortField string
	sortOrder string
}

func validate(request LogQueryRequest) (validatedQuery, error) {
	validated := validatedQuery{
		request:   request,
		limit:     DefaultLimit,
		offset:    0,
		sortField: "timestamp",
		sortOrder: "desc",
	}

	if request.Limit != nil {
		if *request.Limit < 0 {
			return validatedQuery{}, &ValidationError{Field: "limit", Reason: "must not be negative"}
		}
		validated.limit = *request.Limit
		if validated.limit > MaxLimit {
			// Silently capped rather than rejected.
			validated.limit = MaxLimit
		}
	}

	if request.Offset != nil {
		if *request.Offset < 0 {
			return validatedQuery{}, &ValidationError{Field: "offset", Reason: "must not be negative"}
		}
		validated.offset = *request.Offset
	}

	if request.SortBy != nil {
		field, ok := sortFields[strings.ToLower(*request.SortBy)]
		if !ok {
			return validatedQuery{}, &ValidationError{
				Field:  "sort_by",
				Reason: fmt.Sprintf("must be one of timestamp, level, source, file, log_type; got %q", *request.SortBy),
			}
		}
		validated.sortField = field
	}

	if request.SortOrder != nil {
		order := strings.ToLower(*request.SortOrder)
		if order != "asc" && order != "desc" {
			return validatedQuery{}, &ValidationError{
				Field:  "sort_order",
				Reason: fmt.Sprintf("must be asc or desc; got %q", *request.SortOrder),
			}
		}
		validated.sortOrder = order
	}

	if request.StartTime != nil && request.EndTime != nil && request.EndTime.Before(*request.StartTime) {
		return validatedQuery{}, &ValidationError{Field: "start_time", Reason: "start_time is after end_time"}
	}

	if request.Level != nil {
		upper := strings.ToUpper(*request.Level)
		validated.request.Level = &upper
	}

	return validated, nil
}
