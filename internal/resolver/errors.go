package resolver

import (
	"fmt"
	"net/http"
	"strings"
)

// Reason classifies why resolution failed
type Reason string

const (
	ReasonMissing   Reason = "missing"
	ReasonMalformed Reason = "malformed"
	ReasonNotFound  Reason = "not_found"
	ReasonAmbiguous Reason = "ambiguous"
)

// ResolutionError is returned when no strategy produced an event
type ResolutionError struct {
	Reason  Reason
	Summary string
	Detail  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Summary, e.Detail)
}

// Status is the HTTP status for the failure: 404 when a well-formed id
// was supplied but no such event exists, otherwise 400
func (e *ResolutionError) Status() int {
	if e.Reason == ReasonNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// failure picks the most specific reason among the declined attempts
func failure(attempts []attempt, header string) *ResolutionError {
	var notFound, malformed, ambiguous []attempt
	for _, a := range attempts {
		switch a.reason {
		case ReasonNotFound:
			notFound = append(notFound, a)
		case ReasonMalformed:
			malformed = append(malformed, a)
		case ReasonAmbiguous:
			ambiguous = append(ambiguous, a)
		}
	}

	switch {
	case len(notFound) > 0:
		return &ResolutionError{
			Reason:  ReasonNotFound,
			Summary: "Event not found",
			Detail:  "no event with id " + describe(notFound),
		}
	case len(malformed) > 0:
		return &ResolutionError{
			Reason:  ReasonMalformed,
			Summary: "Invalid event id",
			Detail:  "event id is not a valid UUID: " + describe(malformed),
		}
	case len(ambiguous) > 0:
		return &ResolutionError{
			Reason:  ReasonAmbiguous,
			Summary: "Event context required",
			Detail:  fmt.Sprintf("%s events are active; select one with the %s header", ambiguous[0].value, header),
		}
	default:
		return &ResolutionError{
			Reason:  ReasonMissing,
			Summary: "Event context required",
			Detail: fmt.Sprintf("no event in the path, the %s header or the ?%s= parameter, and no active event",
				header, QueryParam),
		}
	}
}

func describe(attempts []attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = fmt.Sprintf("%q (%s)", a.value, a.strategy)
	}
	return strings.Join(parts, ", ")
}
