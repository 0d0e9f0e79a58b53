package githubrepo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v58/github"

	apperrors "github.com/jun/repocms/internal/errors"
)

// errorDetails is GitHub's error payload as passed through to clients.
type errorDetails struct {
	Status           int            `json:"status,omitempty"`
	Message          string         `json:"message"`
	Errors           []github.Error `json:"errors,omitempty"`
	DocumentationURL string         `json:"documentation_url,omitempty"`
}

// classify maps a go-github error onto the error taxonomy. No call is retried.
func classify(err error, op string) error {
	var (
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
		ghErr    *github.ErrorResponse
	)
	switch {
	case errors.As(err, &rateErr):
		return apperrors.Upstream(err, op+": rate limit exceeded").WithDetails(map[string]any{
			"message": rateErr.Message,
			"reset":   rateErr.Rate.Reset.Time,
		})
	case errors.As(err, &abuseErr):
		return apperrors.Upstream(err, op+": secondary rate limit").WithDetails(errorDetails{
			Message: abuseErr.Message,
		})
	case errors.As(err, &ghErr):
		status := 0
		if ghErr.Response != nil {
			status = ghErr.Response.StatusCode
		}
		details := errorDetails{
			Status:           status,
			Message:          ghErr.Message,
			Errors:           ghErr.Errors,
			DocumentationURL: ghErr.DocumentationURL,
		}
		msg := fmt.Sprintf("%s: github returned %d", op, status)
		switch {
		case status == http.StatusNotFound:
			return apperrors.Wrap(apperrors.KindNotFound, err, msg).WithDetails(details)
		case status == http.StatusConflict, status == http.StatusUnprocessableEntity && mentionsSHA(ghErr):
			return apperrors.Wrap(apperrors.KindConflict, err, msg).WithDetails(details)
		default:
			return apperrors.Upstream(err, msg).WithDetails(details)
		}
	default:
		return apperrors.Upstream(err, op)
	}
}

func mentionsSHA(e *github.ErrorResponse) bool {
	if strings.Contains(strings.ToLower(e.Message), "sha") {
		return true
	}
	for _, fe := range e.Errors {
		if fe.Field == "sha" {
			return true
		}
	}
	return false
}
