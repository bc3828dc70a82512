package http

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"Naly/pkg/apperr"
)

func TestFromDomainErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.InsufficientData("short"), http.StatusUnprocessableEntity},
		{apperr.RateLimited(time.Now()), http.StatusTooManyRequests},
		{apperr.APIConnection(503, true, "down"), http.StatusBadGateway},
		{apperr.MissingConfiguration("causal"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := FromDomainError(tc.err).Status; got != tc.want {
			t.Fatalf("%v: got %d want %d", tc.err, got, tc.want)
		}
	}
}

func TestFromDomainErrorKeepsMetadata(t *testing.T) {
	got := FromDomainError(apperr.Analysis("evt-1", errors.New("boom")))
	if got.Params["event_id"] != "evt-1" || got.Code != "ERR_ANALYSIS_ERROR" {
		t.Fatalf("unexpected %+v", got)
	}
}
