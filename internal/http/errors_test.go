package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"swipestats/internal/export"
	"swipestats/internal/profiles"
)

func Test_classifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no app opens", export.ErrNoAppOpens, http.StatusBadRequest, "NO_APP_OPENS"},
		{"malformed date", fmt.Errorf("build: %w", &export.DateError{Field: "User.birth_date", Value: "x"}), http.StatusBadRequest, "MALFORMED_DATE"},
		{"invalid export", fmt.Errorf("%w: eof", export.ErrInvalidExport), http.StatusBadRequest, "INVALID_EXPORT"},
		{"unknown metric", fmt.Errorf("%w: %q", profiles.ErrUnknownMetric, "x"), http.StatusBadRequest, "INVALID_METRIC"},
		{"missing profile", profiles.ErrProfileNotFound, http.StatusNotFound, "PROFILE_NOT_FOUND"},
		{"no peers", profiles.ErrNotEnoughPeers, http.StatusUnprocessableEntity, "NOT_ENOUGH_PEERS"},
		{"restored", fmt.Errorf("%w: disk full", profiles.ErrRestoredFromOriginal), http.StatusConflict, "UPDATE_REJECTED"},
		{"anything else", errors.New("database is locked"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := classifyError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
