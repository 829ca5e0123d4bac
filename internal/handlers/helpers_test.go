package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/services/documents"
	"github.com/ternarybob/handoff/internal/services/editor"
	"github.com/ternarybob/handoff/internal/services/rewrite"
	"github.com/ternarybob/handoff/internal/services/tracker"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{interfaces.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", interfaces.ErrNotFound), http.StatusNotFound},
		{editor.ErrSessionNotFound, http.StatusNotFound},
		{interfaces.ErrVersionConflict, http.StatusConflict},
		{editor.ErrBusy, http.StatusConflict},
		{tracker.ErrSaveInFlight, http.StatusConflict},
		{rewrite.ErrRewriteBusy, http.StatusConflict},
		{documents.ErrInvalidRequest, http.StatusBadRequest},
		{tracker.ErrSaveNotAllowed, http.StatusBadRequest},
		{rewrite.ErrEmptyInstruction, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForError(tt.err), tt.err.Error())
	}
}

func TestPathSegments(t *testing.T) {
	assert.Equal(t, []string{"abc", "records"}, PathSegments("/api/patients/abc/records/", "/api/patients/"))
	assert.Nil(t, PathSegments("/api/patients/", "/api/patients/"))
}
