package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waterops/waterops/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("order 4: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: qty_empty_in exceeds qty_full_out", shared.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: order already final", shared.ErrConflict), http.StatusConflict},
		{shared.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.status, body.Status)
		if tc.status == http.StatusInternalServerError {
			assert.Empty(t, body.Detail)
		} else {
			assert.Equal(t, tc.err.Error(), body.Detail)
		}
	}
}

func TestResultsNeverEncodesNull(t *testing.T) {
	rec := httptest.NewRecorder()
	Results[int](rec, nil, nil)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestDecodeJSONWrapsValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	var dst map[string]any
	err := DecodeJSON(req, &dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
