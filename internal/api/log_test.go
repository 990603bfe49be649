package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storymap/pkg/logging"
)

func TestFormatLogLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "params sorted and long values dropped",
			input: `time=2026-03-02T06:50:46.074+01:00 level=INFO msg="Audio generation finished" component=api story=0f8fad5b-d9cb-469f-a165-70867728950e status=partial generated=3`,
			want:  "06:50:46 Audio generation finished (component=api, generated=3, status=partial)",
		},
		{
			name:  "no params",
			input: `time=2026-03-02T21:05:00Z level=WARN msg=Ready`,
			want:  "21:05:00 Ready",
		},
		{
			name:  "not a slog line",
			input: "plain text",
			want:  "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLogLine(tt.input); got != tt.want {
				t.Errorf("formatLogLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleLatestLog(t *testing.T) {
	_, _ = logging.Recent.Write([]byte("time=2026-03-02T10:00:00Z level=INFO msg=first\n" +
		"time=2026-03-02T10:00:01Z level=INFO msg=second\n"))

	rec := httptest.NewRecorder()
	handleLatestLog(rec, httptest.NewRequest(http.MethodGet, "/api/log/latest?lines=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp latestLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10:00:01 second", resp.Log)
	assert.Equal(t, []string{"10:00:00 first", "10:00:01 second"}, resp.Lines)

	rec = httptest.NewRecorder()
	handleLatestLog(rec, httptest.NewRequest(http.MethodGet, "/api/log/latest?lines=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
