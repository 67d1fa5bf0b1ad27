package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDetail(rr, "Video not found", http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"detail":"Video not found"}`, rr.Body.String())
}

func TestFormatText(t *testing.T) {
	input := "This is a test. This is only a test!"
	expected := "This is a test.\n This is only a test!\n"
	assert.Equal(t, expected, FormatText(input))
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{5.9, "0:05"},
		{65, "1:05"},
		{599, "9:59"},
		{3600, "1:00:00"},
		{3725.5, "1:02:05"},
		{-3, "0:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSeconds(tt.in))
		})
	}

	assert.Equal(t, "0:12-1:30", FormatRange(12.5, 90))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hel...", Truncate("hello world", 6))
	assert.Equal(t, "hé", Truncate("héllo", 2))
	assert.Equal(t, "anything", Truncate("anything", 0))
}
