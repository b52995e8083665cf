package conversation

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusBadRequest, KindValidation},
		{http.StatusConflict, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusTooManyRequests, KindTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &APIError{Status: tt.status})
			assert.Equal(t, tt.want, Classify(err))
		})
	}
	assert.Equal(t, KindTransient, Classify(errors.New("dial tcp: connection refused")))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(fmt.Errorf("x: %w", &APIError{Status: http.StatusConflict})))
	assert.False(t, IsConflict(&APIError{Status: http.StatusBadRequest}))
	assert.False(t, IsConflict(errors.New("conflict")))
}

func TestFailureFor_SingleAction(t *testing.T) {
	transient := &APIError{Status: http.StatusInternalServerError}
	missing := &APIError{Status: http.StatusNotFound}

	assert.Equal(t, ActionBackToList, FailureFor(OpLoadConversation, missing).Action)
	assert.Equal(t, ActionBackToList, FailureFor(OpEnsureRun, &ValidationError{Field: "mode", Reason: "bad"}).Action)
	assert.Equal(t, ActionRetryFetch, FailureFor(OpFetchFeedback, transient).Action)
	assert.Equal(t, ActionRetryGenerate, FailureFor(OpGenerateFeedback, transient).Action)
	assert.Equal(t, ActionBackToList, FailureFor(OpNextPersona, transient).Action)
	assert.NotEmpty(t, FailureFor(OpGenerateFeedback, transient).Message)
}
