package apierr

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obmatch/matchcore/internal/domain"
	"github.com/obmatch/matchcore/internal/matcher"
	"github.com/obmatch/matchcore/internal/router"
)

func TestFromRejectMapsKnownReasons(t *testing.T) {
	cases := []struct {
		reason domain.RejectReason
		code   Code
		status int
	}{
		{domain.ReasonValidation, CodeValidation, http.StatusUnprocessableEntity},
		{domain.ReasonUnknownPair, CodeUnknownPair, http.StatusNotFound},
		{domain.ReasonTickLotViolation, CodeTickLotViolation, http.StatusUnprocessableEntity},
		{domain.ReasonFillOrKill, CodeFillOrKill, http.StatusUnprocessableEntity},
		{domain.ReasonNotFound, CodeNotFound, http.StatusNotFound},
		{domain.ReasonUnauthorized, CodeUnauthorized, http.StatusForbidden},
		{domain.ReasonDuplicateClientID, CodeDuplicateClientID, http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		err := FromReject(c.reason, "detail")
		assert.Equal(t, c.code, err.Code, c.reason)
		assert.Equal(t, c.status, err.HTTPStatus(), c.reason)
	}
}

func TestFromRejectUnknownReasonFallsBackToValidation(t *testing.T) {
	err := FromReject(domain.RejectReason("SOMETHING_NEW"), "detail")
	assert.Equal(t, CodeValidation, err.Code)
}

func TestFromRouterErrNil(t *testing.T) {
	assert.Nil(t, FromRouterErr(nil))
}

func TestFromRouterErrQueueFullIsRetryable(t *testing.T) {
	err := FromRouterErr(router.ErrQueueFull)
	require.NotNil(t, err)
	assert.Equal(t, CodeQueueFull, err.Code)
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus())
	assert.True(t, IsRetryable(err))
}

func TestFromRouterErrPairHaltedIsNotRetryable(t *testing.T) {
	err := FromRouterErr(router.ErrPairHalted)
	require.NotNil(t, err)
	assert.Equal(t, CodePairHalted, err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.False(t, IsRetryable(err))
}

func TestFromRouterErrInvariantViolationMapsToPairHalted(t *testing.T) {
	err := FromRouterErr(&matcher.InvariantViolation{Pair: "BTC-USD", Detail: "journal write failed"})
	require.NotNil(t, err)
	assert.Equal(t, CodePairHalted, err.Code)
	assert.Equal(t, SeverityCritical, err.Severity)
}

func TestFromRouterErrUnknownMapsToInternal(t *testing.T) {
	err := FromRouterErr(assertErr{"boom"})
	require.NotNil(t, err)
	assert.Equal(t, CodeInternal, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.False(t, IsRetryable(err))
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
