package authresults

import (
	"testing"

	"github.com/emersion/go-msgauth/authres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-phish-filter/internal/scoring"
)

func TestFromHeadersNoHeader(t *testing.T) {
	assert.Nil(t, FromHeaders(nil, nil))
}

func TestFromHeadersAllPass(t *testing.T) {
	auth := FromHeaders([]string{
		"mx.example.com; dkim=pass header.d=example.com; spf=pass smtp.mailfrom=alice@example.com; dmarc=pass header.from=example.com",
	}, nil)
	require.NotNil(t, auth)

	assert.Equal(t, scoring.StatusPass, auth.DKIM.Status)
	assert.Equal(t, scoring.StatusPass, auth.SPF.Status)
	assert.Equal(t, scoring.StatusPass, auth.DMARC.Status)
	assert.Contains(t, auth.DKIM.Details, "mx.example.com")
	assert.Contains(t, auth.DKIM.Details, "d=example.com")
}

func TestFromHeadersFailures(t *testing.T) {
	auth := FromHeaders([]string{
		"mx.example.com; dkim=fail header.d=paypa1.com; spf=softfail smtp.mailfrom=billing@paypa1.com; dmarc=fail header.from=paypa1.com",
	}, nil)
	require.NotNil(t, auth)

	assert.Equal(t, scoring.StatusFail, auth.DKIM.Status)
	assert.Equal(t, scoring.StatusFail, auth.SPF.Status)
	assert.Equal(t, scoring.StatusFail, auth.DMARC.Status)
}

func TestFromHeadersFirstVerdictWins(t *testing.T) {
	auth := FromHeaders([]string{
		"mx.example.com; spf=pass smtp.mailfrom=alice@example.com",
		"relay.example.net; spf=fail smtp.mailfrom=alice@example.com; dkim=neutral header.d=example.com",
	}, nil)
	require.NotNil(t, auth)

	assert.Equal(t, scoring.StatusPass, auth.SPF.Status)
	assert.Equal(t, scoring.StatusNeutral, auth.DKIM.Status)
	assert.Equal(t, scoring.StatusUnknown, auth.DMARC.Status)
}

func TestFromHeadersUnparseable(t *testing.T) {
	auth := FromHeaders([]string{"; ; ;"}, nil)
	require.NotNil(t, auth)
	assert.Equal(t, scoring.UnknownAuthentication(), auth)
}

func TestMapStatus(t *testing.T) {
	tests := map[authres.ResultValue]string{
		authres.ResultPass:      scoring.StatusPass,
		authres.ResultFail:      scoring.StatusFail,
		authres.ResultSoftFail:  scoring.StatusFail,
		authres.ResultHardFail:  scoring.StatusFail,
		authres.ResultNeutral:   scoring.StatusNeutral,
		authres.ResultNone:      scoring.StatusNeutral,
		authres.ResultTempError: scoring.StatusUnknown,
		authres.ResultPermError: scoring.StatusUnknown,
		"":                      scoring.StatusUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, MapStatus(in), "value %q", in)
	}
}
