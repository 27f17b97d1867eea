package credential

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueValidateRoundTrip(t *testing.T) {
	svc := NewService("test-secret")

	for _, tc := range []struct{ registrationID, eventID int64 }{
		{1, 1},
		{42, 7},
		{987654321, 123456789},
	} {
		token := svc.Issue(tc.registrationID, tc.eventID)
		valid, rid, eid := svc.Validate(token)
		assert.True(t, valid, "token %q", token)
		assert.Equal(t, tc.registrationID, rid)
		assert.Equal(t, tc.eventID, eid)
	}
}

func TestIssueDeterministicWithinSecond(t *testing.T) {
	svc := NewService("test-secret")

	a := svc.issueAt(42, 7, 1700000000)
	b := svc.issueAt(42, 7, 1700000000)
	c := svc.issueAt(42, 7, 1700000001)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTokenFormat(t *testing.T) {
	svc := NewService("test-secret")

	token := svc.issueAt(42, 7, 1700000000)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 4)
	assert.Equal(t, "42", parts[0])
	assert.Equal(t, "7", parts[1])
	assert.Equal(t, "1700000000", parts[2])
	assert.NotEmpty(t, parts[3])
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	svc := NewService("test-secret")
	token := svc.issueAt(42, 7, 1700000000)

	sigStart := strings.LastIndex(token, ":") + 1
	for i := sigStart; i < len(token); i++ {
		flipped := []byte(token)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		valid, rid, eid := svc.Validate(string(flipped))
		assert.False(t, valid, "flipped byte at %d", i)
		assert.Zero(t, rid)
		assert.Zero(t, eid)
	}
}

func TestValidateRejectsForeignKey(t *testing.T) {
	issuer := NewService("secret-one")
	verifier := NewService("secret-two")

	token := issuer.Issue(42, 7)
	valid, rid, eid := verifier.Validate(token)
	assert.False(t, valid)
	assert.Zero(t, rid)
	assert.Zero(t, eid)
}

func TestValidateRejectsMalformed(t *testing.T) {
	svc := NewService("test-secret")

	for _, token := range []string{
		"",
		"42",
		"42:7",
		"42:7:1700000000:sig:extra",
		"abc:7:1700000000:c2ln",
		"42:xyz:1700000000:c2ln",
		"42:7:notatime:c2ln",
		"42:7:1700000000:%%%not-base64%%%",
	} {
		valid, rid, eid := svc.Validate(token)
		assert.False(t, valid, "token %q", token)
		assert.Zero(t, rid)
		assert.Zero(t, eid)
	}
}

func TestValidateLegacyThreeFieldToken(t *testing.T) {
	svc := NewService("test-secret")

	// Legacy tokens omit the timestamp, so the signature is unverifiable
	// and the IDs are returned as-is.
	valid, rid, eid := svc.Validate("42:7:b3BhcXVlLXNpZ25hdHVyZQ==")
	assert.True(t, valid)
	assert.Equal(t, int64(42), rid)
	assert.Equal(t, int64(7), eid)

	valid, rid, eid = svc.Validate("nope:7:b3BhcXVlLXNpZ25hdHVyZQ==")
	assert.False(t, valid)
	assert.Zero(t, rid)
	assert.Zero(t, eid)
}

func TestQRImage(t *testing.T) {
	svc := NewService("test-secret")
	png, err := QRImage(svc.Issue(42, 7))
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", fmt.Sprintf("%s", png[:4]))
}
