// Package credential issues and validates signed check-in tokens.
//
// A token proves that a registration is entitled to check in to a specific
// event. The current format is four colon-separated fields:
//
//	<registrationID>:<eventID>:<unixSeconds>:<base64(HMAC-SHA256 signature)>
//
// where the signature covers "<registrationID>:<eventID>:<unixSeconds>".
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Service signs and verifies check-in tokens with a shared HMAC secret.
// Stateless apart from the key; safe for concurrent use.
type Service struct {
	secret []byte
}

// NewService creates a credential service with the given secret key.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// Issue returns a signed token for the registration and event. The issue
// timestamp has second resolution, so two calls with the same inputs within
// the same second produce identical tokens.
func (s *Service) Issue(registrationID, eventID int64) string {
	return s.issueAt(registrationID, eventID, time.Now().Unix())
}

func (s *Service) issueAt(registrationID, eventID, issuedAt int64) string {
	data := fmt.Sprintf("%d:%d:%d", registrationID, eventID, issuedAt)
	return data + ":" + base64.StdEncoding.EncodeToString(s.sign(data))
}

// Validate checks a token and returns the embedded registration and event
// IDs. It returns (false, 0, 0) if the field count is wrong, an ID does not
// parse, or the signature does not verify.
//
// Tokens issued before signing carried only three fields
// (<registrationID>:<eventID>:<base64 signature>) with the signed timestamp
// not embedded, so their signature cannot be recomputed. Such tokens are
// accepted with the IDs parsed but the signature unchecked. This is a
// backward-compatibility path only; callers must not treat it as proof of
// authenticity and should cross-check the token against stored state.
func (s *Service) Validate(token string) (valid bool, registrationID, eventID int64) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 && len(parts) != 4 {
		return false, 0, 0
	}
	registrationID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false, 0, 0
	}
	eventID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return false, 0, 0
	}

	if len(parts) == 3 {
		// Legacy unsigned-format fallback, see doc comment above.
		return true, registrationID, eventID
	}

	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return false, 0, 0
	}
	supplied, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, 0, 0
	}
	expected := s.sign(strings.Join(parts[:3], ":"))
	if !hmac.Equal(supplied, expected) {
		return false, 0, 0
	}
	return true, registrationID, eventID
}

func (s *Service) sign(data string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
