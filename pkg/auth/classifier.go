package auth

import (
	"encoding/base64"
	"strings"
)

// DefaultExternalIssuerMarker is the substring looked for in federated token
// payloads. Both the v1 (sts.windows.net) and v2 (login.microsoftonline.com)
// Entra issuer formats contain it.
const DefaultExternalIssuerMarker = "microsoftonline"

// Classifier decides which authentication path a bearer token belongs to by
// inspecting its payload, without verifying the signature. Verification is
// the job of whichever path the token is routed to; the classifier only
// routes.
//
// Classification is deliberately asymmetric: anything ambiguous, malformed,
// or undecodable classifies as External, because the external path performs
// full cryptographic verification while the local path trusts its own codec
// once entered. A misrouted genuine local token merely fails external
// verification; a misrouted forged token must never reach the local path.
type Classifier struct {
	localMarker    string
	externalMarker string
}

// NewClassifier creates a Classifier. localMarker is the issuer string the
// local codec embeds in its tokens, defaulting to the codec's default
// issuer when empty; externalMarker is a substring of the federated
// provider's issuer URL, defaulting to [DefaultExternalIssuerMarker] when
// empty. An empty localMarker must never reach Classify: Contains matches
// the empty string against everything, which would route every token to
// the local path.
func NewClassifier(localMarker, externalMarker string) *Classifier {
	if localMarker == "" {
		localMarker = DefaultCodecConfig().Issuer
	}
	if externalMarker == "" {
		externalMarker = DefaultExternalIssuerMarker
	}
	return &Classifier{localMarker: localMarker, externalMarker: externalMarker}
}

// Classify returns the authentication path for a raw bearer token. It never
// fails; any token it cannot positively identify as local is External.
func (c *Classifier) Classify(raw string) Source {
	payload, ok := decodePayload(raw)
	if !ok {
		return SourceExternal
	}
	if strings.Contains(payload, c.localMarker) {
		return SourceLocal
	}
	if strings.Contains(payload, c.externalMarker) {
		return SourceExternal
	}
	// Neither marker present: still External, the path that verifies
	// before trusting.
	return SourceExternal
}

// decodePayload extracts and base64url-decodes the second dot-separated
// segment of a compact token. The decoded bytes are treated as loose text,
// not parsed as JSON, so a structurally damaged payload that still carries
// the issuer marker classifies correctly.
func decodePayload(raw string) (string, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
