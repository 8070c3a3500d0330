// Package token decodes access-token claims without verifying the
// signature. The tokens are issued by the Invo API itself, so the SDK
// only reads them to drive expiry decisions; it is not a verifier.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/invohq/invo-go/autherr"
)

// Claims holds the subset of token claims the SDK acts on. Raw carries
// everything else the server put in the payload.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt int64 // unix seconds
	IssuedAt  int64 // unix seconds
	Raw       jwtlib.MapClaims
}

// Decode extracts the claim payload from a compact JWS string. The
// signature segment is ignored. A token with fewer than two segments, an
// undecodable payload, or a missing or non-numeric exp claim fails with
// a malformed-token error.
func Decode(raw string) (Claims, error) {
	if strings.Count(raw, ".") < 1 {
		return Claims{}, autherr.New(autherr.KindMalformedToken, "token does not have enough segments")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return Claims{}, autherr.Wrap(autherr.KindMalformedToken, err, "token payload cannot be decoded")
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return Claims{}, autherr.New(autherr.KindMalformedToken, "token claims are not an object")
	}

	exp, ok := numericClaim(mapClaims, "exp")
	if !ok {
		return Claims{}, autherr.New(autherr.KindMalformedToken, "token has no numeric exp claim")
	}

	claims := Claims{ExpiresAt: exp, Raw: mapClaims}
	claims.Subject, _ = mapClaims["sub"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	if iat, ok := numericClaim(mapClaims, "iat"); ok {
		claims.IssuedAt = iat
	}
	return claims, nil
}

// IsExpired reports whether the token expires within skew of now. A
// token that cannot be decoded counts as expired, so a broken token
// always pushes the session toward re-authentication rather than being
// trusted.
func IsExpired(raw string, skew time.Duration, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	return claims.ExpiresAt < now.Add(skew).Unix()
}

// SecondsUntilExpiry returns how long the token remains valid, floored
// at zero. A token that cannot be decoded yields zero.
func SecondsUntilExpiry(raw string, now time.Time) int64 {
	claims, err := Decode(raw)
	if err != nil {
		return 0
	}
	remaining := claims.ExpiresAt - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// numericClaim reads a claim that JSON decoding may have produced as
// float64 or json.Number depending on the parser configuration.
func numericClaim(claims jwtlib.MapClaims, name string) (int64, bool) {
	switch v := claims[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
