package telephony

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func parseToken(t *testing.T, signed, secret string) *tokenClaims {
	t.Helper()
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !token.Valid {
		t.Fatal("token not valid")
	}
	return claims
}

func TestAccessToken(t *testing.T) {
	t.Parallel()
	signed, err := AccessToken("api-key", "api-secret", "agent-1", &RoomGrant{RoomJoin: true, Room: "outbound-call-1"}, time.Minute)
	if err != nil {
		t.Fatalf("AccessToken error: %v", err)
	}

	claims := parseToken(t, signed, "api-secret")
	if claims.Issuer != "api-key" {
		t.Errorf("issuer = %q, want api key", claims.Issuer)
	}
	if claims.Subject != "agent-1" {
		t.Errorf("subject = %q, want identity", claims.Subject)
	}
	if claims.Grant == nil || !claims.Grant.RoomJoin || claims.Grant.Room != "outbound-call-1" {
		t.Errorf("grant = %+v, want room join grant", claims.Grant)
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != time.Minute {
		t.Errorf("ttl = %v, want 1m", ttl)
	}
}

func TestAccessToken_DefaultTTL(t *testing.T) {
	t.Parallel()
	signed, err := AccessToken("api-key", "api-secret", "", adminGrant(), 0)
	if err != nil {
		t.Fatalf("AccessToken error: %v", err)
	}

	claims := parseToken(t, signed, "api-secret")
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 10*time.Minute {
		t.Errorf("default ttl = %v, want 10m", ttl)
	}
	if claims.Grant == nil || !claims.Grant.RoomAdmin || !claims.Grant.RoomCreate || !claims.Grant.RoomList {
		t.Errorf("grant = %+v, want full admin grant", claims.Grant)
	}
}

func TestAccessToken_WrongSecretRejected(t *testing.T) {
	t.Parallel()
	signed, err := AccessToken("api-key", "api-secret", "", adminGrant(), time.Minute)
	if err != nil {
		t.Fatalf("AccessToken error: %v", err)
	}

	claims := &tokenClaims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return []byte("other-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}
