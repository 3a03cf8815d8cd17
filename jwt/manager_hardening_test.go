package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	cfg.SigningMethod = MethodHS256
	if cfg.PrivateKey == nil {
		cfg.PrivateKey = testSecret
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueCarriesSubjectKindAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := newHSManager(t, Config{Now: func() time.Time { return now }})

	token, err := m.Issue("alice@co.com", "COMPANY")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(token, "alice@co.com")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "alice@co.com" || claims.Kind != "COMPANY" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("iat = %v, want %v", claims.IssuedAt.Time, now)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("exp = %v, want now+24h", claims.ExpiresAt.Time)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestVerifyRejectsDifferentSubject(t *testing.T) {
	m := newHSManager(t, Config{})
	token, err := m.Issue("a@x.com", "COMPANY")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token, "b@x.com"); !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected ErrSubjectMismatch, got %v", err)
	}
	if _, err := m.Verify(token, ""); !errors.Is(err, ErrSubjectMismatch) {
		t.Fatalf("expected empty expected subject to fail, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	now := time.Now()
	issuer := newHSManager(t, Config{TTL: time.Hour, Now: func() time.Time { return now.Add(-2 * time.Hour) }})
	token, err := issuer.Issue("a@x.com", "API")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	verifier := newHSManager(t, Config{TTL: time.Hour})
	if _, err := verifier.Verify(token, "a@x.com"); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	m := newHSManager(t, Config{})
	other := newHSManager(t, Config{PrivateKey: []byte("another-secret-another-secret-xx")})
	token, err := other.Issue("a@x.com", "COMPANY")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(token, "a@x.com"); err == nil {
		t.Fatal("expected foreign signature to fail")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{Kind: "COMPANY", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseRequiresExpiry(t *testing.T) {
	m := newHSManager(t, Config{})
	claims := Claims{Kind: "API", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:  "robot",
		IssuedAt: gjwt.NewNumericDate(time.Now()),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "fleetauth",
		Audience:      "fleet-api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, err := m.Issue("a@x.com", "COMPANY")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func(iss, aud string, exp, iat time.Duration) Claims {
		return Claims{Kind: "COMPANY", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "a@x.com",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(iat)),
		}}
	}

	if _, err := m.Parse(sign(base("other", "fleet-api", time.Minute, 0))); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign(base("fleetauth", "other-api", time.Minute, 0))); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.Parse(sign(base("fleetauth", "fleet-api", -15*time.Second, -time.Minute))); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(sign(base("fleetauth", "fleet-api", -2*time.Minute, -3*time.Minute))); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestRotatedKeyStillVerifies(t *testing.T) {
	oldKey := []byte("old-secret-old-secret-old-secret")
	newKey := []byte("new-secret-new-secret-new-secret")

	before := newHSManager(t, Config{PrivateKey: oldKey, KeyID: "k1"})
	token, err := before.Issue("robot", "API")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	after := newHSManager(t, Config{
		PrivateKey: newKey,
		KeyID:      "k2",
		VerifyKeys: map[string][]byte{"k1": oldKey, "k2": newKey},
	})
	if _, err := after.Verify(token, "robot"); err != nil {
		t.Fatalf("expected token signed with retired key to verify: %v", err)
	}

	fresh, err := after.Issue("robot", "API")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := after.Verify(fresh, "robot"); err != nil {
		t.Fatalf("expected token signed with current key to verify: %v", err)
	}

	retired := newHSManager(t, Config{
		PrivateKey: newKey,
		KeyID:      "k2",
		VerifyKeys: map[string][]byte{"k2": newKey},
	})
	if _, err := retired.Verify(token, "robot"); err == nil {
		t.Fatal("expected token for removed kid to fail")
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "a@x.com",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	tok2 := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok2.Header["kid"] = "k1"
	good, _ := tok2.SignedString(priv1)
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Parse(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{TTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{TTL: time.Hour, SigningMethod: MethodHS256},
		{TTL: time.Hour, SigningMethod: "rs256", PrivateKey: testSecret},
		{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
		{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret, KeyID: "k3", VerifyKeys: map[string][]byte{"k1": testSecret}},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}
