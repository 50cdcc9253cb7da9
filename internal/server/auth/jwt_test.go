package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestIssuer(t *testing.T, secret string, clock *fakeClock) *Issuer {
	t.Helper()
	i, err := NewIssuer([]byte(secret), time.Hour, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	return i
}

func TestIssueAndResolve_Success(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, "super-secret", clock)

	tok, err := i.Issue(Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"},
		Role:             models.RoleStudent,
		UserID:           7,
	})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clock.t = clock.t.Add(59 * time.Minute)
	claims, err := i.Resolve(tok)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if claims.Subject != "a@x.com" || claims.Role != models.RoleStudent || claims.UserID != 7 {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}
	wantExp := time.Date(2025, 5, 1, 13, 0, 0, 0, time.UTC)
	if !claims.ExpiresAt.Time.Equal(wantExp) {
		t.Fatalf("exp mismatch: got %v want %v", claims.ExpiresAt.Time, wantExp)
	}
}

func TestIssue_UniqueTokenIDs(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k", &fakeClock{t: time.Now()})
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"}, Role: models.RoleAdmin}

	a, err := i.Issue(c)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	b, err := i.Issue(c)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if a == b {
		t.Fatalf("two tokens minted at the same instant must differ by jti")
	}
}

func TestIssue_MissingSubject(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k", &fakeClock{t: time.Now()})
	if _, err := i.Issue(Claims{Role: models.RoleAdmin}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer(nil, time.Hour); !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewIssuer_DefaultValidity(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer([]byte("k"), 0)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	if i.Validity() != DefaultTokenValidity {
		t.Fatalf("validity: got %v want %v", i.Validity(), DefaultTokenValidity)
	}
}

func TestResolve_Expired(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, "secret", clock)

	tok, err := i.Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1@x.com"}, Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	clock.t = clock.t.Add(61 * time.Minute)
	if _, err := i.Resolve(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestResolve_WrongSecret(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	tok, err := newTestIssuer(t, "right-secret", clock).Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u2@x.com"}, Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := newTestIssuer(t, "wrong-secret", clock).Resolve(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for invalid signature, got %v", err)
	}
}

func TestResolve_MalformedString(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k", &fakeClock{t: time.Now()})
	for _, tok := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		if _, err := i.Resolve(tok); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", tok, err)
		}
	}
}

func TestResolve_TamperedSignature(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k", &fakeClock{t: time.Now()})
	tok, err := i.Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"}, Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	for pos := strings.LastIndex(tok, ".") + 1; pos < len(tok)-1; pos += 5 {
		b := []byte(tok)
		if b[pos] == 'A' {
			b[pos] = 'B'
		} else {
			b[pos] = 'A'
		}
		if _, err := i.Resolve(string(b)); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("tampered byte at %d accepted", pos)
		}
	}
}

func TestResolve_TamperedPayload(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k", &fakeClock{t: time.Now()})
	tok, err := i.Issue(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"}, Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(tok, ".")
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	payload["role"] = "admin"
	forged, _ := json.Marshal(payload)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	if _, err := i.Resolve(strings.Join(parts, ".")); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("role escalation via payload edit accepted: %v", err)
	}
}

func TestResolve_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	i := newTestIssuer(t, "k", clock)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
		Role: models.RoleAdmin,
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	for name, tok := range map[string]string{"none": none, "HS512": hs512} {
		if _, err := i.Resolve(tok); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%s token accepted: %v", name, err)
		}
	}
}

func TestResolve_RequiresExpiry(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k", &fakeClock{t: time.Now()})
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"},
		Role:             models.RoleStudent,
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := i.Resolve(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("token without exp accepted: %v", err)
	}
}
