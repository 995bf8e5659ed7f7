package clerk

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by a Clerk session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Azp     string `json:"azp,omitempty"`
	OrgID   string `json:"org_id,omitempty"`
	OrgRole string `json:"org_role,omitempty"`
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jsonWebKeySet struct {
	Keys []jsonWebKey `json:"keys"`
}

// TokenVerifier verifies Clerk session tokens against the instance's JWKS.
// Keys are cached and refreshed when an unknown kid shows up.
type TokenVerifier struct {
	jwksURL           string
	authorizedParties []string
	httpClient        *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewTokenVerifier creates a verifier for the given JWKS endpoint.
func NewTokenVerifier(jwksURL string, authorizedParties []string) *TokenVerifier {
	return &TokenVerifier{
		jwksURL:           jwksURL,
		authorizedParties: authorizedParties,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		keys: make(map[string]*rsa.PublicKey),
	}
}

// Verify parses and validates a session token, returning its claims.
func (v *TokenVerifier) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.keyForKid(kid)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if err := v.checkAuthorizedParty(claims.Azp); err != nil {
		return nil, err
	}

	return claims, nil
}

// checkAuthorizedParty rejects tokens minted for an unknown frontend origin.
// An empty configured list disables the check.
func (v *TokenVerifier) checkAuthorizedParty(azp string) error {
	if len(v.authorizedParties) == 0 {
		return nil
	}
	if azp == "" {
		return fmt.Errorf("token has no azp claim")
	}
	for _, party := range v.authorizedParties {
		if azp == party {
			return nil
		}
	}
	return fmt.Errorf("azp %q is not an authorized party", azp)
}

// keyForKid returns the cached public key for a kid, refreshing the JWKS on a
// miss or when the cache is older than an hour.
func (v *TokenVerifier) keyForKid(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	stale := time.Since(v.fetchedAt) > time.Hour
	v.mu.RUnlock()

	if ok && !stale {
		return key, nil
	}

	if err := v.refreshKeys(); err != nil {
		// A stale key is still better than nothing
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no JWKS key found for kid %q", kid)
	}
	return key, nil
}

func (v *TokenVerifier) refreshKeys() error {
	resp, err := v.httpClient.Get(v.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("JWKS request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var set jsonWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return fmt.Errorf("failed to parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKeyFromJWK(k)
		if err != nil {
			fmt.Printf("[warn] skipping JWKS key %s: %v\n", k.Kid, err)
			continue
		}
		keys[k.Kid] = pub
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()
	return nil
}

func rsaKeyFromJWK(k jsonWebKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, fmt.Errorf("exponent is zero")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
