// Package jwt firma y valida los tokens del servicio (auth token de un solo
// uso y access token) con HMAC. Los tokens solo llevan "exp", "iat" y,
// en el caso del access token, "sub".
package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid cubre firma inválida, algoritmo distinto al
	// configurado, payload mal formado y expiración.
	ErrTokenInvalid = errors.New("invalid_jwt")
	// ErrTokenExpired es un ErrTokenInvalid más específico.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
)

var methods = map[string]*jwtv5.SigningMethodHMAC{
	"HS256": jwtv5.SigningMethodHS256,
	"HS384": jwtv5.SigningMethodHS384,
	"HS512": jwtv5.SigningMethodHS512,
}

// Codec emite y decodifica JWT firmados con un secreto compartido.
type Codec struct {
	secret []byte
	method *jwtv5.SigningMethodHMAC
	leeway time.Duration
	now    func() time.Time
}

// NewCodec valida el algoritmo y arma el codec. leeway es la tolerancia de
// reloj aplicada a "exp" (0 = sin tolerancia).
func NewCodec(secret, algorithm string, leeway time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("jwt: empty secret")
	}
	m, ok := methods[strings.ToUpper(strings.TrimSpace(algorithm))]
	if !ok {
		return nil, fmt.Errorf("jwt: unsupported algorithm %q", algorithm)
	}
	if leeway < 0 {
		leeway = 0
	}
	return &Codec{secret: []byte(secret), method: m, leeway: leeway, now: time.Now}, nil
}

// WithClock devuelve una copia del codec que usa now como reloj.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// Algorithm devuelve el nombre del algoritmo configurado (ej: "HS256").
func (c *Codec) Algorithm() string { return c.method.Alg() }

// Issue firma claims agregando "exp" = now+ttl e "iat" = now.
// El mapa recibido no se modifica.
func (c *Codec) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	now := c.now()
	mc := jwtv5.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["iat"] = now.Unix()
	mc["exp"] = now.Add(ttl).Unix()

	signed, err := jwtv5.NewWithClaims(c.method, mc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Decode verifica firma, algoritmo y expiración y devuelve las claims.
func (c *Codec) Decode(token string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return c.secret, nil }

	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{c.method.Alg()}),
		jwtv5.WithLeeway(c.leeway),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}

// Subject devuelve el claim "sub" si existe y es string.
func Subject(claims map[string]any) string {
	s, _ := claims["sub"].(string)
	return s
}
