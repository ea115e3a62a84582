package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultSigningMethod = "HS256"

	// Tolerance window when validating expiry so independently clocked nodes
	// do not spuriously reject freshly issued or barely expired tokens
	defaultLeeway = 60 * time.Second
)

// Claims carried by every signed token. Subject is the principal email.
type Claims struct {
	jwt.RegisteredClaims
	PrincipalID uuid.UUID `json:"pid"`
	Role        string    `json:"role,omitempty"`
}

type ErrorKind int

const (
	KindMalformed ErrorKind = iota
	KindBadSignature
	KindExpired
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindBadSignature:
		return "bad signature"
	case KindExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// DecodeError is a tagged decode failure. Returned as an ordinary value so
// callers on the request path branch on Kind instead of matching strings.
type DecodeError struct {
	Kind ErrorKind
	err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("token decode failed (%s): %v", e.Kind, e.err)
}

func (e *DecodeError) Unwrap() error {
	return e.err
}

type Config struct {
	// Secret key to sign token payloads
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Expiry tolerance window, default is used when zero
	Leeway time.Duration

	// Clock, substituted in tests. Defaults to time.Now
	Now func() time.Time
}

// Codec is a stateless encoder/decoder of signed tokens. It never consults
// the refresh store and has no side effects.
type Codec struct {
	key    string
	alg    jwt.SigningMethod
	leeway time.Duration
	now    func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method: %q", cfg.Alg)
	}

	if cfg.Leeway == 0 {
		cfg.Leeway = defaultLeeway
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Codec{
		key:    cfg.SecretKey,
		alg:    alg,
		leeway: cfg.Leeway,
		now:    cfg.Now,
	}, nil
}

// Extra is the domain payload encoded next to the registered claims
type Extra struct {
	PrincipalID uuid.UUID
	Role        string
}

func (c *Codec) Encode(subject string, extra Extra, ttl time.Duration) (string, error) {
	now := c.now().Truncate(time.Second)

	t := jwt.NewWithClaims(
		c.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
			PrincipalID: extra.PrincipalID,
			Role:        extra.Role,
		},
	)

	signed, err := t.SignedString([]byte(c.key))
	if err != nil {
		return "", fmt.Errorf("error while signing token. Err: %w", err)
	}

	return signed, nil
}

// Decode parses and validates a signed token. On failure the returned error
// is always a *DecodeError tagged with the failure kind. For KindExpired the
// signature verified and the parsed claims are returned next to the error;
// for the other kinds the claims are zero.
func (c *Codec) Decode(tokenString string) (Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(c.key), nil },
		jwt.WithValidMethods([]string{c.alg.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		kind := classify(err)
		if kind == KindExpired {
			return *claims, &DecodeError{Kind: kind, err: err}
		}
		return Claims{}, &DecodeError{Kind: kind, err: err}
	}

	return *claims, nil
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return KindExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return KindBadSignature
	default:
		return KindMalformed
	}
}
