// Package admintoken issues and verifies signed administrator bearer tokens.
// These are signed with an administrator-specific secret, distinct from the
// vault master secret and from anything tenant-facing.
package admintoken

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/simbridge/go-esim-gateway/internal/autherrors"
)

// RoleAdmin is the only role accepted by the administrator strategy.
const RoleAdmin = "admin"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims are the verified contents of an administrator token.
type Claims struct {
	ID       string
	Username string
	Role     string
}

// Manager creates and verifies administrator tokens.
type Manager struct {
	secret []byte
	expiry time.Duration
}

// New creates a Manager signing with the given administrator secret.
func New(secret string, expiry time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("[admintoken New] signing secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("[admintoken New] token expiry must be positive")
	}
	return &Manager{secret: []byte(secret), expiry: expiry}, nil
}

// Create signs a new administrator token for the given identity.
func (m *Manager) Create(id, username string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"id":       id,
		"username": username,
		"role":     RoleAdmin,
		"iat":      now.Unix(),
		"exp":      now.Add(m.expiry).Unix(),
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "[admintoken Create] sign token")
	}
	return signed, nil
}

// Verify parses a bearer token and checks signature, expiry, and role. Each
// failure maps to its own coded error.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwtlib.Parse(tokenString, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }))
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, autherrors.Wrap(err, autherrors.ErrTokenExpired)
		}
		return nil, autherrors.Wrap(err, autherrors.ErrTokenInvalid)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return nil, autherrors.Wrap(errors.New("unparseable claims"), autherrors.ErrTokenInvalid)
	}

	role, _ := claims["role"].(string)
	if role != RoleAdmin {
		return nil, autherrors.Wrap(errors.Errorf("role %q is not admin", role), autherrors.ErrAdminAccessRequired)
	}

	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	return &Claims{ID: id, Username: username, Role: role}, nil
}
