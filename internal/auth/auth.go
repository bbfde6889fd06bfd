package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthDisabled       = errors.New("authentication is disabled")
)

// Config configures the single-operator authenticator.
type Config struct {
	Enabled  bool
	Username string
	// Password is either a bcrypt hash or a plaintext value that gets
	// hashed at construction time.
	Password  string
	JWTSecret string
}

// Authenticator guards the control surface with one operator account.
type Authenticator struct {
	enabled      bool
	username     string
	passwordHash []byte
	jwtManager   *JWTManager
}

// New creates an authenticator.
func New(cfg Config) *Authenticator {
	username := cfg.Username
	if username == "" {
		username = "admin"
	}

	var passwordHash []byte
	if cfg.Enabled && cfg.Password != "" {
		if len(cfg.Password) == 60 && cfg.Password[0] == '$' {
			passwordHash = []byte(cfg.Password)
		} else {
			if hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost); err == nil {
				passwordHash = hash
			}
		}
	}

	return &Authenticator{
		enabled:      cfg.Enabled,
		username:     username,
		passwordHash: passwordHash,
		jwtManager:   NewJWTManager(cfg.JWTSecret, 0),
	}
}

// IsEnabled returns whether authentication is enforced.
func (a *Authenticator) IsEnabled() bool {
	return a.enabled
}

// Authenticate validates credentials and returns a signed token and its
// Unix expiry.
func (a *Authenticator) Authenticate(username, password string) (string, int64, error) {
	if !a.enabled {
		return "", 0, ErrAuthDisabled
	}
	if username != a.username {
		return "", 0, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", 0, ErrInvalidCredentials
	}

	token, expiresAt, err := a.jwtManager.GenerateToken(username)
	if err != nil {
		return "", 0, err
	}
	return token, expiresAt.Unix(), nil
}

// ValidateToken validates a control-surface token.
func (a *Authenticator) ValidateToken(token string) (*Claims, error) {
	return a.jwtManager.ValidateToken(token)
}
