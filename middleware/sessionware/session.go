// Package sessionware guards routes behind a validated session token. Tokens
// are read from the session cookie first, then from the Authorization header.
package sessionware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gymstack/gymgate"
)

var (
	defaultTokenLookup = "cookie:" + gymgate.TokenCookieName + ",header:" + fiber.HeaderAuthorization

	ErrTokenMissingOrMalformed = errors.New("missing or malformed session token")
)

type Config struct {
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler

	// Auther validates tokens and resolves the principal behind them.
	Auther gymgate.Authenticator

	// TokenLookup is a comma separated list of "source:name" pairs. Sources:
	// cookie, header, query.
	TokenLookup string
	AuthScheme  string

	// EnforceStatus rejects principals whose status is not active. Off by
	// default: suspended and pending accounts may still read their own
	// profile and wait for a status change.
	EnforceStatus bool

	// Optional skips the error handler when no valid token is present and
	// lets the request through anonymously.
	Optional bool

	Logger gymgate.Logger
}

// New returns a middleware that validates the session token, re-fetches the
// principal from the store, and exposes both through locals and the request
// context.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractRawToken(c, cfg.getExtractors())
		if err != nil || raw == "" {
			return cfg.fail(c, gymgate.ErrMissingToken)
		}

		session, err := cfg.Auther.SessionFromToken(raw)
		if err != nil {
			return cfg.fail(c, err)
		}

		principal, err := cfg.Auther.PrincipalFromSession(c.UserContext(), session)
		if err != nil {
			return cfg.fail(c, err)
		}

		if cfg.EnforceStatus && !principal.IsActive() {
			return cfg.fail(c, gymgate.ErrForbiddenRole.WithMetadata(map[string]any{
				"status": string(principal.Status),
			}))
		}

		c.Locals(gymgate.SessionLocalsKey, session)
		c.Locals(gymgate.PrincipalLocalsKey, principal)

		ctx := gymgate.WithPrincipalContext(c.UserContext(), principal)
		c.SetUserContext(ctx)

		return cfg.SuccessHandler(c)
	}
}

// RequireRole returns a middleware restricting the route to the given roles.
// It must run after New.
func RequireRole(roles ...gymgate.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return gymgate.ErrMissingToken
		}

		for _, role := range roles {
			if principal.Role == role {
				return c.Next()
			}
		}

		return gymgate.ErrForbiddenRole.WithMetadata(map[string]any{
			"role": string(principal.Role),
		})
	}
}

// PrincipalFrom returns the authenticated principal stored by New.
func PrincipalFrom(c *fiber.Ctx) (*gymgate.Principal, bool) {
	principal, ok := c.Locals(gymgate.PrincipalLocalsKey).(*gymgate.Principal)
	return principal, ok && principal != nil
}

// SessionFrom returns the validated session stored by New.
func SessionFrom(c *fiber.Ctx) (gymgate.Session, bool) {
	session, ok := c.Locals(gymgate.SessionLocalsKey).(gymgate.Session)
	return session, ok && session != nil
}

func configDefault(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Auther == nil {
		panic("AUTH: session middleware configuration: Auther is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return err
		}
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	return cfg
}

func (cfg *Config) fail(c *fiber.Ctx, err error) error {
	if cfg.Optional {
		cfg.Logger.Info("optional auth failed, proceeding", "error", err)
		return c.Next()
	}
	return cfg.ErrorHandler(c, err)
}

func (cfg *Config) getExtractors() []tokenExtractor {
	return getExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

type tokenExtractor func(c *fiber.Ctx) (string, error)

func extractRawToken(c *fiber.Ctx, extractors []tokenExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func getExtractors(tokenLookup string, authScheme string) []tokenExtractor {
	extractors := make([]tokenExtractor, 0)

	rootParts := strings.Split(tokenLookup, ",")
	for _, rootPart := range rootParts {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, tokenFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(parts[1]))
		}
	}

	return extractors
}

func tokenFromHeader(header string, authScheme string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if l == 0 {
			return "", ErrTokenMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrTokenMissingOrMalformed
	}
}

func tokenFromQuery(param string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}

func tokenFromCookie(name string) tokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrTokenMissingOrMalformed
		}
		return token, nil
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
