package gymgate

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

// SessionCookies writes and clears the session cookie. Secure is off for
// local development over plain HTTP; production config must enable it.
type SessionCookies struct {
	cookieDuration time.Duration
	secure         bool
}

func NewSessionCookies(cfg Config, secure bool) *SessionCookies {
	cookieDuration := time.Duration(DefaultTokenExpirationHours) * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	return &SessionCookies{
		cookieDuration: cookieDuration,
		secure:         secure,
	}
}

func (s *SessionCookies) GetCookieDuration() time.Duration {
	return s.cookieDuration
}

// Set writes the token cookie on the response.
func (s *SessionCookies) Set(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Expires:  time.Now().Add(s.cookieDuration),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// Clear expires the token cookie.
func (s *SessionCookies) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

// HTTPErrorHandler maps rich errors to JSON responses. Internal errors are
// logged in full and genericized on the wire.
func HTTPErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			if fiberErr, ok := err.(*fiber.Error); ok {
				return c.Status(fiberErr.Code).JSON(fiber.Map{
					"success": false,
					"message": fiberErr.Message,
				})
			}

			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		logger.Info(
			"Request error handler",
			"error", richErr.Message,
			"category", richErr.Category,
			"text_code", richErr.TextCode,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		message := richErr.Message
		if richErr.Category == errors.CategoryInternal {
			message = "An unexpected server error occurred"
		}

		status := richErr.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"message": message,
		})
	}
}
