package middleware

import (
	"net/http"

	"poolcare-platform/internal/models"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload issued at login. CarerID and ClientID are set
// only for accounts linked to a carer or client row.
type Claims struct {
	UserID   string  `json:"user_id"`
	OrgID    string  `json:"org_id"`
	Role     string  `json:"role"`
	CarerID  *string `json:"carer_id,omitempty"`
	ClientID *string `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// JWT returns the authentication middleware. On success it copies the
// claims into the echo context under the keys the handlers read.
func JWT(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		SuccessHandler: func(c echo.Context) {
			token := c.Get("user").(*jwt.Token)
			claims := token.Claims.(*Claims)
			c.Set("userID", claims.UserID)
			c.Set("orgID", claims.OrgID)
			c.Set("userRole", claims.Role)
			if claims.CarerID != nil {
				c.Set("carerID", *claims.CarerID)
			}
			if claims.ClientID != nil {
				c.Set("clientID", *claims.ClientID)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Invalid or missing token"})
		},
	})
}

// RequireRoles guards a route group to the listed roles.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("userRole").(string)
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Forbidden"})
			}
			return next(c)
		}
	}
}
