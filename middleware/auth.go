package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/Topaz-Oz/Lience-Plate-Detect/services"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey    = "userID"
	UserEmailKey = "userEmail"
	UserRoleKey  = "userRole"
)

type TokenValidator interface {
	ValidateToken(tokenStr string) (*services.Claims, error)
}

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadScheme     = errors.New("authorization header must be Bearer <token>")
	errRole          = errors.New("insufficient role")
)

// abort writes the same error body as the handlers. Untagged errors are
// authentication failures.
func abort(c *gin.Context, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		e = &services.Error{Kind: services.KindAuthentication, Err: err}
	}
	body := gin.H{"error": e.Error(), "code": e.Kind}
	if e.Reason != "" {
		body["reason"] = e.Reason
	}
	c.AbortWithStatusJSON(e.Kind.Status(), body)
}

// Authenticate requires an "Authorization: Bearer <token>" header and puts
// the token's claims into the request context.
func Authenticate(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, errMissingHeader)
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			abort(c, errBadScheme)
			return
		}

		claims, err := v.ValidateToken(parts[1])
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(UserRoleKey)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		log.Printf("user %d with role %q denied %s %s", CurrentUserID(c), role, c.Request.Method, c.FullPath())
		abort(c, &services.Error{Kind: services.KindForbidden, Err: errRole})
	}
}

// CurrentUserID returns the authenticated user's id, or 0.
func CurrentUserID(c *gin.Context) uint {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}

var _ TokenValidator = (*services.AuthService)(nil)
