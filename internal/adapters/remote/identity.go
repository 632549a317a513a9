package remote

import (
	"strconv"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/ZanaKriezi/tourly-skopje-guide/internal/domain/entities"
	apperrors "github.com/ZanaKriezi/tourly-skopje-guide/pkg/errors"
)

// IdentityFromToken reads the session identity carried by an API token. The
// signature is not checked here; the catalog API verifies it on every write.
func IdentityFromToken(token string) (entities.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return entities.Identity{}, apperrors.NewUnauthorizedError("no session token")
	}

	parsed, _, err := gojwt.NewParser().ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return entities.Identity{}, &apperrors.AppError{
			Type:    apperrors.ErrorTypeUnauthorized,
			Message: "session token is malformed",
			Err:     err,
		}
	}
	claims := parsed.Claims.(gojwt.MapClaims)

	identity := entities.Identity{Token: token}
	if sub, err := claims.GetSubject(); err == nil {
		identity.Username = sub
	}
	if username, ok := claims["username"].(string); ok && username != "" {
		identity.Username = username
	}
	if role, ok := claims["role"].(string); ok {
		identity.Role = role
	}
	for _, key := range []string{"userId", "user_id", "id"} {
		if id, ok := claimInt64(claims[key]); ok {
			identity.UserID = id
			break
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}

	if identity.UserID == 0 {
		return entities.Identity{}, apperrors.NewUnauthorizedError("session token carries no user id")
	}
	return identity, nil
}

func claimInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n > 0
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}
