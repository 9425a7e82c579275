package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var allPermissions = []string{
	"notes.create",
	"notes.ingest",
	"people.view",
	"people.update",
	"people.merge",
	"conflicts.view",
	"conflicts.resolve",
	"search.query",
}

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.Split(authHeader, " ")[1]
		app := c.(*AppContext).App

		// Master API Key bypass
		if app.MasterAPIKey != "" && app.MasterOwnerID != "" && token == app.MasterAPIKey {
			c.(*AppContext).User = &AppUser{
				OwnerID:     app.MasterOwnerID,
				Role:        "admin",
				Permissions: allPermissions,
			}
			return next(c)
		}

		// Parse JWT token
		k := *c.(*AppContext).App.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		ownerID := ""
		if sub, ok := claims["sub"].(string); ok {
			ownerID = sub
		} else if id, ok := claims["id"].(string); ok {
			ownerID = id
		}
		if ownerID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid owner ID"})
		}

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		var permissions []string
		if permsClaim, ok := claims["permissions"].([]any); ok {
			for _, p := range permsClaim {
				if pStr, ok := p.(string); ok {
					permissions = append(permissions, pStr)
				}
			}
		}

		c.(*AppContext).User = &AppUser{
			OwnerID:     ownerID,
			Role:        role,
			Permissions: permissions,
		}

		return next(c)
	}
}
