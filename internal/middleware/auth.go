package middleware

import (
	"strings"

	"prompt-mastare/internal/auth"
	"prompt-mastare/internal/errors"

	"github.com/gin-gonic/gin"
)

// AuthMiddleWare authenticates a request via JWT. The token is read from the
// Authorization header, or from the "token" query parameter for the WebSocket
// upgrade (browsers can't set headers on the upgrade request).
func AuthMiddleWare() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		var token string
		tokenQuery := ctx.Query("token")

		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if tokenQuery != "" {
			token = tokenQuery
		} else {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		parsedToken, err := auth.VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		userID, teamID, userName, err := auth.GetDataFromToken(parsedToken)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", userID)
		ctx.Set("team_id", teamID)
		ctx.Set("user_name", userName)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}
