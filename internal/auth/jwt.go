package auth

import (
	"errors"
	"time"

	"prompt-mastare/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

func GenerateJWT(userID uint64, teamID uint64, name string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":   userID,
		"team_id":   teamID,
		"user_name": name,
		"exp":       time.Now().Add(time.Hour * 24 * 3).Unix(), // expires in 3 days
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func VerifyJWT(tokenString string) (*jwt.Token, error) {
	jwtToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if !jwtToken.Valid {
		return nil, errors.New("token invalid")
	}

	return jwtToken, nil
}

// GetDataFromToken extracts the identity claims set by GenerateJWT.
func GetDataFromToken(token *jwt.Token) (userID uint64, teamID uint64, name string, err error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, 0, "", errors.New("invalid token claims")
	}

	rawUser, ok := claims["user_id"].(float64)
	if !ok {
		return 0, 0, "", errors.New("user_id claim missing")
	}
	rawTeam, _ := claims["team_id"].(float64)
	name, _ = claims["user_name"].(string)

	return uint64(rawUser), uint64(rawTeam), name, nil
}
