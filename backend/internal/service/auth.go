package service

import (
	"net/http"

	"github.com/itchan-dev/blog/shared/domain"
	"github.com/itchan-dev/blog/shared/errors"
	"github.com/itchan-dev/blog/shared/logger"
	"golang.org/x/crypto/bcrypt"
)

// adminUserId is the id carried by tokens of the single blog author.
const adminUserId = 1

type AuthService interface {
	Login(password string) (string, error)
}

type Auth struct {
	passwordHash []byte
	jwt          Jwt
}

type Jwt interface {
	NewToken(user domain.User) (string, error)
}

func NewAuth(passwordHash string, jwt Jwt) *Auth {
	return &Auth{passwordHash: []byte(passwordHash), jwt: jwt}
}

// Login checks the author password and returns an admin access token.
func (a *Auth) Login(password string) (string, error) {
	if len(a.passwordHash) == 0 {
		logger.Log.Warn("login attempt while admin password hash is not configured")
		return "", &errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		logger.Log.Info("failed admin login", "error", err)
		return "", &errors.ErrorWithStatusCode{Message: "Invalid credentials", StatusCode: http.StatusUnauthorized}
	}

	token, err := a.jwt.NewToken(domain.User{Id: adminUserId, Admin: true})
	if err != nil {
		return "", err
	}
	logger.Log.Info("admin logged in")
	return token, nil
}
