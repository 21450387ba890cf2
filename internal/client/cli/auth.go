package cli

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/filestore/internal/server/auth"
)

// Login mints a bearer token from the configured secret, prompting for the
// secret when none is configured.
func (a *App) Login(ctx context.Context) error {
	secret := []byte(a.config.SecretKey)
	if len(secret) == 0 {
		var err error
		secret, err = GetPassword("-Enter signing secret")
		if err != nil {
			printlnFn("Error reading secret:", err)
			return err
		}
	}
	if len(secret) == 0 {
		err := errors.New("empty secret")
		printlnFn("Login failed:", err)
		return err
	}

	validity := a.config.TokenValidity
	if validity <= 0 {
		validity = time.Hour
	}
	token, err := auth.GenerateToken(a.config.Subject, secret, validity)
	if err != nil {
		printlnFn("Login failed:", err)
		return err
	}

	a.files.SetToken(token)
	a.loggedIn = true
	printlnFn("Logged in as", a.config.Subject)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.files.SetToken("")
	a.loggedIn = false
	printlnFn("Logged out")
	return nil
}
