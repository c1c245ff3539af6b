package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/profilehub/internal/client/client"
	"github.com/dmitrijs2005/profilehub/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// prompts asks for each label in order and returns the answers.
func (a *App) prompts(labels ...string) ([]string, error) {
	answers := make([]string, 0, len(labels))
	for _, l := range labels {
		v, err := getSimpleText(a.reader, l, a.out)
		if err != nil {
			return nil, err
		}
		answers = append(answers, v)
	}
	return answers, nil
}

// Register prompts for the profile fields and image paths and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	v, err := a.prompts(
		"Enter full name",
		"Enter email",
		"Enter username",
		"Path to avatar image",
		"Path to cover image (optional)",
	)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.api.Register(ctx, client.RegisterRequest{
		FullName:       v[0],
		Email:          v[1],
		Username:       v[2],
		AvatarPath:     v[3],
		CoverImagePath: v[4],
		Password:       password,
	})
	if err != nil {
		a.report(err)
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (%s). You can log in now.\n", u.Username, u.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	v, err := a.prompts("Enter username", "Enter email")
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.api.Login(ctx, v[0], v[1], password)
	if err != nil {
		a.report(err)
		return err
	}

	a.userName = v[0]
	if res.User != nil && res.User.Username != "" {
		a.userName = res.User.Username
	}

	if err := a.saveSession(ctx); err != nil {
		fmt.Fprintf(a.out, "Warning: session not saved: %s\n", err)
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", a.userName)
	return nil
}

// Me prints the current profile. An expired access token is refreshed once.
func (a *App) Me(ctx context.Context) error {
	u, err := a.api.Me(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		if rerr := a.refresh(ctx); rerr == nil {
			u, err = a.api.Me(ctx)
		}
	}
	if err != nil {
		a.report(err)
		return err
	}

	fmt.Fprintf(a.out, "Username:    %s\n", u.Username)
	fmt.Fprintf(a.out, "Full name:   %s\n", u.FullName)
	fmt.Fprintf(a.out, "Email:       %s\n", u.Email)
	fmt.Fprintf(a.out, "Avatar:      %s\n", u.Avatar)
	if u.CoverImage != "" {
		fmt.Fprintf(a.out, "Cover image: %s\n", u.CoverImage)
	}
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.refresh(ctx); err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	if _, err := a.api.Refresh(ctx); err != nil {
		return err
	}
	return a.saveSession(ctx)
}

// Logout ends the session on the server and always forgets it locally.
func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)

	a.userName = ""
	if cerr := a.sessions.Clear(ctx); cerr != nil {
		return cerr
	}

	if err != nil && !errors.Is(err, client.ErrUnauthorized) {
		a.report(err)
		return err
	}

	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// report prints err in user terms.
func (a *App) report(err error) {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintf(a.out, "Not authorized: %s\n", err)
	case errors.As(err, &apiErr):
		fmt.Fprintf(a.out, "Error: %s\n", apiErr.Message)
	default:
		fmt.Fprintf(a.out, "Error: %s\n", err)
	}
}
