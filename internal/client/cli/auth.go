package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/avetrano/matrixflow/internal/client/engine"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the new member's details and submits the
// registration. The remote outcome is reported separately: a failed cloud
// write still leaves the member usable on this device.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Choose a username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	sponsor, err := getSimpleText(a.reader, "Sponsor username (empty for the network root)", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	phone, err := getSimpleText(a.reader, "Phone", os.Stdout)
	if err != nil {
		return err
	}

	result, err := a.engine.Register(ctx, engine.RegisterInput{
		Username:        username,
		Password:        password,
		SponsorUsername: sponsor,
		Email:           email,
		Phone:           phone,
	})
	if err != nil {
		fmt.Println("Registration failed:", err)
		return err
	}

	fmt.Printf("Welcome, %s! Placed at level %d under %s.\n",
		result.Member.Username, result.Member.Level, result.Member.ParentID)
	if result.RemoteErr != nil {
		fmt.Println("Warning: the cloud store did not confirm the registration;")
		fmt.Println("the account lives on this device until connectivity returns.")
	}
	fmt.Println("Your referral link:", engine.ReferralLink(result.Member.Username))
	return nil
}

// Login authenticates against the resolved member set and opens a session.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}

	member, err := a.engine.Login(ctx, username, password)
	if err != nil {
		fmt.Println("Login failed:", err)
		return err
	}
	fmt.Printf("Hello %s (level %d, %s)\n", member.Username, member.Level, member.Role)
	return nil
}

// Logout closes the persisted session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.engine.Logout(ctx); err != nil {
		fmt.Println("Logout failed:", err)
		return err
	}
	fmt.Println("Signed out.")
	return nil
}
