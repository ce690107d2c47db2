package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/avetrano/matrixflow/internal/client/engine"
	"github.com/avetrano/matrixflow/internal/model"
)

// UpdateProfile edits the signed-in member's contact details. Empty input
// keeps the current value.
func (a *App) UpdateProfile(ctx context.Context) error {
	member := a.currentMember()
	if member == nil {
		fmt.Println("Log in first.")
		return nil
	}

	email, err := GetTextWithDefault(a.reader, "Email", member.Email, os.Stdout)
	if err != nil {
		return err
	}
	phone, err := GetTextWithDefault(a.reader, "Phone", member.Phone, os.Stdout)
	if err != nil {
		return err
	}
	seed, err := GetTextWithDefault(a.reader, "Avatar seed", member.AvatarConfig.Seed, os.Stdout)
	if err != nil {
		return err
	}

	patch := model.MemberPatch{}
	if email != member.Email {
		patch.Email = &email
	}
	if phone != member.Phone {
		patch.Phone = &phone
	}
	if seed != member.AvatarConfig.Seed {
		avatar := member.AvatarConfig
		avatar.Seed = seed
		patch.AvatarConfig = &avatar
	}
	if patch.Email == nil && patch.Phone == nil && patch.AvatarConfig == nil {
		fmt.Println("Nothing to change.")
		return nil
	}

	updated, err := a.engine.UpdateMemberProfile(ctx, member.ID, patch)
	if err != nil {
		fmt.Println("Profile update failed:", err)
		return err
	}
	fmt.Printf("Profile saved: %s / %s\n", updated.Email, updated.Phone)
	return nil
}

// ShowLink prints the signed-in member's referral link.
func (a *App) ShowLink() error {
	member := a.currentMember()
	if member == nil {
		fmt.Println("Log in first.")
		return nil
	}
	fmt.Println(engine.ReferralLink(member.Username))
	return nil
}
