package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/avetrano/matrixflow/internal/client/engine"
	"github.com/avetrano/matrixflow/internal/model"
)

// AddUtility attaches a new utility contract to the signed-in member. When a
// bill document is supplied and the AI extractor is available, its reading
// pre-fills the provider and type prompts; the user can always override.
func (a *App) AddUtility(ctx context.Context) error {
	member := a.currentMember()
	if member == nil {
		fmt.Println("Log in first.")
		return nil
	}

	path, err := getSimpleText(a.reader, "Bill document path (empty to skip)", os.Stdout)
	if err != nil {
		return err
	}

	var in engine.UtilityInput
	var suggested struct {
		provider string
		utype    model.UtilityType
	}
	if path != "" {
		document, err := os.ReadFile(path)
		if err != nil {
			fmt.Println("Cannot read document:", err)
			return err
		}
		in.AttachmentName = filepath.Base(path)
		in.AttachmentType = mime.TypeByExtension(filepath.Ext(path))
		in.AttachmentData = base64.StdEncoding.EncodeToString(document)

		if extraction, err := a.extractor.ExtractBill(ctx, document, in.AttachmentType); err != nil {
			a.log.Warn(ctx, "bill extraction unavailable, manual entry", "err", err)
		} else {
			suggested.provider = extraction.Provider
			suggested.utype = extraction.Type
		}
	}

	utype, err := GetTextWithDefault(a.reader, "Contract type (Luce/Gas)", string(suggested.utype), os.Stdout)
	if err != nil {
		return err
	}
	provider, err := GetTextWithDefault(a.reader, "Provider", suggested.provider, os.Stdout)
	if err != nil {
		return err
	}

	switch utype {
	case string(model.UtilityTypePower), string(model.UtilityTypeGas):
	default:
		fmt.Println("Unknown contract type:", utype)
		return nil
	}
	in.Type = model.UtilityType(utype)
	in.Provider = provider

	updated, err := a.engine.AddUtility(ctx, member.ID, in)
	if err != nil {
		fmt.Println("Could not add the utility:", err)
		return err
	}

	added := updated.Utilities[len(updated.Utilities)-1]
	fmt.Printf("Added %s/%s (%s), id %s\n", added.Type, added.Provider, added.Status, added.ID)
	return nil
}

// SetUtilityStatus reviews a pending utility. The engine enforces who may do
// this; the CLI only gathers the coordinates.
func (a *App) SetUtilityStatus(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Member username", os.Stdout)
	if err != nil {
		return err
	}

	members, err := a.engine.Members(ctx)
	if err != nil {
		fmt.Println("Could not resolve the network:", err)
		return err
	}
	var target *model.Member
	for i := range members {
		if members[i].UsernameEquals(username) {
			target = &members[i]
			break
		}
	}
	if target == nil {
		fmt.Println("No such member:", username)
		return nil
	}
	if len(target.Utilities) == 0 {
		fmt.Println("That member has no utilities.")
		return nil
	}

	for _, u := range target.Utilities {
		fmt.Printf("  %s  %s/%s  %s\n", u.ID, u.Type, u.Provider, u.Status)
	}

	utilityID, err := getSimpleText(a.reader, "Utility id", os.Stdout)
	if err != nil {
		return err
	}
	status, err := getSimpleText(a.reader, "New status (Active/Rejected)", os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.engine.UpdateUtilityStatus(ctx, target.ID, utilityID, model.UtilityStatus(status)); err != nil {
		fmt.Println("Status change refused:", err)
		return err
	}
	fmt.Printf("Utility %s is now %s.\n", utilityID, status)
	return nil
}

// ShowAttachment lazy-loads a utility's document payload from the remote
// store and reports its size. The full payload is never dumped to the
// terminal.
func (a *App) ShowAttachment(ctx context.Context, utilityID string) error {
	payload, err := a.engine.Attachment(ctx, utilityID)
	if err != nil {
		fmt.Println("Could not fetch the attachment:", err)
		return err
	}
	if payload == "" {
		fmt.Println("No attachment stored for", utilityID)
		return nil
	}
	fmt.Printf("Attachment for %s: %d bytes (base64)\n", utilityID, len(payload))
	return nil
}
