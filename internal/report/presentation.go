package report

import (
	"fmt"
	"strings"

	"github.com/f-sync/tweeblock/internal/accountset"
)

const (
	profileBaseURL      = "https://x.com/"
	profileByIDPath     = "i/user/"
	accountHandlePrefix = "@"
	displayHandleFormat = "%s (%s%s)"
	unknownLabelText    = "Unknown"
)

// accountLabel combines display name and handle, falling back to whichever
// is present and finally to the identifier.
func accountLabel(record accountset.AccountRecord) string {
	trimmedDisplayName := strings.TrimSpace(record.DisplayName)
	trimmedUserName := strings.TrimSpace(record.UserName)
	switch {
	case trimmedDisplayName != "" && trimmedUserName != "":
		return fmt.Sprintf(displayHandleFormat, trimmedDisplayName, accountHandlePrefix, trimmedUserName)
	case trimmedDisplayName != "":
		return trimmedDisplayName
	case trimmedUserName != "":
		return accountHandlePrefix + trimmedUserName
	case record.AccountID != "":
		return record.AccountID
	default:
		return unknownLabelText
	}
}

func handleLabel(record accountset.AccountRecord) string {
	trimmedUserName := strings.TrimSpace(record.UserName)
	if trimmedUserName == "" {
		return ""
	}
	return accountHandlePrefix + trimmedUserName
}

func profileURL(record accountset.AccountRecord) string {
	trimmedUserName := strings.TrimSpace(record.UserName)
	if trimmedUserName != "" {
		return profileBaseURL + trimmedUserName
	}
	if record.AccountID != "" {
		return profileBaseURL + profileByIDPath + record.AccountID
	}
	return ""
}
