package seed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	tweetLinkPattern           = `^(?:[a-zA-Z][a-zA-Z0-9+.-]*://)?[^/\s]+/(\w{1,15})/status(?:es)?/(\d+)(?:[/?#].*)?$`
	accountHandlePattern       = `^@?(\w{1,15})$`
	statusPathMarker           = "/status"
	handlePrefix               = "@"
	errMessageMalformedSeed    = "malformed seed"
	reasonTweetLinkShape       = "expected <domain>/<handle>/status/<digits>"
	reasonAccountHandleShape   = "expected @handle of up to 15 letters, digits or underscores"
	reasonEmptyInput           = "input is empty"
	malformedSeedMessageFormat = "%s %q: %s"
)

// ErrMalformedSeed is matched by every seed parsing failure.
var ErrMalformedSeed = errors.New(errMessageMalformedSeed)

var (
	reTweetLink     = regexp.MustCompile(tweetLinkPattern)
	reAccountHandle = regexp.MustCompile(accountHandlePattern)
)

// Kind distinguishes tweet seeds from account seeds.
type Kind int

const (
	// KindTweet seeds carry the author handle and a tweet identifier.
	KindTweet Kind = iota + 1
	// KindAccount seeds carry a handle only.
	KindAccount
)

func (kind Kind) String() string {
	switch kind {
	case KindTweet:
		return "tweet"
	case KindAccount:
		return "account"
	default:
		return "unknown"
	}
}

// Seed is the tweet or account the block list is derived from.
type Seed struct {
	Kind    Kind
	Handle  string
	TweetID string
}

// String renders the seed for logs and reports.
func (seed Seed) String() string {
	if seed.Kind == KindTweet {
		return fmt.Sprintf("%s%s/status/%s", handlePrefix, seed.Handle, seed.TweetID)
	}
	return handlePrefix + seed.Handle
}

// MalformedSeedError describes input that could not be parsed into a Seed.
type MalformedSeedError struct {
	Input  string
	Reason string
}

func (err *MalformedSeedError) Error() string {
	return fmt.Sprintf(malformedSeedMessageFormat, errMessageMalformedSeed, err.Input, err.Reason)
}

// Unwrap exposes ErrMalformedSeed to errors.Is.
func (err *MalformedSeedError) Unwrap() error {
	return ErrMalformedSeed
}

// Parse accepts either a tweet link or an account handle.
func Parse(input string) (Seed, error) {
	if strings.Contains(input, statusPathMarker) {
		return ParseTweetLink(input)
	}
	return ParseAccountHandle(input)
}

// ParseTweetLink extracts the author handle and tweet identifier from a link
// shaped like https://x.com/<handle>/status/<digits>.
func ParseTweetLink(link string) (Seed, error) {
	trimmedLink := strings.TrimSpace(link)
	if trimmedLink == "" {
		return Seed{}, &MalformedSeedError{Input: link, Reason: reasonEmptyInput}
	}
	match := reTweetLink.FindStringSubmatch(trimmedLink)
	if len(match) != 3 || match[1] == "" || match[2] == "" {
		return Seed{}, &MalformedSeedError{Input: link, Reason: reasonTweetLinkShape}
	}
	return Seed{Kind: KindTweet, Handle: match[1], TweetID: match[2]}, nil
}

// ParseAccountHandle accepts "@handle" or a bare "handle".
func ParseAccountHandle(input string) (Seed, error) {
	trimmedInput := strings.TrimSpace(input)
	if trimmedInput == "" {
		return Seed{}, &MalformedSeedError{Input: input, Reason: reasonEmptyInput}
	}
	match := reAccountHandle.FindStringSubmatch(trimmedInput)
	if len(match) != 2 {
		return Seed{}, &MalformedSeedError{Input: input, Reason: reasonAccountHandleShape}
	}
	return Seed{Kind: KindAccount, Handle: match[1]}, nil
}
