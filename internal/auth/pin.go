package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	pinPromptText            = "Please enter the PIN code: "
	pinRetryText             = "Please input only the PIN code"
	authorizeInstructionText = "Authorize the application at:"
	errMessagePINInputClosed = "pin input closed before a PIN was entered"
)

// ErrPINInputClosed is returned when the input ends before a valid PIN arrives.
var ErrPINInputClosed = errors.New(errMessagePINInputClosed)

// PINProvider supplies the verifier PIN shown after authorizing the application.
type PINProvider interface {
	PIN(ctx context.Context, authorizationURL string) (string, error)
}

// PINProviderFunc adapts a function to PINProvider.
type PINProviderFunc func(ctx context.Context, authorizationURL string) (string, error)

// PIN calls the wrapped function.
func (providerFunc PINProviderFunc) PIN(ctx context.Context, authorizationURL string) (string, error) {
	return providerFunc(ctx, authorizationURL)
}

// TerminalPINProvider prompts on a terminal until an all-digit PIN is entered.
type TerminalPINProvider struct {
	reader *bufio.Reader
	output io.Writer
}

// NewTerminalPINProvider reads PINs from input and writes prompts to output.
func NewTerminalPINProvider(input io.Reader, output io.Writer) *TerminalPINProvider {
	return &TerminalPINProvider{reader: bufio.NewReader(input), output: output}
}

// PIN prints authorizationURL and re-prompts until the trimmed line is all digits.
func (provider *TerminalPINProvider) PIN(ctx context.Context, authorizationURL string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprintln(provider.output, authorizeInstructionText)
		fmt.Fprintln(provider.output, authorizationURL)
		fmt.Fprint(provider.output, pinPromptText)

		line, readErr := provider.reader.ReadString('\n')
		verifier := strings.TrimSpace(line)
		if isAllDigits(verifier) {
			return verifier, nil
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return "", ErrPINInputClosed
			}
			return "", readErr
		}
		fmt.Fprintln(provider.output, pinRetryText)
	}
}

func isAllDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, character := range value {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
