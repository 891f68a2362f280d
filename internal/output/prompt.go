package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// ErrNotInteractive is returned by prompts when stdin is not a terminal.
var ErrNotInteractive = errors.New("not an interactive terminal; pass the value as an argument")

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("cancelled")

// IsInteractive reports whether stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// SelectConnectType asks which of the available backends to connect.
func SelectConnectType(available []wallet.ConnectType) (wallet.ConnectType, error) {
	if len(available) == 0 {
		return "", errors.New("no wallet backend is available")
	}
	if !IsInteractive() {
		return "", ErrNotInteractive
	}

	prompt := promptui.Select{
		Label: "Connect with",
		Items: available,
		Templates: &promptui.SelectTemplates{
			Active:   `▸ {{ . | cyan }}`,
			Inactive: `  {{ . }}`,
			Selected: `✓ {{ . | green }}`,
		},
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", promptError(err)
	}
	return available[i], nil
}

// Confirm asks a yes/no question. Without a terminal it returns
// ErrNotInteractive so callers can require an explicit flag instead.
func Confirm(message string) (bool, error) {
	if !IsInteractive() {
		return false, ErrNotInteractive
	}

	prompt := promptui.Prompt{
		Label:     message,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, promptError(err)
	}
	return true, nil
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return ErrCancelled
	}
	return fmt.Errorf("prompt failed: %w", err)
}

// PromptAddress asks for a wallet address and validates it as it is typed.
func PromptAddress() (string, error) {
	if !IsInteractive() {
		return "", ErrNotInteractive
	}

	prompt := promptui.Prompt{
		Label:    "Wallet address",
		Validate: wallet.ValidateAddress,
	}
	address, err := prompt.Run()
	if err != nil {
		return "", promptError(err)
	}
	return address, nil
}
