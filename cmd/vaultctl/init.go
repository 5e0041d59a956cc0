package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/buildstream-io/buildstream/internal/domain"
)

var (
	initUsername string

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Seed the admin registration credential",
		Long: `Creates the vault passphrase file if it does not exist, then writes
the admin registration credential into the encrypted auth-config vault.
Registered clients already present in a shared vault file are preserved.`,
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().StringVar(&initUsername, "username", "admin",
		"admin registration username")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(passwordFile); errors.Is(err, os.ErrNotExist) {
		passphrase, err := readConfirmedSecret("New vault passphrase: ", "Confirm vault passphrase: ")
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(passwordFile), 0o700); err != nil {
			return fmt.Errorf("creating passphrase directory: %w", err)
		}
		if err := os.WriteFile(passwordFile, append(passphrase, '\n'), 0o600); err != nil {
			return fmt.Errorf("writing passphrase file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created passphrase file %s\n", passwordFile)
	} else if err != nil {
		return fmt.Errorf("checking passphrase file: %w", err)
	}

	password, err := readConfirmedSecret("Admin registration password: ", "Confirm password: ")
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	if err := st.Admin().SetCredential(cmd.Context(), domain.AdminCredential{
		Username: initUsername,
		Password: string(password),
	}); err != nil {
		return fmt.Errorf("writing admin credential: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Admin credential for %q written to %s\n", initUsername, authConfigPath)
	return nil
}

// readConfirmedSecret prompts twice for a secret without echoing input.
func readConfirmedSecret(prompt, confirmPrompt string) ([]byte, error) {
	first, err := readSecret(prompt)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errors.New("empty secret not allowed")
	}
	second, err := readSecret(confirmPrompt)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(first, second) {
		return nil, errors.New("secrets do not match")
	}
	return first, nil
}

func readSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("cannot read secret: stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return secret, nil
}
