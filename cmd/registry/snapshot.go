package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"conduit-registry/internal/encryption"
)

// readPassphrase prompts on stderr and reads without echo when stdin is a
// terminal; otherwise it reads one line from stdin.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return encryption.ErrKeysExist
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != pass {
				return errors.New("passphrases do not match")
			}
		}

		if err := enc.GenerateKeys(pass); err != nil {
			return err
		}
		recipient, err := enc.Recipient()
		if err != nil {
			return err
		}
		fmt.Println("Snapshot keys created")
		fmt.Printf("Public key:  %s\n", recipient)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Create and restore encrypted database snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the database into the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SnapshotCreate")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		s, err := a.Snapshotter(ctx)
		if err != nil {
			return err
		}
		info, err := s.Create(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Created snapshot %s (%d bytes)\n", info.Name, info.Size)
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SnapshotList")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		s, err := a.Snapshotter(ctx)
		if err != nil {
			return err
		}
		infos, err := s.List(ctx)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No snapshots.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%s  %s  %d bytes\n", info.Name, info.CreatedAt.Format(time.RFC3339), info.Size)
		}
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Decrypt a snapshot into a new database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp("SnapshotRestore")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		s, err := a.Snapshotter(ctx)
		if err != nil {
			return err
		}
		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		if err := s.Restore(ctx, args[0], pass, output); err != nil {
			return err
		}
		fmt.Printf("Restored %s to %s\n", args[0], output)
		fmt.Println("Stop the server and move the file over the live database to use it.")
		return nil
	},
}

func init() {
	keysCmd.AddCommand(keysInitCmd)
	rootCmd.AddCommand(keysCmd)

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotRestoreCmd.Flags().StringP("output", "o", "", "Path of the restored database file (must not exist)")
	snapshotRestoreCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(snapshotCmd)
}
