package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/credentials"
)

// backendsCmd lists the backend catalogue
var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List supported backends and their models",
	RunE:  runBackends,
}

// loginCmd stores a credential in the OS keyring
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify a credential and store it in the OS keyring",
	Long: `Verify a credential against the selected backend and store it in the OS
keyring. Without --credential the credential is read from stdin.`,
	RunE: runLogin,
}

// logoutCmd removes a stored credential
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential for a backend",
	RunE:  runLogout,
}

// verifyCmd checks connectivity and the credential
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the credential and connectivity for a backend",
	RunE:  runVerify,
}

// modelsCmd lists models
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models (installed models for ollama)",
	RunE:  runModels,
}

// warmupCmd keeps a local model loaded
var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Load a local model into memory ahead of a session",
	RunE:  runWarmup,
}

func runBackends(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, s := range backend.All() {
		color.New(color.Bold).Fprintf(out, "%s", s.Label)
		fmt.Fprintf(out, " (%s)", s.ID)
		var tags []string
		if s.Discovery {
			tags = append(tags, "local")
		}
		if s.Transcription {
			tags = append(tags, "transcription")
		}
		if len(tags) > 0 {
			color.New(color.FgCyan).Fprintf(out, " [%s]", strings.Join(tags, ", "))
		}
		fmt.Fprintln(out)
		if s.HelpURL != "" {
			fmt.Fprintf(out, "  key: %s\n", s.HelpURL)
		}
		for _, m := range s.Models {
			fmt.Fprintf(out, "  - %-40s %s\n", m.ID, m.Label)
		}
	}
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	id, err := backend.Parse(backendName)
	if err != nil {
		return err
	}

	cred := strings.TrimSpace(credential)
	if cred == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s credential: ", label(id))
		cred, err = readLine(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if cred == "" {
		return errors.New("credential cannot be empty")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	ok, msg := newAdapter().Verify(ctx, cred, id)
	if !ok {
		color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), msg)
		return errors.New("credential not stored")
	}
	if err := credentials.Set(id, cred); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), msg)
	fmt.Fprintf(cmd.OutOrStdout(), "Stored credential for %s in the OS keyring.\n", label(id))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	id, err := backend.Parse(backendName)
	if err != nil {
		return err
	}
	err = credentials.Delete(id)
	if errors.Is(err, credentials.ErrNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "No stored credential for %s.\n", label(id))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed credential for %s.\n", label(id))
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	conn, err := target()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	ok, msg := newAdapter().Verify(ctx, conn.Credential, conn.Backend)
	if !ok {
		color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), msg)
		return errors.New("verification failed")
	}
	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	id, err := backend.Parse(backendName)
	if err != nil {
		return err
	}
	// Listing needs no credential except for a non-default ollama URL.
	cred := credential
	if id == backend.Ollama && cred == "" {
		cred, _, _ = credentials.Resolve(id, "")
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	models, err := newAdapter().Models(ctx, id, cred)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Placeholder {
			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), m.Label)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %s\n", m.ID, m.Label)
	}
	return nil
}

func runWarmup(cmd *cobra.Command, args []string) error {
	conn, err := target()
	if err != nil {
		return err
	}
	spec, _ := backend.Lookup(conn.Backend)
	if !spec.KeepWarm {
		fmt.Fprintf(cmd.OutOrStdout(), "%s keeps models loaded on its own; nothing to do.\n", spec.Label)
		return nil
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	newAdapter().Warmup(ctx, conn.Backend, conn.Credential, conn.Model)
	fmt.Fprintf(cmd.OutOrStdout(), "Asked %s to keep %s loaded.\n", spec.Label, conn.Model)
	return nil
}

func label(id backend.Identity) string {
	if s, err := backend.Lookup(id); err == nil {
		return s.Label
	}
	return string(id)
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
