package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/perch-social/perch/internal/client"
	"github.com/perch-social/perch/internal/client/ui"

	"github.com/spf13/cobra"
)

type options struct {
	serverURL string
	plain     bool
	noBrowser bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "perch",
		Short:         "Perch command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultServer := os.Getenv("PERCH_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", defaultServer, "perchd base URL")
	cmd.PersistentFlags().BoolVar(&opts.plain, "plain", false, "plain text output, no interactive UI")
	cmd.AddCommand(newLoginCommand(opts), newLogoutCommand(opts), newWhoamiCommand(opts))
	return cmd
}

func newLoginCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and store a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := client.SessionFilePath()
			if err != nil {
				return err
			}
			api := client.NewAPIClient(opts.serverURL)

			// Reuse a still-valid stored session before starting a handshake.
			if token := client.LoadToken(path); token != "" {
				user, err := api.Validate(cmd.Context(), token)
				if err == nil {
					fmt.Printf("already logged in as %s\n", user.Login)
					return nil
				}
				if !errors.Is(err, client.ErrUnauthorized) {
					return err
				}
				if err := client.DeleteToken(path); err != nil {
					return err
				}
			}

			result, err := runLogin(cmd.Context(), api, opts)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return errors.New("login cancelled")
				}
				return err
			}
			if err := client.SaveToken(path, result.SessionToken); err != nil {
				// The session itself is live; only persistence failed.
				fmt.Fprintf(os.Stderr, "warning: could not store session, you will need to log in again next time: %v\n", err)
			}
			fmt.Printf("logged in as %s\n", result.User.Login)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "don't open the verification page automatically")
	return cmd
}

func runLogin(ctx context.Context, api *client.APIClient, opts *options) (*client.LoginResult, error) {
	if opts.plain {
		orchestrator := client.NewOrchestrator(api, func(n client.LoginNotice) {
			fmt.Printf("Enter this code at %s\n\n    %s\n\n", n.VerificationURI, n.UserCode)
			maybeOpenBrowser(opts, n.VerificationURI)
		})
		return orchestrator.Login(ctx)
	}

	var result *client.LoginResult
	err := ui.Run(ctx, "perch login", func(ctx context.Context, session *ui.Session) error {
		session.Status("waiting for approval...")
		orchestrator := client.NewOrchestrator(api, func(n client.LoginNotice) {
			session.ShowCode(n.UserCode, n.VerificationURI)
			maybeOpenBrowser(opts, n.VerificationURI)
		})
		var loginErr error
		result, loginErr = orchestrator.Login(ctx)
		return loginErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func maybeOpenBrowser(opts *options, url string) {
	if opts.noBrowser {
		return
	}
	// Best effort; the URI is on screen regardless.
	_ = client.OpenBrowser(url)
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := client.SessionFilePath()
			if err != nil {
				return err
			}
			token := client.LoadToken(path)
			if token == "" {
				fmt.Println("not logged in")
				return nil
			}
			// The server side may already be gone; the local file goes
			// away either way.
			if err := client.NewAPIClient(opts.serverURL).Logout(cmd.Context(), token); err != nil && !errors.Is(err, client.ErrUnauthorized) {
				fmt.Fprintf(os.Stderr, "warning: server logout failed: %v\n", err)
			}
			if err := client.DeleteToken(path); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user the stored session belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := client.SessionFilePath()
			if err != nil {
				return err
			}
			token := client.LoadToken(path)
			if token == "" {
				return errors.New("not logged in")
			}
			user, err := client.NewAPIClient(opts.serverURL).Validate(cmd.Context(), token)
			if err != nil {
				if errors.Is(err, client.ErrUnauthorized) {
					return errors.New("session is no longer valid, run `perch login`")
				}
				return err
			}
			if opts.plain {
				fmt.Println(user.Login)
				return nil
			}
			fmt.Printf("%s (user id %d)\n", user.Login, user.ID)
			return nil
		},
	}
}
