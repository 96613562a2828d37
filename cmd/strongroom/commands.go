package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/strongroom-app/strongroom-go/api"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if app.manager.Snapshot().IsAuthenticated {
				fmt.Println("Already signed in.")
				printStatus(app)
				return nil
			}

			displayAppname(app.config.GetAppName())
			app.manager.Login(cmd.Context())

			if !app.manager.Snapshot().IsAuthenticated {
				return fmt.Errorf("sign-in did not complete")
			}
			printStatus(app)
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			app.manager.Logout(cmd.Context())
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			printStatus(app)
			return nil
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force an access token refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			app.manager.RefreshAccessToken(cmd.Context())
			printStatus(app)
			return nil
		},
	}
}

func newVaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vaults",
		Short: "List vaults visible to the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.close()

			if !app.manager.Snapshot().IsAuthenticated {
				return fmt.Errorf("not signed in, run `strongroom login` first")
			}

			client := api.NewClient(app.manager)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, app.config.GetAPIBaseURL()+"/v1/vaults", nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("list vaults: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("backend returned %d: %s", resp.StatusCode, body)
			}
			fmt.Println(string(body))
			return nil
		},
	}
}

func printStatus(app *app) {
	snapshot := app.manager.Snapshot()
	if !snapshot.IsAuthenticated {
		fmt.Println("Not signed in.")
		return
	}

	fmt.Println("Signed in.")
	if snapshot.User != nil {
		if snapshot.User.Name != "" {
			fmt.Printf("  Name:     %s\n", snapshot.User.Name)
		}
		if snapshot.User.Email != "" {
			fmt.Printf("  Email:    %s\n", snapshot.User.Email)
		}
		fmt.Printf("  Subject:  %s\n", snapshot.User.Subject)
	}
	fmt.Printf("  Access token expires:  %s\n", snapshot.AccessTokenExpiresAt.Format(time.RFC1123))
	fmt.Printf("  Refresh token expires: %s\n", snapshot.RefreshTokenExpiresAt.Format(time.RFC1123))
}
