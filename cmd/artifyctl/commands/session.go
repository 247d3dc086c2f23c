package commands

import (
	"fmt"

	"artify/internal/auth"
	"artify/internal/common"

	"github.com/spf13/cobra"
)

func newSignInCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: run(func(cmd *cobra.Command, provider *auth.Provider) error {
			email, _ := cmd.Flags().GetString(flagEmail)
			password, _ := cmd.Flags().GetString(flagPassword)

			user, err := provider.SignIn(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			return printJSON(cmd, user)
		}),
	}
	cmd.Flags().StringP(flagEmail, "e", "", "account email")
	cmd.Flags().StringP(flagPassword, "p", "", "account password")
	_ = cmd.MarkFlagRequired(flagEmail)
	_ = cmd.MarkFlagRequired(flagPassword)
	return cmd
}

func newSignUpCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long:  "Create an account. Sellers can upload artwork; buyers can become sellers later.",
		RunE: run(func(cmd *cobra.Command, provider *auth.Provider) error {
			email, _ := cmd.Flags().GetString(flagEmail)
			password, _ := cmd.Flags().GetString(flagPassword)
			role, _ := cmd.Flags().GetString(flagRole)
			invite, _ := cmd.Flags().GetString(flagInvite)

			result, err := provider.SignUp(cmd.Context(), auth.SignUpRequest{
				Email:       email,
				Password:    password,
				Role:        common.Role(role),
				InviteToken: invite,
			})
			if err != nil {
				if result != nil && result.Identity != nil {
					return fmt.Errorf("account %s was created but sign-up did not complete: %w", result.Identity.ID, err)
				}
				return fmt.Errorf("sign-up failed: %w", err)
			}
			if result.ConfirmationPending {
				fmt.Fprintln(cmd.OutOrStdout(), "Account created. Check your email to confirm your address.")
				return nil
			}
			return printJSON(cmd, result.User)
		}),
	}
	cmd.Flags().StringP(flagEmail, "e", "", "account email")
	cmd.Flags().StringP(flagPassword, "p", "", "account password")
	cmd.Flags().StringP(flagRole, "r", string(common.DefaultRole), "buyer or seller")
	cmd.Flags().StringP(flagInvite, "i", "", "invitation token")
	_ = cmd.MarkFlagRequired(flagEmail)
	_ = cmd.MarkFlagRequired(flagPassword)
	return cmd
}

func newSignOutCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out",
		RunE: run(func(cmd *cobra.Command, provider *auth.Provider) error {
			if err := provider.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("sign-out failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		}),
	}
}

func newWhoAmICmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: run(func(cmd *cobra.Command, provider *auth.Provider) error {
			snap := provider.Snapshot()
			if snap.User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			return printJSON(cmd, snap)
		}),
	}
}

func newResetPasswordCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset email",
		RunE: run(func(cmd *cobra.Command, provider *auth.Provider) error {
			email, _ := cmd.Flags().GetString(flagEmail)
			if err := provider.ResetPassword(cmd.Context(), email); err != nil {
				return fmt.Errorf("reset failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If an account exists for this email, a reset link has been sent.")
			return nil
		}),
	}
	cmd.Flags().StringP(flagEmail, "e", "", "account email")
	_ = cmd.MarkFlagRequired(flagEmail)
	return cmd
}
