package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginName  string
	loginEmail string
)

// loginCmd registers this device to a user
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Register this device to a user",
	RunE:  runLogin,
}

// logoutCmd clears the cached user
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the cached user (the device id is kept)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

// whoamiCmd shows the current session
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user bound to this device",
	RunE:  runWhoami,
}

func runLogin(cmd *cobra.Command, args []string) error {
	if sess.User() != nil {
		// Revalidate; the backend may have dropped the device.
		sess.Validate(cmd.Context())
	}
	if user := sess.User(); user != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Already registered as %s (%s)\n", user.Name, user.Role)
		return nil
	}

	user, err := sess.Register(cmd.Context(), loginName, loginEmail)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered as %s (%s)\n", user.Name, user.Role)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	if err := requireUser(cmd); err != nil {
		return err
	}
	user := sess.User()
	deviceID, err := sess.DeviceID()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:    %s\n", user.Name)
	if user.Email != "" {
		fmt.Fprintf(out, "Email:   %s\n", user.Email)
	}
	fmt.Fprintf(out, "Role:    %s\n", user.Role)
	fmt.Fprintf(out, "Device:  %s\n", deviceID)
	fmt.Fprintf(out, "Backend: %s\n", apiClient.BaseURL())
	return nil
}

func init() {
	loginCmd.Flags().StringVar(&loginName, "name", "", "display name to register (required)")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "contact email (optional)")
	loginCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
