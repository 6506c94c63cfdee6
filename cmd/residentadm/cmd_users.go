package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/residents/internal/auth"
	"github.com/JonMunkholm/residents/internal/core"
)

var (
	seedFile string

	newUsername     string
	newPassword     string
	newFullName     string
	newRole         string
	newSecretariats []string
)

var seedUsersCmd = &cobra.Command{
	Use:   "seed-users",
	Short: "Create users from a YAML seed file",
	Long: `Reads a users file and creates every user that does not exist yet.
Existing usernames are left untouched.`,
	RunE: runSeedUsers,
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a single user",
	RunE:  runCreateUser,
}

var setPasswordCmd = &cobra.Command{
	Use:   "set-password USERNAME",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetPassword,
}

func init() {
	seedUsersCmd.Flags().StringVarP(&seedFile, "file", "f", "users.yaml", "users seed file")

	createUserCmd.Flags().StringVar(&newUsername, "username", "", "login name")
	createUserCmd.Flags().StringVar(&newPassword, "password", "", "initial password")
	createUserCmd.Flags().StringVar(&newFullName, "name", "", "display name")
	createUserCmd.Flags().StringVar(&newRole, "role", core.RoleFieldOfficer, "role: "+strings.Join(core.Roles, ", "))
	createUserCmd.Flags().StringSliceVar(&newSecretariats, "secretariat", nil, "assigned secretariat (repeatable)")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")

	setPasswordCmd.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = setPasswordCmd.MarkFlagRequired("password")
}

func runSeedUsers(cmd *cobra.Command, args []string) error {
	seeds, err := auth.LoadSeedFile(seedFile)
	if err != nil {
		return err
	}
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		created, err := b.service.SeedUsers(ctx, seeds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d users\n", created, len(seeds))
		return nil
	})
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	if !core.ValidRole(newRole) {
		return fmt.Errorf("unknown role %q (want one of %s)", newRole, strings.Join(core.Roles, ", "))
	}
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		u, err := b.service.CreateUser(ctx, systemActor, core.NewUser{
			Username:     newUsername,
			Password:     newPassword,
			FullName:     newFullName,
			Role:         newRole,
			Secretariats: newSecretariats,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, %s)\n", u.Username, u.ID, u.Role)
		return nil
	})
}

func runSetPassword(cmd *cobra.Command, args []string) error {
	username := core.NormalizeUsername(args[0])
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		u, err := b.store.GetUserByUsername(ctx, username)
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("no user named %q", username)
		}
		if err != nil {
			return err
		}
		if err := b.service.ResetPassword(ctx, systemActor, u.ID, newPassword); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", u.Username)
		return nil
	})
}
