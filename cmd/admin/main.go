// Command admin manages FRA Atlas accounts from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"fraatlas/internal/config"
	"fraatlas/internal/database"
	"fraatlas/internal/models"
	"fraatlas/internal/repository"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "admin",
		Short:        "FRA Atlas account administration",
		SilenceUsage: true,
	}
	root.AddCommand(createSuperAdminCommand(), setRoleCommand(), listAdminsCommand())
	return root
}

func connect() (*gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func createSuperAdminCommand() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create-super-admin",
		Short: "Create a super admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(strings.ToLower(email))
			if email == "" || len(password) < 8 {
				return fmt.Errorf("--email and a --password of at least 8 characters are required")
			}
			if name == "" {
				name = strings.Split(email, "@")[0]
			}

			db, err := connect()
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			user := &models.User{Email: email, Password: string(hash)}
			profile := &models.Profile{Email: email, FullName: name, Role: models.RoleSuperAdmin}
			if err := repository.NewUserRepository(db).CreateWithProfile(cmd.Context(), user, profile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created super admin %s (ID: %d)\n", email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	return cmd
}

func setRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <user_id> <citizen|official|super_admin>",
		Short: "Change the role of an existing account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			role := models.Role(args[1])
			if !role.Valid() {
				return fmt.Errorf("invalid role %q", args[1])
			}

			db, err := connect()
			if err != nil {
				return err
			}
			if err := repository.NewProfileRepository(db).UpdateRole(cmd.Context(), uint(id), role); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d is now %s\n", id, role)
			return nil
		},
	}
}

func listAdminsCommand() *cobra.Command {
	var includeOfficials bool
	cmd := &cobra.Command{
		Use:   "list-admins",
		Short: "List super admins, and optionally officials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			roles := []models.Role{models.RoleSuperAdmin}
			if includeOfficials {
				roles = append(roles, models.RoleOfficial)
			}
			return listProfiles(cmd.Context(), cmd, repository.NewProfileRepository(db), roles)
		},
	}
	cmd.Flags().BoolVar(&includeOfficials, "officials", false, "include officials")
	return cmd
}

func listProfiles(ctx context.Context, cmd *cobra.Command, profiles repository.ProfileRepository, roles []models.Role) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tROLE\tEMAIL\tNAME")
	found := 0
	for _, role := range roles {
		list, _, err := profiles.List(ctx, repository.ProfileFilter{Role: role, Limit: 1000})
		if err != nil {
			return err
		}
		for _, p := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.UserID, p.Role, p.Email, p.FullName)
			found++
		}
	}
	if found == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts found")
		return nil
	}
	return w.Flush()
}
