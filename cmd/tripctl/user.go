package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/trip-control-api/internal/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with a bcrypt hashed password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.Auth.CreateUser(cmd.Context(), models.CreateUserRequest{
			Email:    email,
			Password: password,
			FullName: name,
			Role:     parseRole(role),
		})
		if err != nil {
			return describe(err)
		}
		fmt.Printf("created %s (%s) id=%s\n", user.Email, user.Role, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		role, _ := cmd.Flags().GetString("role")
		page, _ := cmd.Flags().GetInt("page")

		filter := models.UserFilter{Search: search, Page: page, PageSize: 50}
		if role != "" {
			r := parseRole(role)
			filter.Role = &r
		}

		app, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		users, pagination, err := app.Users.List(cmd.Context(), filter)
		if err != nil {
			return describe(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tNAME\tROLE\tACTIVE\tLAST LOGIN\t")
		for _, u := range users {
			last := "-"
			if u.LastLogin != nil {
				last = u.LastLogin.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t\n", u.Email, u.FullName, u.Role, u.Active, last)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("page %d, %d accounts in total\n", pagination.Page, pagination.TotalCount)
		return nil
	},
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Block an account from logging in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], false)
	},
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <email>",
	Short: "Allow a disabled account to log in again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setActive(cmd, args[0], true)
	},
}

func setActive(cmd *cobra.Command, email string, active bool) error {
	app, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	user, err := app.Users.SetActive(cmd.Context(), email, active)
	if err != nil {
		return describe(err)
	}
	fmt.Printf("%s active=%t\n", user.Email, user.Active)
	return nil
}

func parseRole(raw string) models.UserRole {
	return models.UserRole(strings.ToUpper(strings.TrimSpace(raw)))
}

func init() {
	userCreateCmd.Flags().StringP("email", "e", "", "Login email")
	userCreateCmd.Flags().StringP("password", "p", "", "Initial password (min 8 characters)")
	userCreateCmd.Flags().StringP("name", "n", "", "Full name stamped on edits")
	userCreateCmd.Flags().StringP("role", "r", string(models.RoleViewer), "ADMIN, ANALYST, OPERATOR or VIEWER")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
	_ = userCreateCmd.MarkFlagRequired("name")

	userListCmd.Flags().StringP("search", "s", "", "Match email or name")
	userListCmd.Flags().StringP("role", "r", "", "Only this role")
	userListCmd.Flags().Int("page", 1, "Page number")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDisableCmd)
	userCmd.AddCommand(userEnableCmd)
	rootCmd.AddCommand(userCmd)
}
