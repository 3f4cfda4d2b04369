package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage dashboard users",
	Long:  `Create and list the users that may sign in to the dashboard.`,
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Interactively create a user. The username and email may also be
given as flags; the password is always prompted for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		reader := bufio.NewReader(cmd.InOrStdin())

		username, _ := cmd.Flags().GetString("username")
		if username == "" {
			fmt.Fprint(out, "Username: ")
			line, err := readLine(reader)
			if err != nil {
				return fmt.Errorf("failed to read username: %w", err)
			}
			username = line
		}

		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			fmt.Fprint(out, "Email: ")
			line, err := readLine(reader)
			if err != nil {
				return fmt.Errorf("failed to read email: %w", err)
			}
			email = line
		}

		fmt.Fprint(out, "Password: ")
		password, err := readPassword(cmd, reader)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprint(out, "Confirm password: ")
		confirm, err := readPassword(cmd, reader)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		user, err := userService.Register(cmd.Context(), username, email, password)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Fprintln(out, "User created.")
		fmt.Fprintf(out, "  ID:       %s\n", user.ID)
		fmt.Fprintf(out, "  Username: %s\n", user.Username)
		fmt.Fprintf(out, "  Email:    %s\n", user.Email)
		return nil
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		users, err := userService.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			fmt.Fprintln(out, "No users yet.")
			return nil
		}

		fmt.Fprintf(out, "%-36s  %-20s  %-30s  %s\n", "ID", "USERNAME", "EMAIL", "CREATED")
		for _, u := range users {
			fmt.Fprintf(out, "%-36s  %-20s  %-30s  %s\n", u.ID, u.Username, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(out, "%d user(s)\n", len(users))
		return nil
	},
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise
func readPassword(cmd *cobra.Command, reader *bufio.Reader) (string, error) {
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(password), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	userCreateCmd.Flags().String("username", "", "username of the new user")
	userCreateCmd.Flags().String("email", "", "email address of the new user")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
}
