package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/farmcart/farmcart/pkg/cli/internal/output"
	"github.com/farmcart/farmcart/pkg/marketplace"
	"github.com/farmcart/farmcart/pkg/session"
)

// WhoamiOutput is the JSON form of the current session.
type WhoamiOutput struct {
	User      string     `json:"user"`
	Name      string     `json:"name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired"`
}

func whoami(claims *session.Claims) WhoamiOutput {
	out := WhoamiOutput{
		User:    claims.User(),
		Name:    claims.Name,
		Phone:   claims.Phone,
		Role:    claims.Role,
		Expired: claims.Expired(time.Now()),
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		out.ExpiresAt = &t
	}
	return out
}

func newLoginCmd(g *globalFlags) *cobra.Command {
	var creds marketplace.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the marketplace",
		Long: `Sign in with a phone number (or email) and password. The session token is
stored locally and sent with every later command.

When credentials are missing and the terminal is interactive, a prompt asks for them.`,
		Example: `  farmcart login --phone 0100000001 --password secret
  farmcart login --email ada@example.com --role farmer`,
		Args: cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, _ []string) error {
			if creds.Password == "" || (creds.Phone == "" && creds.Email == "") {
				if !isTerminal() {
					return errors.New("--phone (or --email) and --password are required")
				}
				if err := promptCredentials(&creds); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			defer a.market.ClearStatus(marketplace.Profile, marketplace.CategoryLogin)
			claims, err := a.market.Login(ctx, creds)
			if err != nil {
				return err
			}
			if a.json {
				return output.JSON(a.out, whoami(claims))
			}
			st := a.market.SelectStatus(marketplace.Profile, marketplace.CategoryLogin)
			output.Success(a.out, st.Message)
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", displayName(claims), a.market.Role())
			return nil
		}),
	}
	cmd.Flags().StringVar(&creds.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&creds.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Password")
	cmd.Flags().StringVar(&creds.Role, "as", "", "Require the account to have this role")
	return cmd
}

func promptCredentials(creds *marketplace.Credentials) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Phone number").
				Placeholder("0100000001").
				Value(&creds.Phone).
				Validate(func(s string) error {
					if s == "" && creds.Email == "" {
						return errors.New("phone number is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&creds.Password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
		),
	)
	return form.Run()
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, _ []string) error {
			if err := a.market.Logout(cmd.Context()); err != nil {
				return err
			}
			if a.json {
				return output.JSON(a.out, map[string]bool{"loggedOut": true})
			}
			output.Success(a.out, "Logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, _ []string) error {
			_, claims, err := session.Current(cmd.Context(), a.market.Tokens())
			if err != nil {
				return err
			}
			out := whoami(claims)
			if a.json {
				return output.JSON(a.out, out)
			}
			tw := output.Table(a.out)
			fmt.Fprintf(tw, "User:\t%s\n", displayName(claims))
			fmt.Fprintf(tw, "Role:\t%s\n", out.Role)
			if out.Phone != "" {
				fmt.Fprintf(tw, "Phone:\t%s\n", out.Phone)
			}
			if out.ExpiresAt != nil {
				fmt.Fprintf(tw, "Expires:\t%s\n", out.ExpiresAt.Local().Format(time.RFC1123))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if out.Expired {
				output.Warn(a.errOut, "session expired, run `farmcart login` again")
			}
			return nil
		}),
	}
}

func displayName(c *session.Claims) string {
	if c.Name != "" {
		return fmt.Sprintf("%s (#%s)", c.Name, c.User())
	}
	return "#" + c.User()
}

// isTerminal checks if stdin is a terminal.
func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
