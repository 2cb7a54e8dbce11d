package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/sharedpasswords/internal/config"
	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/atinyakov/sharedpasswords/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// facadeBuilder turns resolved options into a facade. Whoever supplies the
// builder owns the facade's cleanup.
type facadeBuilder func(*config.Options) (*service.SharedPasswords, error)

type cli struct {
	build facadeBuilder

	configPath string
	overrides  config.Options

	facade *service.SharedPasswords
	// domain is the resolved default domain.
	domain string
}

func newRootCmd(build facadeBuilder) *cobra.Command {
	c := &cli{build: build}

	root := &cobra.Command{
		Use:           "sharedpasswords",
		Short:         "Use the system password and passkey store",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "path to config file")
	pf.StringVar(&c.overrides.DefaultDomain, "domain", "", "credential domain")
	pf.StringVar(&c.overrides.Backend, "backend", "", "credential backend: keyring, plugin or none")
	pf.StringVar(&c.overrides.Generation, "bridge", "", "bridge generation: modern or legacy")
	pf.StringVar(&c.overrides.HelperPath, "helper", "", "credential helper binary")
	pf.StringVar(&c.overrides.HostConfig, "host-config", "", "host descriptor file")
	pf.StringVar(&c.overrides.LogLevel, "log-level", "", "log level")

	root.AddCommand(
		c.envCmd(),
		c.supportCmd(),
		c.autofillCmd(),
		c.saveCmd(),
		c.hasCmd(),
		c.deleteCmd(),
		c.passkeyCmd(),
	)
	return root
}

// open loads config, applies flags that were set and builds the facade.
func (c *cli) open(cmd *cobra.Command) error {
	o, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	override("domain", &o.DefaultDomain, c.overrides.DefaultDomain)
	override("backend", &o.Backend, c.overrides.Backend)
	override("bridge", &o.Generation, c.overrides.Generation)
	override("helper", &o.HelperPath, c.overrides.HelperPath)
	override("host-config", &o.HostConfig, c.overrides.HostConfig)
	override("log-level", &o.LogLevel, c.overrides.LogLevel)
	if o.LogLevel == "info" && !flags.Changed("log-level") {
		// keep command output readable
		o.LogLevel = "warn"
	}

	c.domain = o.DefaultDomain
	c.facade, err = c.build(o)
	return err
}

func (c *cli) envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the detected runtime environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Environment: %s (%s)\n", c.facade.Environment(), c.facade.DescribeEnvironment())
			fmt.Fprintln(out, c.facade.GetEnvironmentInfo())
			return nil
		},
	}
}

func (c *cli) supportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "support",
		Short: "Show which credential features this host supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), c.facade.GetPlatformSupport(cmd.Context()))
		},
	}
}

func (c *cli) autofillCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "autofill",
		Short: "Pick a saved credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := c.facade.RequestPasswordAutoFill(cmd.Context())
			if err != nil {
				return err
			}
			password := strings.Repeat("*", len(cred.Password))
			if show {
				password = cred.Password
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Username: %s\nPassword: %s\n", cred.Username, password)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the password in clear text")
	return cmd
}

func (c *cli) saveCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "save <username>",
		Short: "Save a password to the system store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				var err error
				password, err = promptLine(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
				if err != nil {
					return err
				}
			}
			res, err := c.facade.SavePassword(cmd.Context(), models.SavePasswordOptions{
				Username: args[0],
				Password: password,
				Domain:   domainFlag(cmd),
			})
			if err != nil {
				return err
			}
			return reportResult(cmd.OutOrStdout(), "Password saved", res)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password; read from stdin when empty")
	return cmd
}

func (c *cli) hasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "has",
		Short: "Check whether credentials are stored for the domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.facade.HasStoredCredentials(cmd.Context(), domainFlag(cmd)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials: yes")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Stored credentials: no")
			}
			return nil
		},
	}
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.facade.DeleteCredential(cmd.Context(), models.DeleteCredentialOptions{
				Username: args[0],
				Domain:   domainFlag(cmd),
			})
			if err != nil {
				return err
			}
			return reportResult(cmd.OutOrStdout(), "Credential deleted", res)
		},
	}
}

func (c *cli) passkeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passkey",
		Short: "Create or use a passkey",
	}

	var rpID, userName, userID, displayName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new passkey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			challenge, err := newChallenge()
			if err != nil {
				return err
			}
			if userID == "" {
				id := uuid.New()
				userID = base64.RawURLEncoding.EncodeToString(id[:])
			}
			cred, err := c.facade.CreatePasskey(cmd.Context(), models.CreatePasskeyOptions{
				RPID:            c.orDomain(rpID),
				Challenge:       challenge,
				UserID:          userID,
				UserName:        userName,
				UserDisplayName: displayName,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cred)
		},
	}
	create.Flags().StringVar(&rpID, "rp-id", "", "relying party id; defaults to --domain")
	create.Flags().StringVar(&userName, "user-name", "", "account name")
	create.Flags().StringVar(&userID, "user-id", "", "base64 user handle; random when empty")
	create.Flags().StringVar(&displayName, "display-name", "", "display name; defaults to --user-name")
	_ = create.MarkFlagRequired("user-name")

	var loginRPID string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an existing passkey",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			challenge, err := newChallenge()
			if err != nil {
				return err
			}
			cred, err := c.facade.AuthenticateWithPasskey(cmd.Context(), models.AuthenticatePasskeyOptions{
				RPID:      c.orDomain(loginRPID),
				Challenge: challenge,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cred)
		},
	}
	login.Flags().StringVar(&loginRPID, "rp-id", "", "relying party id; defaults to --domain")

	cmd.AddCommand(create, login)
	return cmd
}

func domainFlag(cmd *cobra.Command) string {
	d, _ := cmd.Flags().GetString("domain")
	return d
}

func (c *cli) orDomain(rpID string) string {
	if rpID != "" {
		return rpID
	}
	return c.domain
}

// newChallenge returns 32 random bytes as standard base64. A real relying
// party issues the challenge itself.
func newChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func promptLine(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func reportResult(out io.Writer, success string, res *models.OperationResult) error {
	if !res.Success {
		return fmt.Errorf("operation failed: %s", res.Error)
	}
	fmt.Fprintln(out, success)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
