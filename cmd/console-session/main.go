// ABOUTME: Operator CLI for the admin and partner console sessions
// ABOUTME: Signs in and out, inspects and patches the stored session, evaluates guards and sends GraphQL queries

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/console-session/internal/config"
	"github.com/2389/console-session/internal/console"
	"github.com/2389/console-session/internal/graphql"
	"github.com/2389/console-session/internal/logging"
	"github.com/2389/console-session/internal/metrics"
	"github.com/2389/console-session/internal/session"
	"github.com/2389/console-session/internal/transport"
)

const banner = `
                       _
  ___ ___  _ __  ___  | | ___        ___  ___  ___ ___
 / __/ _ \| '_ \/ __| | |/ _ \ _____/ __|/ _ \/ __/ __|
| (_| (_) | | | \__ \ | |  __/|_____\__ \  __/\__ \__ \
 \___\___/|_| |_|___/ |_|\___|      |___/\___||___/___/
`

// watchInterval is how often watch polls the database for other processes' writes.
const watchInterval = 500 * time.Millisecond

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "schema":
		if err := cmdSchema(); err != nil {
			color.Red("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cmd, args); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	e, err := config.ParseEnv()
	if err != nil {
		return err
	}
	profile, ok := session.ProfileByName(e.App)
	if !ok {
		return fmt.Errorf("CONSOLE_APP %q is not an application (use admin or partner)", e.App)
	}

	cfg, cfgPath, err := e.Resolve()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	if cfgPath != "" {
		logger.Debug("loaded config", "path", cfgPath)
	}

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		metrics.RegisterMetrics(reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := console.Open(ctx, cfg, profile, console.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer c.Close()

	switch cmd {
	case "login":
		return cmdLogin(ctx, c, args)
	case "logout":
		return cmdLogout(ctx, c)
	case "status":
		return cmdStatus(c)
	case "update-user":
		return cmdUpdateUser(ctx, c, args)
	case "update-partner":
		return cmdUpdatePartner(ctx, c, args)
	case "guard":
		return cmdGuard(c, args)
	case "query":
		return cmdQuery(ctx, c, args)
	case "watch":
		return cmdWatch(ctx, c, cfg.Metrics, reg, logger)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: console-session <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login                   Store a signed-in session (see flags below)")
	fmt.Println("  logout                  Clear the stored session")
	fmt.Println("  status                  Show the stored session")
	fmt.Println("  update-user             Patch the signed-in user")
	fmt.Println("  update-partner          Patch the partner organization (partner only)")
	fmt.Println("  guard <path>            Evaluate the route guard for a view path")
	fmt.Println("  query <graphql>         Send a GraphQL operation with the stored credential")
	fmt.Println("  watch                   Print session changes made by other processes")
	fmt.Println("  schema                  Print the JSON Schema of the stored snapshot")
	fmt.Println()
	yellow.Println("Login flags:")
	fmt.Println("  --id --email --first --last --role [--avatar]")
	fmt.Println("  --token <access> [--refresh <refresh>]")
	fmt.Println("  --org-id --org-name [--trade-name --logo --org-status]   (partner)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CONSOLE_APP              admin or partner (default: partner)")
	fmt.Println("  CONSOLE_CONFIG           Config file (default: ~/.config/console-session/config.yaml)")
	fmt.Println("  CONSOLE_DATA_DIR         Database directory when no config file exists")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  CONSOLE_APP=admin console-session login --id 1 --email a@x.com --first A --last B --role super_admin --token tok")
	fmt.Println("  console-session guard /dashboard")
	fmt.Println("  console-session query '{ me { id } }' --var limit=10")
	fmt.Println()
}

// flagValue returns the value following args[i], advancing i.
func flagValue(args []string, i *int) (string, error) {
	name := args[*i]
	if *i+1 >= len(args) {
		return "", fmt.Errorf("%s requires a value", name)
	}
	*i++
	return args[*i], nil
}

// cmdLogin stores a session from flags
func cmdLogin(ctx context.Context, c *console.Console, args []string) error {
	var id session.Identity
	var creds session.Credentials
	var org session.Organization

	for i := 0; i < len(args); i++ {
		v, err := flagValue(args, &i)
		if err != nil {
			return err
		}
		switch args[i-1] {
		case "--id":
			id.ID = v
		case "--email":
			id.Email = v
		case "--first":
			id.FirstName = v
		case "--last":
			id.LastName = v
		case "--avatar":
			id.Avatar = v
		case "--role":
			id.Role = session.Role(v)
		case "--token":
			creds.AccessToken = v
		case "--refresh":
			creds.RefreshToken = v
		case "--org-id":
			org.ID = v
		case "--org-name":
			org.Name = v
		case "--trade-name":
			org.TradeName = v
		case "--logo":
			org.Logo = v
		case "--org-status":
			org.Status = session.OrganizationStatus(v)
		default:
			return fmt.Errorf("unknown flag %s", args[i-1])
		}
	}

	var orgPtr *session.Organization
	if org != (session.Organization{}) {
		if org.Status == "" {
			org.Status = session.OrganizationPending
		}
		orgPtr = &org
	}

	if err := c.Session.SetAuth(ctx, id, creds, orgPtr); err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("✓ Signed in to %s as %s (%s)\n", c.Profile.Name, id.Email, id.Role)
	return nil
}

// cmdLogout clears the session
func cmdLogout(ctx context.Context, c *console.Console) error {
	c.Session.Logout(ctx)
	color.New(color.FgGreen).Printf("✓ Signed out of %s\n", c.Profile.Name)
	return nil
}

// cmdStatus shows the stored session
func cmdStatus(c *console.Console) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	st := c.Session.State()

	fmt.Println()
	cyan.Printf("  %s session\n", c.Profile.Name)
	cyan.Println("  " + strings.Repeat("-", len(c.Profile.Name)+8))

	if !st.Authenticated() {
		yellow.Printf("  Status:         ")
		fmt.Println("signed out")
		fmt.Println()
		return nil
	}

	green.Printf("  Status:         ")
	fmt.Println("signed in")
	fmt.Printf("  User ID:        %s\n", st.Identity.ID)
	fmt.Printf("  Name:           %s %s\n", st.Identity.FirstName, st.Identity.LastName)
	fmt.Printf("  Email:          %s\n", st.Identity.Email)
	fmt.Printf("  Role:           %s\n", st.Identity.Role)
	if st.Identity.Avatar != "" {
		fmt.Printf("  Avatar:         %s\n", st.Identity.Avatar)
	}
	fmt.Printf("  Credentials:    %s\n", st.Credentials)
	if exp, ok := transport.ExpiresAt(st.Credentials.AccessToken); ok {
		if exp.Before(time.Now()) {
			yellow.Printf("  Expires:        %s (expired)\n", exp.Local().Format(time.RFC3339))
		} else {
			fmt.Printf("  Expires:        %s\n", exp.Local().Format(time.RFC3339))
		}
	}

	if st.Organization != nil {
		fmt.Println()
		cyan.Println("  Organization")
		cyan.Println("  ------------")
		fmt.Printf("  ID:             %s\n", st.Organization.ID)
		fmt.Printf("  Name:           %s\n", st.Organization.Name)
		if st.Organization.TradeName != "" {
			fmt.Printf("  Trade Name:     %s\n", st.Organization.TradeName)
		}
		fmt.Printf("  Status:         %s\n", st.Organization.Status)
	}
	fmt.Println()
	return nil
}

// cmdUpdateUser patches the signed-in user
func cmdUpdateUser(ctx context.Context, c *console.Console, args []string) error {
	var patch session.IdentityPatch

	for i := 0; i < len(args); i++ {
		v, err := flagValue(args, &i)
		if err != nil {
			return err
		}
		switch args[i-1] {
		case "--email":
			patch.Email = &v
		case "--first":
			patch.FirstName = &v
		case "--last":
			patch.LastName = &v
		case "--avatar":
			patch.Avatar = &v
		case "--role":
			role := session.Role(v)
			patch.Role = &role
		default:
			return fmt.Errorf("unknown flag %s", args[i-1])
		}
	}

	if err := c.Session.UpdateIdentity(ctx, patch); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("✓ User updated")
	return nil
}

// cmdUpdatePartner patches the partner organization
func cmdUpdatePartner(ctx context.Context, c *console.Console, args []string) error {
	var patch session.OrganizationPatch

	for i := 0; i < len(args); i++ {
		v, err := flagValue(args, &i)
		if err != nil {
			return err
		}
		switch args[i-1] {
		case "--name":
			patch.Name = &v
		case "--trade-name":
			patch.TradeName = &v
		case "--logo":
			patch.Logo = &v
		case "--status":
			status := session.OrganizationStatus(v)
			patch.Status = &status
		default:
			return fmt.Errorf("unknown flag %s", args[i-1])
		}
	}

	if err := c.Session.UpdateOrganization(ctx, patch); err != nil {
		return err
	}
	color.New(color.FgGreen).Println("✓ Organization updated")
	return nil
}

// cmdGuard evaluates the route guard for a path
func cmdGuard(c *console.Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: console-session guard <path>")
	}

	d := c.Guard.Evaluate(args[0])
	if d.Allow {
		color.New(color.FgGreen).Printf("ALLOW %s\n", args[0])
	} else {
		color.New(color.FgYellow).Printf("REDIRECT %s -> %s\n", args[0], d.RedirectTo)
	}
	return nil
}

// cmdQuery sends one GraphQL operation and prints its data
func cmdQuery(ctx context.Context, c *console.Console, args []string) error {
	if c.GraphQL == nil {
		return errors.New("graphql.endpoint is not configured")
	}
	if len(args) < 1 {
		return errors.New("usage: console-session query <graphql> [--var name=value] [--op name]")
	}

	req := graphql.Request{Query: args[0]}
	for i := 1; i < len(args); i++ {
		v, err := flagValue(args, &i)
		if err != nil {
			return err
		}
		switch args[i-1] {
		case "--var":
			name, value, ok := strings.Cut(v, "=")
			if !ok {
				return fmt.Errorf("--var %q must be name=value", v)
			}
			if req.Variables == nil {
				req.Variables = make(map[string]any)
			}
			req.Variables[name] = parseVar(value)
		case "--op":
			req.OperationName = v
		default:
			return fmt.Errorf("unknown flag %s", args[i-1])
		}
	}

	var data json.RawMessage
	err := c.GraphQL.Do(ctx, req, &data)
	if len(data) > 0 && string(data) != "null" {
		out, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		if !c.Session.IsAuthenticated() {
			color.Yellow("Session was rejected by the server and has been cleared\n")
		}
		return err
	}
	return nil
}

// parseVar reads a variable as JSON when it parses, else as a plain string.
func parseVar(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// cmdWatch prints session changes until interrupted
func cmdWatch(ctx context.Context, c *console.Console, mc config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) error {
	cyan := color.New(color.FgCyan)

	if mc.Enabled {
		srv := &http.Server{
			Addr:              mc.Listen,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", mc.Listen)
	}

	unsubscribe := c.Session.Subscribe(func(st session.State) {
		ts := time.Now().Format(time.TimeOnly)
		if st.Authenticated() {
			cyan.Printf("[%s] ", ts)
			fmt.Printf("signed in as %s (%s)\n", st.Identity.Email, st.Identity.Role)
			return
		}
		cyan.Printf("[%s] ", ts)
		fmt.Println("signed out")
	})
	defer unsubscribe()

	cyan.Printf("Watching %s session (Ctrl-C to stop)\n", c.Profile.Name)
	done := c.Follow(ctx, watchInterval)
	<-done
	fmt.Println()
	return nil
}

// cmdSchema prints the snapshot JSON Schema
func cmdSchema() error {
	schema, err := session.SnapshotSchema()
	if err != nil {
		return err
	}
	fmt.Println(string(schema))
	return nil
}
