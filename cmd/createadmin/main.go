// Command createadmin seeds an administrator account in the credential store.
//
//	createadmin -email admin@example.com [-password secret] [-d DSN] [-c config.json]
//
// Without -password the password is read from the terminal without echo.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/admin"
	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "createadmin:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var email, password string

	fs := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	fs.StringVar(&email, "email", "", "admin email")
	fs.StringVar(&password, "password", "", "admin password (prompted when empty)")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email", "-password"})); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if email == "" {
		if email, err = admin.GetSimpleText(bufio.NewReader(os.Stdin), "Email", os.Stdout); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = admin.GetPassword(int(os.Stdin.Fd()), "Password", os.Stdout); err != nil {
			return err
		}
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	u, created, err := admin.Seed(ctx, app.Users(), email, password)
	if err != nil {
		return err
	}
	if !created {
		fmt.Printf("User %s already exists\n", email)
		return nil
	}

	fmt.Printf("Admin %s created with id %d\n", u.Email, u.ID)
	return nil
}
