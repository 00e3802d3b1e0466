// Command adduser creates an account directly in the database, including
// ADMIN accounts that cannot self-register over HTTP.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/milhas/loyalty-engine/auth"
	"github.com/milhas/loyalty-engine/loyalty"
	"github.com/milhas/loyalty-engine/store/sqlite"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Account email")
	name := fs.String("name", "", "Display name (defaults to the email)")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	role := fs.String("role", string(loyalty.RoleUser), "USER or ADMIN")
	dbPath := fs.String("db", "milhas.db", "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	*email = loyalty.NormalizeEmail(*email)
	if *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -email <email> [-name <name>] [-password <password>] [-role USER|ADMIN] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	r := loyalty.Role(strings.ToUpper(*role))
	if !r.Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// MILHAS_DB applies when -db was left at its default
	if path := os.Getenv("MILHAS_DB"); path != "" && *dbPath == "milhas.db" {
		*dbPath = path
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := *name
	if displayName == "" {
		displayName = *email
	}

	user, err := store.CreateUser(context.Background(), loyalty.User{
		Name:         displayName,
		Email:        *email,
		PasswordHash: hash,
		Role:         r,
	})
	if errors.Is(err, loyalty.ErrDuplicate) {
		return fmt.Errorf("user %s already exists", *email)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s (%s) created successfully with ID %d\n", user.Email, user.Role, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
