// Command admintoken prints an admin JWT for the battle endpoints, signed with
// security.admin_jwt_secret and valid for security.jwt_ttl_h.
//
//	admintoken <config.yaml> [operator]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kasuganosora/battleevent/config"
	mw "github.com/kasuganosora/battleevent/middleware"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "admintoken:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: admintoken <config.yaml> [operator]")
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	if cfg.Security.AdminJWTSecret == "" {
		return errors.New("security.admin_jwt_secret is not set")
	}
	operator := "admin"
	if len(args) == 2 {
		operator = args[1]
	}
	tok, err := mw.GenerateToken(operator, mw.RoleAdmin, cfg.Security.AdminJWTSecret, cfg.Security.JWTTTLH)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
