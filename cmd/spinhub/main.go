package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/kirinyoku/spinhub/docs"
	"github.com/kirinyoku/spinhub/internal/app"
	"github.com/kirinyoku/spinhub/internal/auth"
	"github.com/kirinyoku/spinhub/internal/config"
	"github.com/kirinyoku/spinhub/internal/domain"
)

// @title SpinHub API
// @version 1.0
// @description Class booking, waitlist and package credits for a multi-branch cycling studio.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			logger.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}

// issueToken prints a signed access token, for local testing against the API:
//
//	spinhub token -user 42 -role admin -branch 1
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.Int64("user", 0, "user id")
	role := fs.String("role", string(domain.RoleClient), "client, admin or superuser")
	branchID := fs.Int64("branch", 0, "branch id")
	ttl := fs.Duration("ttl", cfg.Auth.TokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	who := domain.Identity{UserID: *userID, Role: domain.Role(*role), BranchID: *branchID}
	if who.IsZero() || !who.Role.Valid() {
		return fmt.Errorf("token: need -user > 0 and a valid -role")
	}

	tok, exp, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, *ttl).Issue(who, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	return nil
}
