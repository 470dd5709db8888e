package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bus_tracker/internal/config"
	"bus_tracker/internal/middleware"
)

func main() {
	var (
		subject = flag.String("sub", "", "driver ID or admin name (token subject)")
		role    = flag.String("role", middleware.RoleDriver, "driver | admin")
		secret  = flag.String("secret", "", "HS256 secret; defaults to JWT_SECRET from the environment")
		ttl     = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: token --sub=<driver-id> [--role=driver|admin] [--secret=...] [--ttl=24h]")
		os.Exit(2)
	}
	if *role != middleware.RoleDriver && *role != middleware.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	key := *secret
	if key == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		key = cfg.JWTSecret
	}

	token, err := middleware.GenerateToken(*subject, *role, []byte(key), *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	claims, err := middleware.ValidateToken(token, []byte(key))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "sub=%s role=%s exp=%s\n",
		claims.Subject, claims.Role, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
