package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"cardauth/internal/auth"
	"cardauth/internal/config"
)

// opstoken prints a signed operator token for the read-only card API.
func main() {
	subject := flag.String("subject", "", "operator identity, e.g. an email address")
	role := flag.String("role", auth.RoleAuditor, "operator role")
	ttl := flag.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	token, err := auth.NewJWTService(cfg.JWTSecret).Issue(*subject, *role, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("issue token")
	}
	log.Info().Str("subject", *subject).Str("role", *role).Dur("ttl", *ttl).Msg("token issued")
	fmt.Println(token)
}
