package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eve.evalgo.org/security"
)

// tokenCmd mints an admin bearer token against the configured
// signing secret, so an operator can call the /admin group without
// hand-rolling a JWT.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "mint an admin bearer token for the /admin API",
	Run: func(cmd *cobra.Command, args []string) {
		secret := viper.GetString("admin.jwt_secret")
		if secret == "" {
			log.Fatal("admin-jwt-secret is not configured; nothing to sign with")
		}
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		signed, err := security.NewJWTService(secret).MintAdminToken(subject, ttl)
		if err != nil {
			log.Fatalf("minting token: %v", err)
		}
		fmt.Println(signed)
	},
}

func init() {
	tokenCmd.Flags().String("subject", "admin", "subject (sub claim) of the minted token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token validity duration")
	rootCmd.AddCommand(tokenCmd)
}
