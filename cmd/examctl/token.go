package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stemsi/exstem-adaptive/internal/service"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a student or instructor JWT for local testing",
		RunE:  runToken,
	}
	f := cmd.Flags()
	f.String("role", string(service.RoleStudent), "Token role (student, instructor)")
	f.String("user-id", "", "User UUID (default: a new random id)")
	f.String("jwt-secret", "change-this-to-a-secure-random-string", "HMAC secret shared with the server")
	f.Int("jwt-expiry-hours", 24, "Token lifetime in hours")
	return cmd
}

func runToken(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	role := service.Role(v.GetString("role"))
	if role != service.RoleStudent && role != service.RoleInstructor {
		return fmt.Errorf("unknown role %q", role)
	}

	userID := uuid.New()
	if raw := v.GetString("user-id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse user id: %w", err)
		}
		userID = id
	}

	auth := service.NewAuthService(v.GetString("jwt-secret"), time.Duration(v.GetInt("jwt-expiry-hours"))*time.Hour)
	token, err := auth.GenerateToken(userID, role)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "user_id: %s\n", userID)
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
