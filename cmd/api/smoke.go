package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/staff-service/pkg/staffclient"
)

// newSmokeCommand checks a running instance end to end through the typed client.
func newSmokeCommand() *cobra.Command {
	var baseURL, email, password string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Log in against a running instance and read the staff list and statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			client := staffclient.New(baseURL, staffclient.WithTimeout(10*time.Second), staffclient.WithRetries(2))
			if _, err := client.Login(ctx, email, password); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			page, err := client.List(ctx, staffclient.ListOptions{Limit: 5})
			if err != nil {
				return fmt.Errorf("list staff: %w", err)
			}
			stats, err := client.Stats(ctx)
			if err != nil {
				return fmt.Errorf("staff stats: %w", err)
			}
			logger.Info("smoke check passed",
				zap.String("url", baseURL),
				zap.Int64("total_staff", page.Pagination.Total),
				zap.Int64("active_staff", stats.ActiveStaff),
				zap.Int("departments", len(stats.DepartmentStats)))
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:5000", "Base URL of the service")
	cmd.Flags().StringVar(&email, "email", "", "Login email (admin or manager)")
	cmd.Flags().StringVar(&password, "password", "", "Login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
