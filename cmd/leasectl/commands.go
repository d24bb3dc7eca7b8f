package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"leasehub/internal/database"
	"leasehub/internal/services"
	"leasehub/pkg/config"
	"leasehub/pkg/events"
	"leasehub/pkg/jwt"
	"leasehub/pkg/storage"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database, "release")
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newRegistry(ctx context.Context, cfg *config.Config, db *gorm.DB) (*services.Registry, error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return services.NewRegistry(services.Options{
		DB:        db,
		Lease:     cfg.Lease,
		Store:     store,
		Publisher: events.NopPublisher{},
	}), nil
}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the lease tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("failed to migrate: %v", err)
			}
			fmt.Println("Migration completed.")
			return nil
		},
	}
}

func PreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Resolve and render a lease request without saving anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			orgID, _ := cmd.Flags().GetUint("org")
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")

			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read input: %v", err)
			}
			var req services.LeaseRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid lease request: %v", err)
			}

			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			registry, err := newRegistry(cmd.Context(), cfg, db)
			if err != nil {
				return err
			}

			result, err := registry.Generation.Preview(cmd.Context(), orgID, req)
			if err != nil {
				return err
			}

			var payload []byte
			switch format {
			case "html":
				payload = result.Artifact.Body
			case "json":
				payload, err = json.MarshalIndent(result.Model, "", "  ")
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported format %q", format)
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}
			return os.WriteFile(out, payload, 0644)
		},
	}
	cmd.Flags().String("input", "", "Path to a lease request JSON file")
	cmd.Flags().Uint("org", 1, "Landlord organisation ID")
	cmd.Flags().String("format", "html", "Output format: html or json")
	cmd.Flags().String("out", "-", "Output file, - for stdout")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func ExpireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Terminate active fixed-term leases whose end date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, _ := cmd.Flags().GetString("at")

			now := time.Now()
			if at != "" {
				parsed, err := time.Parse("2006-01-02", at)
				if err != nil {
					return fmt.Errorf("invalid --at date: %v", err)
				}
				now = parsed
			}

			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			registry, err := newRegistry(cmd.Context(), cfg, db)
			if err != nil {
				return err
			}
			count, err := registry.Expiry.RunOnce(cmd.Context(), now)
			if err != nil {
				return err
			}
			fmt.Printf("Terminated %d lease(s).\n", count)
			return nil
		},
	}
	cmd.Flags().String("at", "", "Evaluate as of this date (YYYY-MM-DD), defaults to today")
	return cmd
}

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetUint("user")
			orgID, _ := cmd.Flags().GetUint("org")
			username, _ := cmd.Flags().GetString("username")
			admin, _ := cmd.Flags().GetBool("admin")

			token, err := jwt.GetJWTManager().GenerateToken(userID, orgID, username, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Uint("user", 1, "User ID")
	cmd.Flags().Uint("org", 1, "Landlord organisation ID")
	cmd.Flags().String("username", "dev", "Username")
	cmd.Flags().Bool("admin", false, "Grant organisation admin")
	return cmd
}
