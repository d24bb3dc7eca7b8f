package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leasehub/internal/database"
	"leasehub/pkg/events"

	"github.com/spf13/cobra"
)

func EventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect lease lifecycle events",
	}
	cmd.AddCommand(eventsTailCmd())
	return cmd
}

// eventsTailCmd 从持久事件列表中取出事件并打印，取出即消费
func eventsTailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Consume events from the lifecycle list and print them as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			q := database.GetRedisQueue()
			defer q.Close()
			if err := q.Ping(ctx); err != nil {
				return fmt.Errorf("redis unavailable: %v", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				var event events.LeaseEvent
				ok, err := q.Pop(ctx, events.LifecycleList, &event)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if err := enc.Encode(event); err != nil {
					return err
				}
			}
		},
	}
}
