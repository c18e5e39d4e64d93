package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/auditsuite/tasktimer/internal/pipclient"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("TASKTIMER_PIP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:          "pip",
		Short:        "Floating timer for the task you are working on",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), pipclient.Options{
				URL:        v.GetString("url"),
				UserID:     v.GetString("user"),
				UserHeader: v.GetString("user-header"),
				APIKey:     v.GetString("api-key"),
			})
		},
	}
	cmd.Flags().String("url", "ws://localhost:8080/ws/pip", "notifier bridge URL")
	cmd.Flags().String("user", "", "acting user id")
	cmd.Flags().String("user-header", "X-User-ID", "header carrying the acting user")
	cmd.Flags().String("api-key", "", "API key, if the server requires one")
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts pipclient.Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := pipclient.Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer client.Close()

	program := tea.NewProgram(pipclient.NewModel(client, nil))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		_ = client.SendClosed()
		program.Send(tea.Quit())
	}()

	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("pip: %w", err)
	}
	if m, ok := final.(pipclient.Model); ok && !m.Closed() {
		_ = client.SendClosed()
	}
	if err := client.Err(); err != nil {
		return fmt.Errorf("pip: connection: %w", err)
	}
	return nil
}
