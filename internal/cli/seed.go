package cli

import (
	"context"
	"fmt"

	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/db"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo tasks for a user",
	Long: `Create one task for each completion path: tracked, tracked with a
reviewer, untracked without a reviewer, and untracked private.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("user", "", "assignee user id (required)")
	seedCmd.Flags().String("reviewer", "reviewer-1", "reviewer id for tasks that need review")
	_ = seedCmd.MarkFlagRequired("user")
}

func demoTasks(userID, reviewerID string) []domain.Task {
	reviewer := reviewerID
	return []domain.Task{
		{Title: "Bank reconciliation", AssigneeID: userID, Priority: "High", TimeTrackingRequired: true, EstimatedDurationSeconds: 90 * 60},
		{Title: "Vendor invoice review", AssigneeID: userID, TimeTrackingRequired: true, ReviewRequired: true, ReviewerID: &reviewer, EstimatedDurationSeconds: 45 * 60},
		{Title: "Expense policy sign-off", AssigneeID: userID, ReviewRequired: true},
		{Title: "Payroll variance check", AssigneeID: userID, ReviewRequired: true, ReviewerID: &reviewer, IsPrivate: true},
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	reviewerID, _ := cmd.Flags().GetString("reviewer")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.RunMigrations(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	repo := db.NewTaskRepository(database, logger.NewNop())
	for _, task := range demoTasks(userID, reviewerID) {
		task := task
		if err := repo.Create(context.Background(), &task); err != nil {
			return fmt.Errorf("create %q: %w", task.Title, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", task.ID, task.Title)
	}
	return nil
}
