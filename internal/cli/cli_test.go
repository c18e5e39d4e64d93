package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/auditsuite/tasktimer/internal/infrastructure/db"
	"github.com/auditsuite/tasktimer/internal/infrastructure/logger"
	transporthttp "github.com/auditsuite/tasktimer/internal/transport/http"
	"github.com/auditsuite/tasktimer/internal/transport/http/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "tasktimer dev")
	assert.Contains(t, out.String(), "go version:")
}

func TestInitWritesDefaultConfig(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "conf", "tasktimer.yaml")
	cfgFile = dest
	t.Cleanup(func() { cfgFile = "" })

	cmd := newInitCmd(defaultConfigYAML)
	cmd.SetOut(io.Discard)
	require.NoError(t, cmd.RunE(cmd, nil))

	cfg, err := config.LoadWith(viper.New(), dest)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "task.transitions", cfg.Events.Topic)

	err = cmd.RunE(cmd, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already exists"))

	require.NoError(t, cmd.Flags().Set("force", "true"))
	require.NoError(t, cmd.RunE(cmd, nil))
}

func TestDemoTasksCoverEveryCompletionPath(t *testing.T) {
	tasks := demoTasks("u1", "r1")
	require.Len(t, tasks, 4)
	for _, task := range tasks {
		assert.Equal(t, "u1", task.AssigneeID)
	}
	assert.True(t, tasks[0].TimeTrackingRequired)
	assert.True(t, tasks[1].HasReviewer())
	assert.False(t, tasks[2].HasReviewer())
	assert.True(t, tasks[3].IsPrivate)
}

type stack struct {
	app   *fiber.App
	repo  db.TaskRepository
	comps *components
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg, err := config.LoadWith(viper.New(), "")
	require.NoError(t, err)
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	cfg.Features.EnableRequestLogging = false

	database, err := db.NewConnection(cfg.Database)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))
	t.Cleanup(func() { _ = db.Close(database) })

	log := logger.NewNop()
	comps, err := buildComponents(cfg, database, log)
	require.NoError(t, err)
	t.Cleanup(func() { comps.Close(log) })

	app := newApp(cfg, log)
	transporthttp.SetupRoutes(app, transporthttp.RouterConfig{
		Service: comps.service,
		Bus:     comps.bus,
		Logger:  log,
		Config:  cfg,
	})
	return &stack{app: app, repo: db.NewTaskRepository(database, log), comps: comps}
}

func (s *stack) call(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServeStackEndToEnd(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	t1 := domain.Task{Title: "Bank reconciliation", AssigneeID: "u1", TimeTrackingRequired: true}
	t2 := domain.Task{Title: "Vendor invoices", AssigneeID: "u1", TimeTrackingRequired: true}
	require.NoError(t, s.repo.Create(ctx, &t1))
	require.NoError(t, s.repo.Create(ctx, &t2))

	var list dto.TaskListResponse
	require.Equal(t, fiber.StatusOK, s.call(t, "GET", "/api/v1/my-tasks", "", &list))
	assert.Equal(t, int64(2), list.Total)

	var task dto.TaskResponse
	require.Equal(t, fiber.StatusOK, s.call(t, "POST", "/api/v1/tasks/"+t1.ID+"/start", "", &task))
	assert.Equal(t, domain.StatusStarted, task.CompletionStatus)

	var errResp dto.ErrorResponse
	require.Equal(t, fiber.StatusConflict, s.call(t, "POST", "/api/v1/tasks/"+t2.ID+"/start", "", &errResp))
	assert.Equal(t, "To start a new task, you must hold the current task.", errResp.Error)

	var sess dto.SessionResponse
	require.Equal(t, fiber.StatusOK, s.call(t, "GET", "/api/v1/session", "", &sess))
	assert.True(t, sess.Running)
	assert.Equal(t, t1.ID, sess.TaskID)

	require.Equal(t, fiber.StatusUnprocessableEntity, s.call(t, "POST", "/api/v1/tasks/"+t1.ID+"/hold", `{"reason":" "}`, &errResp))

	require.Equal(t, fiber.StatusOK, s.call(t, "POST", "/api/v1/tasks/"+t1.ID+"/hold", `{"reason":"blocked"}`, &task))
	assert.Equal(t, domain.StatusOnHold, task.CompletionStatus)
	assert.Equal(t, []domain.Action{domain.ActionResume}, task.AvailableActions)

	require.Equal(t, fiber.StatusConflict, s.call(t, "POST", "/api/v1/tasks/"+t1.ID+"/hold", `{"reason":"again"}`, &errResp))
	assert.Equal(t, "invalid_transition", errResp.Code)

	sess = dto.SessionResponse{}
	require.Equal(t, fiber.StatusOK, s.call(t, "POST", "/api/v1/session/refresh", "", &sess))
	assert.False(t, sess.Running)

	require.Equal(t, fiber.StatusOK, s.call(t, "POST", "/api/v1/tasks/"+t2.ID+"/start", "", &task))

	var timeline []dto.TimelineEntryResponse
	require.Equal(t, fiber.StatusOK, s.call(t, "GET", "/api/v1/tasks/"+t1.ID+"/timeline", "", &timeline))
	require.Len(t, timeline, 2)
	assert.Equal(t, domain.EventHold, timeline[0].Event)
	assert.Equal(t, "blocked", timeline[0].Reason)
}

func TestLoadConfigPrefersExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o644))
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}
