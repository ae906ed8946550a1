// Package devseed populates a development database with starter rows: the
// default Redis target, a couple of demo API configs, and a paused
// schedule, so a fresh install has something to run.
package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/probeworks/apiprobe/config"
	"github.com/probeworks/apiprobe/internal/core"
	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/data/cryptoutil"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// Services bundles the repositories needed for development seeding.
type Services struct {
	DB          *sql.DB
	globals     *data.GlobalVariableRepo
	connections *data.ConnectionRepo
	apis        *data.ApiConfigRepo
	tasks       *data.ScheduledTaskRepo
}

// NewServices constructs all required repositories for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	encryptor := &cryptoutil.NoopEncryptor{} // Use noop for dev
	return Services{
		DB:          db,
		globals:     data.NewGlobalVariableRepo(db),
		connections: data.NewConnectionRepo(db, encryptor),
		apis:        data.NewApiConfigRepo(db),
		tasks:       data.NewScheduledTaskRepo(db),
	}
}

// Run executes the full development seeding workflow against the provided DB.
// redisCfg is the engine's own Redis connection; it becomes the first stored
// Redis target so captcha fetches work without manual setup.
func Run(ctx context.Context, redisCfg config.RedisConfig, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedGlobalVariables(ctx, svcs.globals, logger)
	failures += seedRedisTarget(ctx, redisCfg, svcs.connections, logger)

	apiIDs, apiFailures := seedApiConfigs(ctx, svcs.apis, logger)
	failures += apiFailures
	failures += seedDemoTask(ctx, svcs.tasks, apiIDs, logger)

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedGlobalVariables(ctx context.Context, repo *data.GlobalVariableRepo, logger *slog.Logger) int {
	failures := 0
	variables := []core.UpsertGlobalVariableParams{
		{Name: "base_url", Value: "https://httpbin.org", VarType: model.VarTypeString, Description: "演示目標主機"},
		{Name: "auth_token", Value: "dev-token-12345", VarType: model.VarTypeToken, Description: "演示令牌"},
	}

	for _, params := range variables {
		created, err := createGlobalVariable(ctx, repo, params)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create global variable", "name", params.Name, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "global variable already exists"
			if created {
				msg = "created global variable"
			}
			logger.InfoContext(ctx, msg, "name", params.Name)
		}
	}

	return failures
}

// createGlobalVariable skips existing names instead of upserting so edited
// dev values survive restarts.
func createGlobalVariable(ctx context.Context, repo *data.GlobalVariableRepo, params core.UpsertGlobalVariableParams) (bool, error) {
	if _, err := repo.GetByName(ctx, params.Name); err == nil {
		return false, nil
	} else if !errors.Is(err, data.ErrVariableNotFound) {
		return false, err
	}
	if _, err := repo.Upsert(ctx, params); err != nil {
		return false, err
	}
	return true, nil
}

func seedRedisTarget(ctx context.Context, redisCfg config.RedisConfig, repo *data.ConnectionRepo, logger *slog.Logger) int {
	host, port := splitRedisAddr(redisCfg.Addr)
	created, err := createRedisTarget(ctx, repo, &model.RedisConfig{
		Name:     "本地Redis",
		Host:     host,
		Port:     port,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to create redis target", "addr", redisCfg.Addr, "error", err)
		}
		return 1
	}
	if logger != nil {
		msg := "redis target already exists"
		if created {
			msg = "created redis target"
		}
		logger.InfoContext(ctx, msg, "addr", redisCfg.Addr)
	}
	return 0
}

func createRedisTarget(ctx context.Context, repo *data.ConnectionRepo, cfg *model.RedisConfig) (bool, error) {
	if _, err := repo.CreateRedisConfig(ctx, cfg); err != nil {
		if errors.Is(err, data.ErrNameExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func splitRedisAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

func defaultApiConfigs() []*model.ApiConfig {
	return []*model.ApiConfig{
		{
			Name:           "健康檢查",
			URL:            "{{base_url}}/status/200",
			Method:         "GET",
			TimeoutSeconds: 10,
			Assertions:     `[{"type":"status_code","expected":200}]`,
		},
		{
			Name:           "回聲測試",
			URL:            "{{base_url}}/post",
			Method:         "POST",
			TimeoutSeconds: 15,
			BodyType:       "json",
			Body:           `{"message":"ping","token":"{{auth_token}}"}`,
			ExtractVars:    `[{"name":"echo_url","path":"url"}]`,
			Assertions: `[{"type":"status_code","expected":200},` +
				`{"type":"json_path","path":"json.message","expected":"ping"}]`,
		},
	}
}

// seedApiConfigs creates the demo configs and returns their ids by name.
// api_configs has no unique name constraint, so existence is checked by
// listing first.
func seedApiConfigs(ctx context.Context, repo *data.ApiConfigRepo, logger *slog.Logger) (map[string]int64, int) {
	idByName, err := indexApiConfigsByName(ctx, repo)
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to list api configs", "error", err)
		}
		return nil, 1
	}

	failures := 0
	for _, api := range defaultApiConfigs() {
		if _, ok := idByName[api.Name]; ok {
			if logger != nil {
				logger.InfoContext(ctx, "api config already exists", "name", api.Name)
			}
			continue
		}
		created, err := repo.Create(ctx, api)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create api config", "name", api.Name, "error", err)
			}
			failures++
			continue
		}
		idByName[created.Name] = created.ID
		if logger != nil {
			logger.InfoContext(ctx, "created api config", "name", created.Name, "id", created.ID)
		}
	}

	return idByName, failures
}

func indexApiConfigsByName(ctx context.Context, repo *data.ApiConfigRepo) (map[string]int64, error) {
	existing, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	idByName := make(map[string]int64, len(existing))
	for _, api := range existing {
		if _, ok := idByName[api.Name]; !ok {
			idByName[api.Name] = api.ID
		}
	}
	return idByName, nil
}

const demoTaskName = "每日巡檢"

// seedDemoTask stores a paused daily run over the demo configs. Paused so a
// dev database does not fire requests until someone turns it on.
func seedDemoTask(ctx context.Context, repo *data.ScheduledTaskRepo, apiIDs map[string]int64, logger *slog.Logger) int {
	ids := make([]int64, 0, 2)
	for _, name := range []string{"健康檢查", "回聲測試"} {
		if id, ok := apiIDs[name]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		if logger != nil {
			logger.WarnContext(ctx, "skipping demo task, no seeded api configs found")
		}
		return 0
	}

	exists, err := taskNameExists(ctx, repo, demoTaskName)
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to list scheduled tasks", "error", err)
		}
		return 1
	}
	if exists {
		if logger != nil {
			logger.InfoContext(ctx, "scheduled task already exists", "name", demoTaskName)
		}
		return 0
	}

	task := &model.ScheduledTask{
		Name:        demoTaskName,
		ApiIDs:      encodeApiIDs(ids),
		TriggerType: model.TriggerCron,
		CronExpr:    "0 9 * * *",
		Status:      model.TaskStatusPaused,
	}
	if _, err := repo.Create(ctx, task); err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to create scheduled task", "name", demoTaskName, "error", err)
		}
		return 1
	}
	if logger != nil {
		logger.InfoContext(ctx, "created scheduled task", "name", demoTaskName)
	}
	return 0
}

func taskNameExists(ctx context.Context, repo *data.ScheduledTaskRepo, name string) (bool, error) {
	tasks, err := repo.List(ctx)
	if err != nil {
		return false, err
	}
	for _, task := range tasks {
		if task.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func encodeApiIDs(ids []int64) string {
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
