package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/probeworks/apiprobe/internal/data"
	"github.com/probeworks/apiprobe/internal/domain/model"
)

// TaskSource loads stored scheduled tasks.
type TaskSource interface {
	GetByID(ctx context.Context, id int64) (*model.ScheduledTask, error)
}

// TaskTrigger fires a scheduled task outside its cron cadence.
type TaskTrigger interface {
	TriggerNow(ctx context.Context, taskID int64) error
}

// SchedulerHandlers serves the scheduled-task trigger endpoint.
type SchedulerHandlers struct {
	Tasks     TaskSource
	Scheduler TaskTrigger
}

// TriggerTask fires the task immediately; the run itself happens on the
// scheduler's goroutine, so the answer only confirms the dispatch.
func (h *SchedulerHandlers) TriggerTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeFailure(w, http.StatusNotFound, "任務不存在")
		return
	}

	task, err := h.Tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrTaskNotFound) {
			writeFailure(w, http.StatusNotFound, "任務不存在")
			return
		}
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.Scheduler.TriggerNow(r.Context(), task.ID); err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeSuccess(w, map[string]any{
		"triggered": true,
		"task_id":   task.ID,
		"task_name": task.Name,
	}, "已觸發立即執行")
}
