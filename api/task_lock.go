package api

import (
	"fmt"
	"net/http"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/pkg/iptool"
	"github.com/gin-gonic/gin"
)

// ListTaskLocksHandler returns the current row of every timed task lock.
func ListTaskLocksHandler(c *gin.Context) {
	ctx := c.Request.Context()

	list := make([]model.TimedTaskLock, 0, len(model.TaskNames))
	for _, lock := range taskLocks.All() {
		row, err := lock.Row(ctx)
		if err != nil {
			log.Errorf("get task lock %s: %v", lock.Task(), err)
			c.JSON(http.StatusOK, respError(err))
			return
		}
		list = append(list, row)
	}

	c.JSON(http.StatusOK, respJSON(JsonObject{
		"list":  list,
		"total": len(list),
	}))
}

// ReleaseTaskLockHandler force-releases a lock left behind by a crashed
// run. Releasing a lock whose holder is still alive lets two runs overlap,
// so this stays behind the admin group.
func ReleaseTaskLockHandler(c *gin.Context) {
	lock, err := taskLocks.Get(model.TaskName(c.Param("task")))
	if err != nil {
		c.JSON(http.StatusOK, respError(errors.NewErrorCode(errors.InvalidTaskName, c)))
		return
	}

	// the run description doubles as the audit trail for manual releases
	runDesc := c.Query("run_desc")
	if runDesc == "" {
		runDesc = fmt.Sprintf("released manually from %s", iptool.GetClientIP(c.Request))
	}
	ok, err := lock.Release(c.Request.Context(), runDesc)
	if err != nil {
		log.Errorf("release task lock %s: %v", lock.Task(), err)
		c.JSON(http.StatusOK, respError(err))
		return
	}

	c.JSON(http.StatusOK, respJSON(JsonObject{
		"released": ok,
	}))
}
