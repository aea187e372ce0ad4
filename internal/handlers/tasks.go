package handlers

import (
	"net/http"

	"todo-api/internal/services"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), caller)
	if err != nil {
		writeError(c, err)
		return
	}

	total := len(tasks)
	c.JSON(http.StatusOK, Envelope{Success: true, Data: tasks, Total: &total})
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Data: task})
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var in services.TaskInput
	if err := bindJSON(c, &in); err != nil {
		invalidJSON(c)
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), caller, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Envelope{Success: true, Message: "Todo created successfully", Data: task})
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	var in services.TaskInput
	if err := bindJSON(c, &in); err != nil {
		invalidJSON(c)
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), caller, c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Message: "Todo updated successfully", Data: task})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Delete(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Envelope{Success: true, Message: "Todo deleted successfully", Data: task})
}
