package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-planner/internal/scheduler"
	"github.com/adanyl0v/go-planner/internal/services"
)

// Scheduler is the part of scheduler.Engine the handlers call.
type Scheduler interface {
	AutoSchedule(ctx context.Context, req scheduler.Request) (*scheduler.Result, error)
}

type Handler interface {
	HandleLogin(c *gin.Context)
	HandleRefresh(c *gin.Context)
	HandleRegister(c *gin.Context)
	HandleLogout(c *gin.Context)
	HandleAuthMiddleware(c *gin.Context)
	HandleWorkspaceMiddleware(c *gin.Context)
	HandleWriteAccessMiddleware(c *gin.Context)

	HandleCreateWorkspace(c *gin.Context)
	HandleGetWorkspaces(c *gin.Context)
	HandleAddMember(c *gin.Context)
	HandleGetMembers(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleGetTasks(c *gin.Context)
	HandleGetTask(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleSetTaskStatus(c *gin.Context)
	HandleDeleteTask(c *gin.Context)

	HandleAddDependency(c *gin.Context)
	HandleGetDependencies(c *gin.Context)
	HandleRemoveDependency(c *gin.Context)

	HandleGetCapacity(c *gin.Context)
	HandleSetCapacity(c *gin.Context)
	HandleGetTimeOff(c *gin.Context)
	HandleAddTimeOff(c *gin.Context)
	HandleDeleteTimeOff(c *gin.Context)

	HandleAutoSchedule(c *gin.Context)
	HandleGetWeekPlan(c *gin.Context)
	HandleGetMonthPlan(c *gin.Context)
}

type handlerImpl struct {
	logger       zerolog.Logger
	auth         services.AuthService
	sessions     services.SessionService
	workspaces   services.WorkspaceService
	tasks        services.TaskService
	dependencies services.DependencyService
	roster       services.RosterService
	scheduler    Scheduler
}

type Services struct {
	Auth         services.AuthService
	Sessions     services.SessionService
	Workspaces   services.WorkspaceService
	Tasks        services.TaskService
	Dependencies services.DependencyService
	Roster       services.RosterService
	Scheduler    Scheduler
}

func New(logger zerolog.Logger, s Services) Handler {
	return &handlerImpl{
		logger:       logger,
		auth:         s.Auth,
		sessions:     s.Sessions,
		workspaces:   s.Workspaces,
		tasks:        s.Tasks,
		dependencies: s.Dependencies,
		roster:       s.Roster,
		scheduler:    s.Scheduler,
	}
}

func RegisterRoutes(router gin.IRouter, h Handler) {
	router = router.Group("/api/v1")

	authRouter := router.Group("/auth")
	authRouter.POST("/login", h.HandleLogin)
	authRouter.POST("/refresh", h.HandleRefresh)
	authRouter.POST("/register", h.HandleRegister)
	authRouter.POST("/logout", h.HandleAuthMiddleware, h.HandleLogout)

	rosterRouter := router.Group("/roster", h.HandleAuthMiddleware)
	rosterRouter.GET("/capacity", h.HandleGetCapacity)
	rosterRouter.PUT("/capacity", h.HandleSetCapacity)
	rosterRouter.GET("/time-off", h.HandleGetTimeOff)
	rosterRouter.POST("/time-off", h.HandleAddTimeOff)
	rosterRouter.DELETE("/time-off/:time_off_id", h.HandleDeleteTimeOff)

	workspacesRouter := router.Group("/workspaces", h.HandleAuthMiddleware)
	workspacesRouter.POST("", h.HandleCreateWorkspace)
	workspacesRouter.GET("", h.HandleGetWorkspaces)

	wsRouter := workspacesRouter.Group("/:workspace_id", h.HandleWorkspaceMiddleware)
	wsRouter.GET("/members", h.HandleGetMembers)
	wsRouter.GET("/tasks", h.HandleGetTasks)
	wsRouter.GET("/tasks/:task_id", h.HandleGetTask)
	wsRouter.GET("/tasks/:task_id/dependencies", h.HandleGetDependencies)
	wsRouter.GET("/planning/week", h.HandleGetWeekPlan)
	wsRouter.GET("/planning/month", h.HandleGetMonthPlan)

	writeRouter := wsRouter.Group("", h.HandleWriteAccessMiddleware)
	writeRouter.POST("/members", h.HandleAddMember)
	writeRouter.POST("/tasks", h.HandleCreateTask)
	writeRouter.PATCH("/tasks/:task_id", h.HandleUpdateTask)
	writeRouter.PUT("/tasks/:task_id/status", h.HandleSetTaskStatus)
	writeRouter.DELETE("/tasks/:task_id", h.HandleDeleteTask)
	writeRouter.POST("/tasks/:task_id/dependencies", h.HandleAddDependency)
	writeRouter.DELETE("/dependencies/:dependency_id", h.HandleRemoveDependency)
	writeRouter.POST("/schedule/auto", h.HandleAutoSchedule)
}
