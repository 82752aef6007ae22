package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qwery/internal/bootstrap"
	"qwery/internal/logging"
	"qwery/internal/transport/http/handler"
	"qwery/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(logging.Component(app.Logger, "http")),
		middleware.Metrics(),
	)

	svc := app.Services
	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(svc.Auth)
	orgHandler := handler.NewOrganizationHandler(svc.Organizations, svc.Projects)
	projectHandler := handler.NewProjectHandler(svc.Projects, svc.Notebooks, svc.Conversations)
	datasourceHandler := handler.NewDatasourceHandler(svc.Datasources)
	notebookHandler := handler.NewNotebookHandler(svc.Notebooks)
	conversationHandler := handler.NewConversationHandler(svc.Conversations)
	messageHandler := handler.NewMessageHandler(svc.Messages)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	secured := api.Group("")
	secured.Use(authJWT)

	secured.GET("/organizations", orgHandler.List)
	secured.POST("/organizations", orgHandler.Create)
	secured.GET("/organizations/:id", orgHandler.Get)
	secured.PATCH("/organizations/:id", orgHandler.Update)
	secured.DELETE("/organizations/:id", orgHandler.Delete)
	secured.GET("/organizations/:id/projects", orgHandler.ListProjects)
	secured.POST("/organizations/:id/projects", orgHandler.CreateProject)

	secured.GET("/projects/:id", projectHandler.Get)
	secured.PATCH("/projects/:id", projectHandler.Update)
	secured.DELETE("/projects/:id", projectHandler.Delete)
	secured.GET("/projects/:id/notebooks", projectHandler.ListNotebooks)
	secured.POST("/projects/:id/notebooks", projectHandler.CreateNotebook)
	secured.GET("/projects/:id/conversations", projectHandler.ListConversations)
	secured.POST("/projects/:id/conversations", projectHandler.CreateConversation)

	secured.GET("/datasources", datasourceHandler.List)
	secured.POST("/datasources", datasourceHandler.Create)
	secured.GET("/datasources/:id", datasourceHandler.Get)
	secured.PATCH("/datasources/:id", datasourceHandler.Update)
	secured.DELETE("/datasources/:id", datasourceHandler.Delete)
	secured.POST("/datasources/:id/test", datasourceHandler.Test)

	secured.GET("/notebooks/:id", notebookHandler.Get)
	secured.PATCH("/notebooks/:id", notebookHandler.Update)
	secured.DELETE("/notebooks/:id", notebookHandler.Delete)
	secured.POST("/notebooks/:id/cells/:cellId/run", notebookHandler.RunCell)
	secured.GET("/notebooks/:id/export", notebookHandler.Export)

	secured.GET("/conversations/:id", conversationHandler.Get)
	secured.PATCH("/conversations/:id", conversationHandler.Update)
	secured.DELETE("/conversations/:id", conversationHandler.Delete)
	secured.GET("/conversations/:id/agent", conversationHandler.AgentSession)
	secured.GET("/conversations/:id/messages", messageHandler.List)
	secured.POST("/conversations/:id/messages", messageHandler.Send)
	secured.POST("/conversations/:id/messages/stream", messageHandler.Stream)
	secured.GET("/messages/:id", messageHandler.Get)

	return router
}
