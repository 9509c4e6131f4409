// server/internal/api/routes/routes.go
package routes

import (
	"time"

	"ambulance-dispatch-api-server/internal/api/handlers"
	"ambulance-dispatch-api-server/internal/api/middleware"
	"ambulance-dispatch-api-server/internal/cache"
	"ambulance-dispatch-api-server/internal/dispatch"
	"ambulance-dispatch-api-server/internal/s3"
	"ambulance-dispatch-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// SetupRouter wires the handlers and route groups.
func SetupRouter(
	dispatcher *dispatch.Dispatcher,
	db *mongo.Database,
	cacheClient *cache.Client,
	s3Uploader *s3.Uploader,
	wsHub *socket.Hub,
	tokenLifetime time.Duration,
) *gin.Engine {
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
	}))

	userHandler := &handlers.UserHandler{DB: db, TokenLifetime: tokenLifetime}
	vehicleHandler := &handlers.VehicleHandler{Dispatcher: dispatcher, Cache: cacheClient, DB: db}
	requestHandler := &handlers.RequestHandler{Dispatcher: dispatcher, S3Uploader: s3Uploader, Cache: cacheClient}
	statsHandler := &handlers.StatsHandler{Dispatcher: dispatcher, Cache: cacheClient}
	dispatchHandler := &handlers.DispatchHandler{Dispatcher: dispatcher, Cache: cacheClient}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// === PUBLIC ROUTES ===

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", userHandler.Login)
			auth.POST("/register", userHandler.Register)
		}

		// Raising an emergency must never be blocked by a login wall.
		apiV1.POST("/requests", requestHandler.CreateRequest)

		// === PROTECTED ROUTES ===

		authed := apiV1.Group("/")
		authed.Use(middleware.Authenticate())
		{
			authed.GET("/vehicles", vehicleHandler.GetAllVehicles)
			authed.GET("/vehicles/:id", vehicleHandler.GetVehicleByID)
			authed.GET("/requests", requestHandler.GetAllRequests)
			authed.GET("/requests/:id", requestHandler.GetRequestByID)
			authed.GET("/stats", statsHandler.GetStats)
		}

		// Field operations: drivers acting on their own unit, admins on any.
		fieldRoutes := apiV1.Group("/")
		fieldRoutes.Use(middleware.Authenticate())
		fieldRoutes.Use(middleware.Authorize("driver", "admin"))
		{
			fieldRoutes.POST("/requests/:id/confirm", requestHandler.ConfirmAssignment)
			fieldRoutes.PATCH("/requests/:id/status", requestHandler.UpdateRequestStatus)
			fieldRoutes.PATCH("/vehicles/:id/status", vehicleHandler.UpdateVehicleStatus)
			fieldRoutes.PATCH("/vehicles/:id/location", vehicleHandler.UpdateVehicleLocation)
		}

		driverRoutes := apiV1.Group("/")
		driverRoutes.Use(middleware.Authenticate())
		driverRoutes.Use(middleware.Authorize("driver"))
		{
			driverRoutes.GET("/drivers/my/vehicle", vehicleHandler.GetMyVehicle)
			// Crew-submitted proof of arrival / incident photos.
			driverRoutes.POST("/requests/:id/photos", requestHandler.UploadIncidentPhoto)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.Authenticate())
		admin.Use(middleware.Authorize("admin"))
		{
			admin.POST("/vehicles", vehicleHandler.CreateVehicle)
			admin.POST("/dispatch/run", dispatchHandler.RunAssignmentPass)
			admin.GET("/users", userHandler.GetAllUsers)
		}
	}

	return router
}
