package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stemsi/exstem-adaptive/internal/config"
	"github.com/stemsi/exstem-adaptive/internal/handler"
	"github.com/stemsi/exstem-adaptive/internal/middleware"
	"github.com/stemsi/exstem-adaptive/internal/response"
	"github.com/stemsi/exstem-adaptive/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam    *handler.ExamHandler
	Room    *handler.RoomHandler
	Monitor *handler.MonitorHandler
	WS      *handler.WSHandler

	// JoinLimiter throttles keypass attempts. Nil disables it.
	JoinLimiter *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.GinMode != gin.TestMode {
		router.Use(gin.Logger())
	}

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint.
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService), middleware.NoStore())
	{
		join := []gin.HandlerFunc{handlers.Exam.JoinRoom}
		if handlers.JoinLimiter != nil {
			join = append([]gin.HandlerFunc{handlers.JoinLimiter.Middleware()}, join...)
		}
		studentAPI.GET("/rooms", handlers.Exam.ListMyRooms)
		studentAPI.POST("/rooms/join", join...)
		studentAPI.POST("/rooms/:room_id/leave", handlers.Exam.LeaveRoom)
		studentAPI.POST("/rooms/:room_id/start", handlers.Exam.Start)
		studentAPI.POST("/rooms/:room_id/answer", handlers.Exam.Answer)
		studentAPI.GET("/rooms/:room_id/questions/:question_id", handlers.Exam.GetQuestion)
		studentAPI.POST("/rooms/:room_id/finish", handlers.Exam.Finish)
		studentAPI.GET("/rooms/:room_id/result", handlers.Exam.Result)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	if handlers.WS != nil {
		ws := router.Group("/ws/v1")
		ws.Use(middleware.RequireStudentWSAuth(authService))
		{
			ws.GET("/student/rooms/:room_id/stream", handlers.WS.ExamWebSocketStream)
		}
	}

	// ─── 3. Instructor Group (JWT) ─────────────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(middleware.RequireInstructorJWT(authService), middleware.NoStore())
	{
		instructorAPI.GET("/rooms", handlers.Room.ListRooms)
		instructorAPI.POST("/rooms", handlers.Room.CreateRoom)
		instructorAPI.GET("/rooms/:room_id", handlers.Room.GetRoom)
		instructorAPI.PATCH("/rooms/:room_id/status", handlers.Room.UpdateStatus)
		instructorAPI.DELETE("/rooms/:room_id", handlers.Room.DeleteRoom)
		instructorAPI.GET("/rooms/:room_id/participants", handlers.Room.ListParticipants)
		instructorAPI.DELETE("/rooms/:room_id/participants/:student_id", handlers.Room.RemoveParticipant)
		if handlers.Monitor != nil {
			instructorAPI.GET("/rooms/:room_id/monitor", handlers.Monitor.MonitorRoomSSE)
		}
	}

	return router
}
