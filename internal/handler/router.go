package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/searchchat/internal/handler/chat"
	"github.com/zhouzirui/searchchat/internal/handler/stream"
	"github.com/zhouzirui/searchchat/internal/handler/web"
	"github.com/zhouzirui/searchchat/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/searchchat/internal/middleware"
	chatService "github.com/zhouzirui/searchchat/internal/service/chat"
	"github.com/zhouzirui/searchchat/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(logger zerolog.Logger, chatSvc *chatService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	web.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chat.New(chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		ws.NewWebSocketHandler(chatSvc).RegisterRoutes(api)
	})

	return r
}
