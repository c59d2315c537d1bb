package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // alias, чтобы не конфликтовать с нашим middleware
	"github.com/go-chi/cors"

	"github.com/leaguehub/roster-service/handlers"
	"github.com/leaguehub/roster-service/metrics"
	"github.com/leaguehub/roster-service/middleware"
)

// Options carries the cross-cutting settings of the router.
type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	requestHandler *handlers.MembershipRequestHandler,
	rosterHandler *handlers.RosterHandler,
	dreamTeamHandler *handlers.DreamTeamHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(opts.Metrics.Instrument)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler)
	}
	router.Get("/swagger/doc.json", handlers.ServeOpenAPI)
	router.Get("/swagger/*", handlers.SwaggerUI("/swagger/doc.json"))

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)

	router.Route("/ws", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/teams/{teamID}", webSocketHandler.ServeTeam)
		r.Get("/players/{playerID}", webSocketHandler.ServePlayer)
		r.With(middleware.RequireAdmin).Get("/admin", webSocketHandler.ServeAdmin)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/formations", dreamTeamHandler.Formations)
		r.Get("/players/search", dreamTeamHandler.SearchPlayers)
		r.Get("/players/me/requests", requestHandler.ListMine)

		r.Route("/teams/{teamID}/categories/{ceID}", func(r chi.Router) {
			r.Get("/roster", rosterHandler.Roster)
			r.Get("/inbox", requestHandler.Inbox)
			r.Get("/requests", requestHandler.ListForTeam)
			r.Post("/requests", requestHandler.CreateJoinRequest)
			r.Post("/invitations", requestHandler.CreateInvitation)
			r.Post("/captains/{playerID}", rosterHandler.AssignCaptain)
			r.Delete("/captains/{playerID}", rosterHandler.DeactivateCaptain)
			r.Post("/leave", rosterHandler.RequestOwnLeave)
			r.Post("/players/{playerID}/leave", rosterHandler.RequestPlayerLeave)
		})

		r.Route("/requests/{requestID}", func(r chi.Router) {
			r.Get("/", requestHandler.Get)
			r.Post("/accept", requestHandler.Accept)
			r.Post("/reject", requestHandler.Reject)
			r.Post("/cancel", requestHandler.Cancel)
		})

		r.Route("/leave-requests/{leaveID}", func(r chi.Router) {
			r.Post("/approve", rosterHandler.ApproveLeave)
			r.Post("/reject", rosterHandler.RejectLeave)
		})

		r.Route("/dreamteams", func(r chi.Router) {
			r.Get("/{dreamTeamID}", dreamTeamHandler.Get)

			// Составление сборной тура – только для администраторов
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", dreamTeamHandler.Create)
				r.Put("/{dreamTeamID}/slots/{slot}", dreamTeamHandler.Assign)
				r.Get("/{dreamTeamID}/slots/{slot}/candidates", dreamTeamHandler.Candidates)
				r.Delete("/{dreamTeamID}/matches/{matchID}/players/{playerID}", dreamTeamHandler.Remove)
				r.Put("/{dreamTeamID}/formation", dreamTeamHandler.ChangeFormation)
				r.Post("/{dreamTeamID}/publish", dreamTeamHandler.Publish)
			})
		})
	})
}
