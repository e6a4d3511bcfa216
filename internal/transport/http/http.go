package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/pharmacy/internal/service/models/order"
	addorder "github.com/corray333/backend-labs/pharmacy/internal/transport/http/add_order"
	markstatus "github.com/corray333/backend-labs/pharmacy/internal/transport/http/mark_status"
	"github.com/corray333/backend-labs/pharmacy/internal/transport/http/response"
	"github.com/corray333/backend-labs/pharmacy/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/pharmacy/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

type service interface {
	CreateOrder(ctx context.Context, medicamentos []string, cliente string, total float64) (order.Order, error)
	MarkDelivered(ctx context.Context, id string) (order.Order, error)
	MarkReceived(ctx context.Context, id string) (order.Order, error)
}

type HTTPTransport struct {
	server  *http.Server
	router  *chi.Mux
	service service
}

//goland:noinspection GoExportedFuncWithUnexportedType
func NewHTTPTransport(service service) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	return &HTTPTransport{
		server:  server,
		router:  router,
		service: service,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for active ones to finish.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler returns the router, used by tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Post("/order/add", response.Handle(addorder.MsgInternal, h.addOrder))

	h.router.Route("/delivery/order/{id}", func(r chi.Router) {
		r.Get("/delivered", response.Handle(markstatus.MsgInternal, h.markDelivered))
		r.Put("/delivered", response.Handle(markstatus.MsgInternal, h.markDelivered))
	})

	h.router.Route("/client/order/{id}", func(r chi.Router) {
		r.Get("/received", response.Handle(markstatus.MsgInternal, h.markReceived))
		r.Put("/received", response.Handle(markstatus.MsgInternal, h.markReceived))
	})

	h.router.Handle("/metrics", promhttp.Handler())
}

func (h *HTTPTransport) addOrder(r *http.Request) (response.Response, error) {
	return addorder.AddOrder(r, h.service)
}

func (h *HTTPTransport) markDelivered(r *http.Request) (response.Response, error) {
	return markstatus.MarkDelivered(r, h.service)
}

func (h *HTTPTransport) markReceived(r *http.Request) (response.Response, error) {
	return markstatus.MarkReceived(r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	port := viper.GetString("server.http.port")
	if port == "" {
		port = "8080"
	}

	return &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}
}
