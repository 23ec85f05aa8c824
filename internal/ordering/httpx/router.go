package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	pkghttpx "github.com/emezadev/ordering-sagas/internal/pkg/httpx"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(pkghttpx.AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", handler.CreateOrder)
	r.Get("/orders/{id}", handler.GetOrderByID)
	r.Put("/orders/{id}/ship", handler.ShipOrder)
	r.Put("/orders/{id}/cancel", handler.CancelOrder)

	return otelhttp.NewHandler(r, "ordering-api")
}
