package routes

import (
	"net/http"

	"github.com/electrohogar/catalogo/app/controllers"
	"github.com/electrohogar/catalogo/internal/catalog"
	"github.com/electrohogar/catalogo/pkg/graphql"
	"github.com/electrohogar/catalogo/pkg/logger"
	"github.com/electrohogar/catalogo/pkg/metrics"
	"github.com/electrohogar/catalogo/pkg/middleware"
	"github.com/electrohogar/catalogo/pkg/router"
	"github.com/electrohogar/catalogo/pkg/ws"
)

// RegisterAPI wires every HTTP route of the admin service.
func RegisterAPI(r *router.Router, manager *catalog.Manager, hub *ws.Hub) {
	authController := controllers.NewAuthController()
	catalogController := controllers.NewCatalogController(manager)

	api := r.Group("/api")
	api.Post("/login", "auth.login", authController.Login)

	protected := api.Group("", middleware.Auth)

	protected.Get("/productos", "productos.list", catalogController.List)
	protected.Get("/categorias", "productos.categories", catalogController.Categories)
	protected.Post("/productos", "productos.create", catalogController.Create)
	protected.Put("/productos/{id}", "productos.update", catalogController.Update)
	protected.Delete("/productos/{id}", "productos.delete", catalogController.Delete)
	protected.Post("/productos/recargar", "productos.reload", catalogController.Reload)

	protected.Get("/eventos", "productos.events", catalogController.Events)

	protected.Post("/seleccion/{id}", "seleccion.toggle", catalogController.ToggleSelection)
	protected.Delete("/seleccion", "seleccion.clear", catalogController.ClearSelection)
	protected.Delete("/productos", "productos.deleteSelected", catalogController.DeleteSelected)

	if schema, err := graphql.CatalogSchema(manager); err != nil {
		logger.Error("build graphql schema", "error", err)
	} else {
		protected.Post("/graphql", "productos.graphql", graphql.Handler(schema))
	}

	r.Get("/ws", "ws.catalog", func(w http.ResponseWriter, req *http.Request) {
		ws.Upgrade(w, req, hub)
	})

	r.HandleFunc("/metrics", metrics.Handler())
}
