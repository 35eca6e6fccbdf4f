package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/internal/catalog"
	"github.com/electrohogar/catalogo/pkg/response"
)

func recordField(t graphql.Output, get func(models.Record) any) *graphql.Field {
	return &graphql.Field{
		Type: t,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			rec, ok := p.Source.(models.Record)
			if !ok {
				return nil, nil
			}
			return get(rec), nil
		},
	}
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// productoType exposes models.Record with the same field names as the
// JSON API.
var productoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Producto",
	Fields: graphql.Fields{
		"id":       recordField(graphql.NewNonNull(graphql.String), func(r models.Record) any { return r.ID }),
		"name":     recordField(graphql.NewNonNull(graphql.String), func(r models.Record) any { return r.Name }),
		"price":    recordField(graphql.NewNonNull(graphql.Float), func(r models.Record) any { return r.Price }),
		"category": recordField(graphql.NewNonNull(graphql.String), func(r models.Record) any { return r.Category }),
		"medidas":  recordField(graphql.String, func(r models.Record) any { return deref(r.Medidas) }),
		"observaciones": recordField(graphql.String,
			func(r models.Record) any { return deref(r.Observaciones) }),
		"fotos":     recordField(graphql.NewList(graphql.NewNonNull(graphql.String)), func(r models.Record) any { return r.Fotos }),
		"hasDefect": recordField(graphql.NewNonNull(graphql.Boolean), func(r models.Record) any { return r.HasDefect }),
		"stock":     recordField(graphql.NewNonNull(graphql.Int), func(r models.Record) any { return r.Stock }),
		"available": recordField(graphql.NewNonNull(graphql.Boolean), func(r models.Record) any { return r.Available() }),
		"createdAt": recordField(graphql.DateTime, func(r models.Record) any { return r.CreatedAt }),
	},
})

// CatalogSchema builds the read-only query schema over the in-memory catalog.
func CatalogSchema(m *catalog.Manager) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"productos": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(productoType)),
				Args: graphql.FieldConfigArgument{
					"category":   &graphql.ArgumentConfig{Type: graphql.String},
					"search":     &graphql.ArgumentConfig{Type: graphql.String},
					"defectOnly": &graphql.ArgumentConfig{Type: graphql.Boolean},
					"sort":       &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					crit := catalog.Criteria{}
					if v, ok := p.Args["category"].(string); ok {
						crit.Category = v
					}
					if v, ok := p.Args["search"].(string); ok {
						crit.Search = v
					}
					if v, ok := p.Args["defectOnly"].(bool); ok {
						crit.DefectOnly = v
					}
					key := catalog.SortNone
					if v, ok := p.Args["sort"].(string); ok {
						key = catalog.ParseSortKey(v)
					}
					return catalog.DeriveView(m.Records(), crit, key), nil
				},
			},
			"producto": &graphql.Field{
				Type: productoType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["id"].(string)
					rec, ok := m.Get(id)
					if !ok {
						return nil, nil
					}
					return rec, nil
				},
			},
			"categorias": &graphql.Field{
				Type: graphql.NewList(graphql.NewNonNull(graphql.String)),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return m.Categories(), nil
				},
			},
		},
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Handler serves POST requests against the given schema.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			OperationName:  req.OperationName,
			VariableValues: req.Variables,
			Context:        r.Context(),
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
