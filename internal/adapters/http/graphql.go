package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lng": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	preferencesType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Preferences",
		Fields: graphql.Fields{
			"search_radius_km": &graphql.Field{Type: graphql.Float},
			"pub_quality":      &graphql.Field{Type: graphql.String},
			"walk_tolerance":   &graphql.Field{Type: graphql.String},
			"warrior_mode":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	formType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Form",
		Fields: graphql.Fields{
			"state":         &graphql.Field{Type: graphql.String},
			"visible":       &graphql.Field{Type: graphql.Boolean},
			"origin":        &graphql.Field{Type: coordinateType},
			"origin_locked": &graphql.Field{Type: graphql.Boolean},
			"preferences":   &graphql.Field{Type: preferencesType},
			"last_error":    &graphql.Field{Type: graphql.String},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"view":       &graphql.Field{Type: graphql.String},
			"surface":    &graphql.Field{Type: graphql.String},
			"generation": &graphql.Field{Type: graphql.Int},
			"incidents":  &graphql.Field{Type: graphql.Int},
			"form":       &graphql.Field{Type: formType},
		},
	})

	crimeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Crime",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.Int},
			"category": &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: coordinateType},
			"month":    &graphql.Field{Type: graphql.String},
			"street":   &graphql.Field{Type: graphql.String},
		},
	})

	mapConfigType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapConfig",
		Fields: graphql.Fields{
			"style":  &graphql.Field{Type: graphql.String},
			"center": &graphql.Field{Type: coordinateType},
			"zoom":   &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a planning session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return sessionMap(sess.Describe()), nil
				},
			},
			"crimes": &graphql.Field{
				Type:        graphql.NewList(crimeType),
				Description: "Street-level crimes around a point",
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"month":    &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"category": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Crimes == nil {
						return []domain.CrimeIncident{}, nil
					}
					at, err := domain.NewCoordinate(p.Args["lng"].(float64), p.Args["lat"].(float64))
					if err != nil {
						return nil, err
					}
					incidents := deps.Crimes.FetchIncidents(p.Context, at, p.Args["month"].(string), p.Args["category"].(string))
					if limit := p.Args["limit"].(int); limit >= 0 && limit < len(incidents) {
						incidents = incidents[:limit]
					}
					return incidents, nil
				},
			},
			"mapConfig": &graphql.Field{
				Type:        mapConfigType,
				Description: "Base map settings",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Map, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// sessionMap flattens a session for the default resolvers; the enum-like
// preference fields are rendered as their names.
func sessionMap(v usecases.SessionView) map[string]interface{} {
	prefs := v.Form.Preferences
	form := map[string]interface{}{
		"state":         string(v.Form.State),
		"visible":       v.Form.Visible,
		"origin_locked": v.Form.OriginLock,
		"last_error":    v.Form.LastError,
		"preferences": map[string]interface{}{
			"search_radius_km": prefs.SearchRadiusKm,
			"pub_quality":      prefs.PubQuality.String(),
			"walk_tolerance":   prefs.WalkTolerance.String(),
			"warrior_mode":     prefs.WarriorMode,
		},
	}
	if v.Form.Origin != nil {
		form["origin"] = *v.Form.Origin
	}
	return map[string]interface{}{
		"id":         v.ID,
		"view":       v.View,
		"surface":    v.Surface,
		"generation": v.Generation,
		"incidents":  v.Incidents,
		"form":       form,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
