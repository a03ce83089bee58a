package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stop",
		Fields: graphql.Fields{
			"id":                    &graphql.Field{Type: graphql.String},
			"stop_id":               &graphql.Field{Type: graphql.String},
			"agency_id":             &graphql.Field{Type: graphql.String},
			"name":                  &graphql.Field{Type: graphql.String},
			"location":              &graphql.Field{Type: geoPointType},
			"wheelchair_accessible": &graphql.Field{Type: graphql.Boolean},
		},
	})

	neighborType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Neighbor",
		Fields: graphql.Fields{
			"id":     &graphql.Field{Type: graphql.String},
			"meters": &graphql.Field{Type: graphql.Float},
		},
	})

	radiusCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RadiusCount",
		Fields: graphql.Fields{
			"radius_meters": &graphql.Field{Type: graphql.Float},
			"count":         &graphql.Field{Type: graphql.Int},
		},
	})

	summaryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AccessibilitySummary",
		Fields: graphql.Fields{
			"location":            &graphql.Field{Type: geoPointType},
			"nearest_stop_meters": &graphql.Field{Type: graphql.Float},
			"counts":              &graphql.Field{Type: graphql.NewList(radiusCountType)},
			"snapshot_revision":   &graphql.Field{Type: graphql.Int},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Snapshot",
		Fields: graphql.Fields{
			"revision":         &graphql.Field{Type: graphql.Int},
			"stops":            &graphql.Field{Type: graphql.Int},
			"cell_size_meters": &graphql.Field{Type: graphql.Float},
			"built_at":         &graphql.Field{Type: graphql.DateTime},
			"build_duration":   &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"nearestStopMeters": &graphql.Field{
				Type:        graphql.Float,
				Description: "Planar distance to the closest stop, null when none is reachable",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					d := deps.Accessibility.Nearest(p.Context, lat, lon)
					if d == nil {
						return nil, nil
					}
					return *d, nil
				},
			},
			"nearestStops": &graphql.Field{
				Type:        graphql.NewList(neighborType),
				Description: "Up to k stops ascending by distance",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"k":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					k := p.Args["k"].(int)
					return deps.Accessibility.KNearest(p.Context, lat, lon, k), nil
				},
			},
			"countWithin": &graphql.Field{
				Type:        graphql.Int,
				Description: "Exact number of stops within a radius of a point",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					return deps.Accessibility.CountWithin(p.Context, lat, lon, radius), nil
				},
			},
			"accessibilitySummary": &graphql.Field{
				Type:        summaryType,
				Description: "Nearest-stop distance plus counts at the fixed summary radii",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					return deps.Accessibility.Summary(p.Context, lat, lon), nil
				},
			},
			"snapshot": &graphql.Field{
				Type:        snapshotType,
				Description: "Metadata about the snapshot currently serving queries",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, ok := deps.Accessibility.Snapshot()
					if !ok {
						return nil, nil
					}
					return snap, nil
				},
			},
			"stop": &graphql.Field{
				Type:        stopType,
				Description: "Get a stop by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Stops.GetByID(p.Context, id)
				},
			},
			"stops": &graphql.Field{
				Type:        graphql.NewList(stopType),
				Description: "One page of the stop inventory",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					offset := p.Args["offset"].(int)
					limit := p.Args["limit"].(int)
					stops, _, err := deps.Stops.List(p.Context, offset, limit)
					return stops, err
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
