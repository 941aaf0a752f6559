package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/usecases"
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

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	rayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ray",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"origin":          &graphql.Field{Type: geoPointType},
			"bearing":         &graphql.Field{Type: graphql.Float},
			"distance_meters": &graphql.Field{Type: graphql.Float},
			"destination":     &graphql.Field{Type: geoPointType},
			"selected":        &graphql.Field{Type: graphql.Boolean},
		},
	})

	intersectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Intersection",
		Fields: graphql.Fields{
			"lat":   &graphql.Field{Type: graphql.Float},
			"lon":   &graphql.Field{Type: graphql.Float},
			"ray_a": &graphql.Field{Type: graphql.String},
			"ray_b": &graphql.Field{Type: graphql.String},
		},
	})

	ellipseType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Ellipse",
		Fields: graphql.Fields{
			"center":                 &graphql.Field{Type: geoPointType},
			"semi_major_axis_meters": &graphql.Field{Type: graphql.Float},
			"semi_minor_axis_meters": &graphql.Field{Type: graphql.Float},
			"orientation_degrees":    &graphql.Field{Type: graphql.Float},
		},
	})

	fitType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FitResult",
		Fields: graphql.Fields{
			"status":        &graphql.Field{Type: graphql.String},
			"message":       &graphql.Field{Type: graphql.String},
			"attempts":      &graphql.Field{Type: graphql.Int},
			"intersections": &graphql.Field{Type: graphql.NewList(intersectionType)},
			"ellipse":       &graphql.Field{Type: ellipseType},
			"computed_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapView",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: geoPointType},
			"zoom":   &graphql.Field{Type: graphql.Int},
			"bounds": &graphql.Field{Type: boundsType},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"session_id":   &graphql.Field{Type: graphql.String},
			"rays":         &graphql.Field{Type: graphql.NewList(rayType)},
			"selected_ids": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"last_fit":     &graphql.Field{Type: fitType},
			"view":         &graphql.Field{Type: viewType},
			"created_at":   &graphql.Field{Type: graphql.DateTime},
			"updated_at":   &graphql.Field{Type: graphql.DateTime},
		},
	})

	sessionArg := graphql.FieldConfigArgument{
		"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	rayArgs := func(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		args := graphql.FieldConfigArgument{
			"lat":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lon":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"bearing":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			"distance": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	rayInput := func(p graphql.ResolveParams) (domain.RayInput, error) {
		return domain.NewRayInput(
			p.Args["lat"].(float64),
			p.Args["lon"].(float64),
			p.Args["bearing"].(float64),
			p.Args["distance"].(float64),
		)
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := deps.Sessions.GetSession(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return sessionFields(snap), nil
				},
			},
			"project": &graphql.Field{
				Type:        rayType,
				Description: "Project a destination from an origin, bearing and distance",
				Args:        rayArgs(nil),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in, err := rayInput(p)
					if err != nil {
						return nil, err
					}
					return deps.Projections.Project(p.Context, in)
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createSession": &graphql.Field{
				Type:        sessionType,
				Description: "Open an empty session",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := deps.Sessions.CreateSession(p.Context)
					if err != nil {
						return nil, err
					}
					return sessionFields(snap), nil
				},
			},
			"addRay": &graphql.Field{
				Type:        rayType,
				Description: "Add a ray to a session",
				Args:        rayArgs(sessionArg),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					in, err := rayInput(p)
					if err != nil {
						return nil, err
					}
					return deps.Sessions.AddRay(p.Context, p.Args["session"].(string), in)
				},
			},
			"toggleRay": &graphql.Field{
				Type:        rayType,
				Description: "Flip a ray's selection",
				Args: graphql.FieldConfigArgument{
					"session": sessionArg["session"],
					"ray":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.ToggleRaySelection(p.Context, p.Args["session"].(string), p.Args["ray"].(string))
				},
			},
			"removeSelected": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Remove every selected ray; returns the removed ids",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					removed, err := deps.Sessions.RemoveSelectedRays(p.Context, p.Args["session"].(string))
					if removed == nil {
						removed = []string{}
					}
					return removed, err
				},
			},
			"computeFit": &graphql.Field{
				Type:        fitType,
				Description: "Intersect every ray pair and fit an ellipse",
				Args:        sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.ComputeIntersectionsAndFit(p.Context, p.Args["session"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// sessionFields flattens a snapshot for the Session type.
func sessionFields(snap *domain.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"session_id":   snap.SessionID,
		"rays":         snap.Rays,
		"selected_ids": snap.SelectedIDs(),
		"last_fit":     snap.LastFit,
		"view":         usecases.ViewOf(snap.Rays),
		"created_at":   snap.CreatedAt,
		"updated_at":   snap.UpdatedAt,
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
