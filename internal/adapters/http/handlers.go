package http

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/raycross/internal/adapters/feed"
	"github.com/samirrijal/raycross/internal/adapters/postgres"
	"github.com/samirrijal/raycross/internal/core/domain"
	"github.com/samirrijal/raycross/internal/core/usecases"
)

// numeric accepts a JSON number or a numeric string and keeps its text, so
// that both forms go through the same strict parser.
type numeric string

func (n *numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = numeric(s)
		return nil
	}
	*n = numeric(data)
	return nil
}

// rayRequest is the body of POST /v1/sessions/:id/rays.
type rayRequest struct {
	Latitude  numeric `json:"latitude"`
	Longitude numeric `json:"longitude"`
	Bearing   numeric `json:"bearing"`
	Distance  numeric `json:"distance"`
}

func (r rayRequest) row() domain.RawRow {
	return domain.RawRow{string(r.Latitude), string(r.Longitude), string(r.Bearing), string(r.Distance)}
}

// importRequest is the JSON form of POST /v1/sessions/:id/import.
type importRequest struct {
	Rows [][]numeric `json:"rows"`
}

// sessionResponse is a session snapshot plus where to open its map.
type sessionResponse struct {
	*domain.Snapshot
	View domain.MapView `json:"view"`
}

func newSessionResponse(snap *domain.Snapshot) sessionResponse {
	if snap.Rays == nil {
		snap.Rays = []domain.Ray{}
	}
	return sessionResponse{Snapshot: snap, View: usecases.ViewOf(snap.Rays)}
}

// ProjectHandler computes a destination without touching any session.
func ProjectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, err := domain.ParseRow(domain.RawRow{c.Query("lat"), c.Query("lon"), c.Query("bearing"), c.Query("distance")})
		if err != nil {
			return errInvalidInput(c, err.Error())
		}
		ray, err := deps.Projections.Project(c.UserContext(), in)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(ray)
	}
}

// CreateSessionHandler opens an empty session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.CreateSession(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}
		c.Location("/v1/sessions/" + snap.SessionID)
		return c.Status(fiber.StatusCreated).JSON(newSessionResponse(snap))
	}
}

// GetSessionHandler returns a session snapshot.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.GetSession(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(newSessionResponse(snap))
	}
}

// CloseSessionHandler tears a session down.
func CloseSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.CloseSession(c.UserContext(), c.Params("id")); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ListRaysHandler returns a page of a session's rays in insertion order.
func ListRaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap, err := deps.Sessions.GetSession(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		offset, limit := pageParams(c)
		rays, pg := paginate(snap.Rays, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: rays, Pagination: pg})
	}
}

// AddRayHandler adds one ray from {latitude, longitude, bearing, distance}.
func AddRayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req rayRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		in, err := domain.ParseRow(req.row())
		if err != nil {
			return errInvalidInput(c, err.Error())
		}
		ray, err := deps.Sessions.AddRay(c.UserContext(), c.Params("id"), in)
		if err != nil {
			return errFromService(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ray)
	}
}

// ToggleRayHandler flips a ray's selection.
func ToggleRayHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ray, err := deps.Sessions.ToggleRaySelection(c.UserContext(), c.Params("id"), c.Params("rayId"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(ray)
	}
}

// RemoveSelectedHandler deletes every selected ray.
func RemoveSelectedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		removed, err := deps.Sessions.RemoveSelectedRays(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		if removed == nil {
			removed = []string{}
		}
		return c.JSON(fiber.Map{"removed": removed})
	}
}

// ComputeFitHandler intersects all rays and fits an ellipse. Insufficient rays
// and empty results are reported in the status field with 200.
func ComputeFitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := deps.Sessions.ComputeIntersectionsAndFit(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		if res.Intersections == nil {
			res.Intersections = []domain.IntersectionPoint{}
		}
		return c.JSON(res)
	}
}

// ImportHandler imports rows from a CSV or XLSX body, a multipart "file"
// field, or JSON {"rows": [[lat, lon, bearing, distance], ...]}.
func ImportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		ct := strings.ToLower(c.Get(fiber.HeaderContentType))

		if strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			var req importRequest
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
			rows := make([]domain.RawRow, len(req.Rows))
			for i, cells := range req.Rows {
				row := make(domain.RawRow, len(cells))
				for j, cell := range cells {
					row[j] = string(cell)
				}
				rows[i] = row
			}
			report, err := deps.Sessions.ImportRays(c.UserContext(), id, rows)
			if err != nil {
				return errFromService(c, err)
			}
			return c.JSON(report)
		}

		body := c.Body()
		filename := c.Query("filename")
		if strings.HasPrefix(ct, fiber.MIMEMultipartForm) {
			fh, err := c.FormFile("file")
			if err != nil {
				return errBadRequest(c, "multipart upload needs a file field")
			}
			f, err := fh.Open()
			if err != nil {
				return errBadRequest(c, err.Error())
			}
			defer f.Close()
			if body, err = io.ReadAll(f); err != nil {
				return errBadRequest(c, err.Error())
			}
			filename = fh.Filename
			ct = fh.Header.Get(fiber.HeaderContentType)
		}

		format, err := feed.Detect(ct, filename, body)
		if err != nil {
			return errBadRequest(c, "empty or unrecognised upload")
		}
		rf, err := feed.FromBytes(format, body)
		if err != nil {
			return errFromService(c, err)
		}
		rows, err := rf.Rows(c.UserContext())
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		report, err := deps.Sessions.ImportFeed(c.UserContext(), id, feed.Static{Name: rf.Source(), Data: rows})
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(report)
	}
}

// ImportBatchHandler imports a stored observation batch.
func ImportBatchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Observations == nil {
			return errUnavailable(c, "observation store not configured")
		}
		rf := postgres.NewBatchFeed(deps.Observations, c.Params("batch"))
		report, err := deps.Sessions.ImportFeed(c.UserContext(), c.Params("id"), rf)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(report)
	}
}

// ListBatchesHandler lists stored observation batches.
func ListBatchesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Observations == nil {
			return errUnavailable(c, "observation store not configured")
		}
		batches, err := deps.Observations.ListBatches(c.UserContext())
		if err != nil {
			return errFromService(c, err)
		}
		if batches == nil {
			batches = []string{}
		}
		return c.JSON(fiber.Map{"batches": batches})
	}
}

// OverlaysHandler renders a session as a GeoJSON FeatureCollection.
func OverlaysHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fc, err := deps.Sessions.Overlays(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			return errFromService(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}
