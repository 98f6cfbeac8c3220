package obs

import (
	"context"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/shurcooL/graphql"

	"github.com/joescharf/qam/internal/models"
)

// PriorityAttribute carries the incident priority on the project.
const PriorityAttribute = "OBS:IncidentPriority"

// PriorityLookup resolves a priority from a source other than the build
// service.
type PriorityLookup interface {
	IncidentPriority(ctx context.Context, incident string) (models.Priority, error)
}

// Priority reads the priority attribute of the request's incident and falls
// back to the configured lookup. Failures yield an unknown priority.
func (c *OscClient) Priority(ctx context.Context, req *models.Request) models.Priority {
	data, err := c.get(ctx, attributePath(req.SrcProject, PriorityAttribute), nil)
	if err == nil {
		if p, ok := priorityFromAttribute(data); ok {
			return p
		}
	}
	if c.smelt == nil {
		return models.UnknownPriority()
	}
	p, err := c.smelt.IncidentPriority(ctx, req.Incident())
	if err != nil {
		return models.UnknownPriority()
	}
	return p
}

func priorityFromAttribute(data []byte) (models.Priority, bool) {
	var attrs xmlAttributes
	if err := xml.Unmarshal(data, &attrs); err != nil {
		return models.UnknownPriority(), false
	}
	for _, a := range attrs.Attributes {
		for _, v := range a.Values {
			if p, err := models.ParsePriority(strings.TrimSpace(v)); err == nil {
				return p, true
			}
		}
	}
	return models.UnknownPriority(), false
}

// Smelt looks up incident priorities in the maintenance tracker's GraphQL
// API.
type Smelt struct {
	client *graphql.Client
}

// NewSmelt returns a lookup against the GraphQL endpoint at url.
func NewSmelt(url string) *Smelt {
	return &Smelt{client: graphql.NewClient(url, cleanhttp.DefaultPooledClient())}
}

type smeltIncidentQuery struct {
	Incidents struct {
		Edges []struct {
			Node struct {
				Priority *graphql.Int
			}
		}
	} `graphql:"incidents(incidentId: $incidentId)"`
}

func (s *Smelt) IncidentPriority(ctx context.Context, incident string) (models.Priority, error) {
	n, err := strconv.Atoi(incident)
	if err != nil {
		return models.UnknownPriority(), err
	}
	var q smeltIncidentQuery
	if err := s.client.Query(ctx, &q, map[string]any{"incidentId": graphql.Int(n)}); err != nil {
		return models.UnknownPriority(), err
	}
	edges := q.Incidents.Edges
	if len(edges) == 0 || edges[0].Node.Priority == nil {
		return models.UnknownPriority(), nil
	}
	return models.NewPriority(int(*edges[0].Node.Priority)), nil
}
