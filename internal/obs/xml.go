package obs

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/joescharf/qam/internal/models"
)

// whenLayout is how the build service renders timestamps (UTC, no zone).
const whenLayout = "2006-01-02T15:04:05"

type xmlCollection struct {
	XMLName  xml.Name     `xml:"collection"`
	Requests []xmlRequest `xml:"request"`
}

type xmlRequest struct {
	XMLName xml.Name     `xml:"request"`
	ID      string       `xml:"id,attr"`
	Creator string       `xml:"creator,attr"`
	Actions []xmlAction  `xml:"action"`
	State   xmlState     `xml:"state"`
	Reviews []xmlReview  `xml:"review"`
	History []xmlHistory `xml:"history"`
}

type xmlAction struct {
	Type   string      `xml:"type,attr"`
	Source xmlEndpoint `xml:"source"`
	Target xmlEndpoint `xml:"target"`
}

type xmlEndpoint struct {
	Project string `xml:"project,attr"`
	Package string `xml:"package,attr"`
}

type xmlState struct {
	Name    string `xml:"name,attr"`
	Who     string `xml:"who,attr"`
	When    string `xml:"when,attr"`
	Comment string `xml:"comment"`
}

type xmlReview struct {
	State   string       `xml:"state,attr"`
	When    string       `xml:"when,attr"`
	Who     string       `xml:"who,attr"`
	ByGroup string       `xml:"by_group,attr"`
	ByUser  string       `xml:"by_user,attr"`
	Comment string       `xml:"comment"`
	History []xmlHistory `xml:"history"`
}

type xmlHistory struct {
	Who         string `xml:"who,attr"`
	When        string `xml:"when,attr"`
	Description string `xml:"description"`
	Comment     string `xml:"comment"`
}

type xmlDirectory struct {
	Entries []struct {
		Name string `xml:"name,attr"`
	} `xml:"entry"`
}

type xmlGroup struct {
	Title   string `xml:"title"`
	Persons []struct {
		UserID string `xml:"userid,attr"`
	} `xml:"person>person"`
}

type xmlComments struct {
	Comments []struct {
		ID     string `xml:"id,attr"`
		Who    string `xml:"who,attr"`
		When   string `xml:"when,attr"`
		Parent string `xml:"parent,attr"`
		Text   string `xml:",chardata"`
	} `xml:"comment"`
}

type xmlAttributes struct {
	XMLName    xml.Name       `xml:"attributes"`
	Attributes []xmlAttribute `xml:"attribute"`
}

type xmlAttribute struct {
	Namespace string   `xml:"namespace,attr"`
	Name      string   `xml:"name,attr"`
	Values    []string `xml:"value"`
}

type xmlPatchinfo struct {
	Issues []struct {
		Tracker string `xml:"tracker,attr"`
		ID      string `xml:"id,attr"`
	} `xml:"issue"`
}

func parseWhen(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(whenLayout, s, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02 15:04:05 MST", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func decodeRequest(data []byte) (*models.Request, error) {
	var r xmlRequest
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return r.toModel(), nil
}

func decodeCollection(data []byte) ([]*models.Request, error) {
	var c xmlCollection
	if err := xml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode request collection: %w", err)
	}
	out := make([]*models.Request, 0, len(c.Requests))
	for i := range c.Requests {
		out = append(out, c.Requests[i].toModel())
	}
	return out, nil
}

func (r *xmlRequest) toModel() *models.Request {
	req := &models.Request{
		ID:      r.ID,
		State:   models.RequestState(r.State.Name),
		StateAt: parseWhen(r.State.When),
		Creator: r.creator(),
	}

	pkgs := make(map[string]struct{})
	for _, a := range r.Actions {
		if req.SrcProject == "" && a.Source.Project != "" {
			req.SrcProject = a.Source.Project
		}
		if a.Source.Package != "" && a.Source.Package != "patchinfo" {
			pkgs[a.Source.Package] = struct{}{}
		}
	}
	for p := range pkgs {
		req.Packages = append(req.Packages, p)
	}
	sort.Strings(req.Packages)

	for _, rv := range r.Reviews {
		switch {
		case rv.ByGroup != "":
			req.Groups = append(req.Groups, rv.ByGroup)
		case rv.ByUser != "":
			req.UserReviews = append(req.UserReviews, models.UserReview{User: rv.ByUser, State: rv.State})
		}
	}
	req.Events = r.events()
	return req
}

func (r *xmlRequest) creator() string {
	for _, h := range r.History {
		if h.Description == "Request created" {
			return h.Who
		}
	}
	return r.Creator
}
