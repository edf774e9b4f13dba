package httpapi

import (
	"github.com/Quyzi/mc6/pkg/label"
	"github.com/Quyzi/mc6/pkg/mc6err"
	"github.com/Quyzi/mc6/pkg/search"
)

// wireSearchRequest is the JSON body POST /v1/search/ accepts: a collection
// plus flat include/exclude label lists (spec §6).
type wireSearchRequest struct {
	Collection string   `json:"collection"`
	Include    []string `json:"include"`
	Exclude    []string `json:"exclude"`
}

func (w wireSearchRequest) toRequest() (search.Request, error) {
	req := search.Request{Collection: w.Collection}
	for _, s := range w.Include {
		l, err := label.Parse(s)
		if err != nil {
			return search.Request{}, mc6err.Wrap(mc6err.KindInvalidLabel, "invalid include label "+s, err)
		}
		req.Include(l)
	}
	for _, s := range w.Exclude {
		l, err := label.Parse(s)
		if err != nil {
			return search.Request{}, mc6err.Wrap(mc6err.KindInvalidLabel, "invalid exclude label "+s, err)
		}
		req.Exclude(l)
	}
	return req, nil
}

// wireFoundObject is one result entry in the JSON search response.
type wireFoundObject struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
	Labels     string `json:"labels"`
}

// wireSearchResponse is the JSON body returned from POST /v1/search/.
type wireSearchResponse struct {
	Collection string            `json:"collection"`
	Results    []wireFoundObject `json:"results"`
}

func fromResponse(resp search.Response) wireSearchResponse {
	out := wireSearchResponse{
		Collection: resp.Request.Collection,
		Results:    make([]wireFoundObject, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, wireFoundObject{
			Collection: r.Object.Collection,
			Name:       r.Object.Name,
			Labels:     r.Meta.LabelString(),
		})
	}
	return out
}
