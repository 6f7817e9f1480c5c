package client

import (
	"net/url"
	"sort"
	"strings"
)

const clientParamPrefix = "client-"

// ClientQuery filters the listing on a client. An empty Version matches
// every version of the client.
type ClientQuery struct {
	Name    string
	Version string
}

// ListingQuery holds the listing filters and the page cursor
type ListingQuery struct {
	Clients     []ClientQuery
	SpecVersion string
	SpecConfig  string
	HasFail     bool

	// After and Before are task keys bounding the page
	After  string
	Before string
}

// Values encodes the query the way the listing endpoint expects it
func (q ListingQuery) Values() url.Values {
	params := url.Values{}
	for _, c := range q.Clients {
		version := c.Version
		if version == "" {
			version = "all"
		}
		params.Set(clientParamPrefix+c.Name, version)
	}
	if q.SpecVersion != "" {
		params.Set("spec-version", q.SpecVersion)
	}
	if q.SpecConfig != "" {
		params.Set("spec-config", q.SpecConfig)
	}
	if q.HasFail {
		params.Set("has-fail", "true")
	}
	if q.After != "" {
		params.Set("after", q.After)
	}
	if q.Before != "" {
		params.Set("before", q.Before)
	}
	return params
}

// CacheKey identifies the query independent of parameter order
func (q ListingQuery) CacheKey() string {
	return q.Values().Encode()
}

// ParseListingQuery is the inverse of Values
func ParseListingQuery(params url.Values) ListingQuery {
	q := ListingQuery{
		SpecVersion: params.Get("spec-version"),
		SpecConfig:  params.Get("spec-config"),
		HasFail:     params.Get("has-fail") == "true",
		After:       params.Get("after"),
		Before:      params.Get("before"),
	}
	for k := range params {
		if !strings.HasPrefix(k, clientParamPrefix) {
			continue
		}
		c := ClientQuery{Name: strings.TrimPrefix(k, clientParamPrefix), Version: params.Get(k)}
		if c.Name == "" {
			continue
		}
		if c.Version == "all" {
			c.Version = ""
		}
		q.Clients = append(q.Clients, c)
	}
	sort.Slice(q.Clients, func(i, j int) bool { return q.Clients[i].Name < q.Clients[j].Name })
	return q
}
