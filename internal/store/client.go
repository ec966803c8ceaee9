package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/byomakase/time-addressable-media-store-tools/internal/model"
	"github.com/byomakase/time-addressable-media-store-tools/internal/timecode"
)

const defaultRequestTimeout = 30 * time.Second

// Client talks to a TAMS-style store HTTP API. It implements Reader and
// Writer. Credential issuance is out of scope here: the bearer token is
// supplied ready-made by the caller.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient returns a Client for the API rooted at endpoint. httpClient may
// be nil, in which case a client with a 30s timeout is used; timeouts surface
// as ErrUpstream like any other transport failure.
func NewClient(endpoint, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     httpClient,
	}
}

// GetFlow implements Reader.
func (c *Client) GetFlow(ctx context.Context, id string) (model.Flow, error) {
	var flow model.Flow
	_, err := c.getJSON(ctx, c.endpoint+"/flows/"+url.PathEscape(id)+"?include_timerange=true", &flow)
	if err != nil {
		return model.Flow{}, err
	}
	if err := flow.Validate(); err != nil {
		return model.Flow{}, err
	}
	return flow, nil
}

// GetFlowsBySource implements Reader.
func (c *Client) GetFlowsBySource(ctx context.Context, sourceID string) ([]model.Flow, error) {
	var flows []model.Flow
	_, err := c.getJSON(ctx, c.endpoint+"/flows?source_id="+url.QueryEscape(sourceID), &flows)
	if err != nil {
		return nil, err
	}
	for _, flow := range flows {
		if err := flow.Validate(); err != nil {
			return nil, err
		}
	}
	return flows, nil
}

// ListSegments implements Reader, following RFC 5988 "next" links until limit
// segments have been collected or the pages run out.
func (c *Client) ListSegments(ctx context.Context, flowID string, limit int, newestFirst bool) ([]model.Segment, error) {
	next := c.endpoint + "/flows/" + url.PathEscape(flowID) + "/segments?"
	params := url.Values{}
	if newestFirst {
		params.Set("reverse_order", "true")
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	next += params.Encode()

	var segments []model.Segment
	for next != "" {
		var page []model.Segment
		links, err := c.getJSON(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		segments = append(segments, page...)
		if limit > 0 && len(segments) >= limit {
			segments = segments[:limit]
			break
		}
		next = links["next"]
	}
	return segments, nil
}

// CountSegmentsAtOrBefore implements Reader by paging oldest-first and
// counting until a segment starts after ts.
func (c *Client) CountSegmentsAtOrBefore(ctx context.Context, flowID string, ts timecode.Timestamp) (int, error) {
	segments, err := c.ListSegments(ctx, flowID, 0, false)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, segment := range segments {
		if segment.TimeRange.Start.After(ts) {
			break
		}
		count++
	}
	return count, nil
}

// PutFlow implements Writer.
func (c *Client) PutFlow(ctx context.Context, flow model.Flow) error {
	body, err := json.Marshal(flow)
	if err != nil {
		return err
	}
	target := c.endpoint + "/flows/" + url.PathEscape(flow.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: PUT %s: %v", ErrUpstream, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: PUT %s: status %d", ErrUpstream, target, resp.StatusCode)
	}
	return nil
}

// PutSegments implements Writer. The whole batch is one request, so a
// cancelled run never leaves a batch partially applied.
func (c *Client) PutSegments(ctx context.Context, batch model.SegmentBatch) error {
	if len(batch.Segments) == 0 {
		return nil
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	target := c.endpoint + "/flows/" + url.PathEscape(batch.FlowID) + "/segments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrUpstream, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: POST %s: status %d", ErrUpstream, target, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// getJSON fetches target into out and returns any web-linking relations from
// the response's Link header.
func (c *Client) getJSON(ctx context.Context, target string, out any) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrUpstream, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: GET %s", ErrNotFound, target)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrUpstream, target, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", model.ErrValidation, target, err)
	}
	return parseLinks(resp.Header.Values("Link")), nil
}

// parseLinks extracts rel -> URL pairs from Link header values, e.g.
// `<https://host/page2>; rel="next"`.
func parseLinks(headers []string) map[string]string {
	links := map[string]string{}
	for _, header := range headers {
		for _, part := range strings.Split(header, ",") {
			fields := strings.Split(part, ";")
			if len(fields) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(fields[0]), "<>")
			for _, param := range fields[1:] {
				key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
				if ok && key == "rel" {
					links[strings.Trim(value, `"`)] = target
				}
			}
		}
	}
	return links
}
