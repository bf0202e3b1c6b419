package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/dealroom/internal/model"
)

type dealsResponse struct {
	Deals []model.Deal `json:"deals"`
}

// ListDeals returns every deal visible to the signed-in user.
func (c *Client) ListDeals(ctx context.Context) ([]model.Deal, error) {
	var resp dealsResponse
	if err := c.getJSON(ctx, "/v1/deals", &resp); err != nil {
		return nil, fmt.Errorf("listing deals: %w", err)
	}
	return resp.Deals, nil
}

// GetDeal returns one deal with its documents and timeline.
func (c *Client) GetDeal(ctx context.Context, id string) (model.Deal, error) {
	var d model.Deal
	if err := c.getJSON(ctx, "/v1/deals/"+url.PathEscape(id), &d); err != nil {
		return model.Deal{}, fmt.Errorf("fetching deal %s: %w", id, err)
	}
	return d, nil
}

type updateStageRequest struct {
	Stage model.DealStage `json:"stage"`
}

// UpdateDealStage moves a deal to stage and returns the server's copy.
func (c *Client) UpdateDealStage(ctx context.Context, id string, stage model.DealStage) (model.Deal, error) {
	var d model.Deal
	err := c.sendJSON(ctx, http.MethodPatch, "/v1/deals/"+url.PathEscape(id),
		updateStageRequest{Stage: stage}, &d)
	if err != nil {
		return model.Deal{}, fmt.Errorf("updating deal %s: %w", id, err)
	}
	return d, nil
}
