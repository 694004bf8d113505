package stock

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/stockledger/inventory-api/internal/types"
)

// Gateway is the transactions side's view of the Products service: read the
// current stock, overwrite it with an absolute value. Delta arithmetic and
// retry policy belong to the caller.
type Gateway interface {
	FetchStock(ctx context.Context, productID uint) (*types.ProductStock, error)
	ApplyStock(ctx context.Context, productID uint, newStock int, expectedStock *int) error
}

// Client is the HTTP implementation of Gateway. One instance is built at
// process start and shared; it must not be constructed per request.
type Client struct {
	http    *resty.Client
	baseURL string
}

type envelope struct {
	Success bool                `json:"success"`
	Data    *types.ProductStock `json:"data"`
}

// NewClient creates a stock gateway against the Products service base URL,
// e.g. http://localhost:8081/api/v1/products. The bearer token authenticates
// stock writes; pass an empty string when the collaborator is unprotected.
func NewClient(baseURL, bearerToken string) *Client {
	httpClient := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	if bearerToken != "" {
		httpClient.SetAuthToken(bearerToken)
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
	}
}

// FetchStock reads the product's current stock. A 404 from the collaborator
// means the product does not exist; any other non-2xx outcome, including
// transport errors, is reported as the remote being unavailable.
func (c *Client) FetchStock(ctx context.Context, productID uint) (*types.ProductStock, error) {
	var body envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Get(fmt.Sprintf("%s/%d", c.baseURL, productID))
	if err != nil {
		return nil, types.Wrap(types.ErrRemoteUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, types.ErrProductNotFound
	case !resp.IsSuccess():
		return nil, types.Wrapf(types.ErrRemoteUnavailable, nil,
			"products service returned status %d", resp.StatusCode())
	}

	if body.Data == nil {
		return nil, types.Wrapf(types.ErrRemoteUnavailable, nil,
			"products service returned an empty product payload")
	}
	return body.Data, nil
}

// ApplyStock overwrites the product's stock with an absolute value. When
// expectedStock is non-nil the write is conditional and a 409 from the
// collaborator is surfaced as a stock conflict so the caller can re-read and
// recompute.
func (c *Client) ApplyStock(ctx context.Context, productID uint, newStock int, expectedStock *int) error {
	write := types.StockWrite{
		Stock:         newStock,
		ExpectedStock: expectedStock,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(write).
		Patch(fmt.Sprintf("%s/%d", c.baseURL, productID))
	if err != nil {
		return types.Wrap(types.ErrRemoteUnavailable, err)
	}

	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusConflict:
		return types.ErrStockConflict
	case resp.StatusCode() == http.StatusNotFound:
		return types.ErrProductNotFound
	default:
		log.Warn().
			Str("component", "stock_gateway").
			Uint("product_id", productID).
			Int("status", resp.StatusCode()).
			Msg("stock write rejected by products service")
		return types.Wrapf(types.ErrRemoteUnavailable, nil,
			"products service returned status %d", resp.StatusCode())
	}
}
