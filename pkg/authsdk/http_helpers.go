package authsdk

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// request starts a request bound to ctx.
func (c *SDKClient) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// decode maps a resty response to target or to an *APIError.
func decode(resp *resty.Response, err error, expectedStatus int) error {
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode() != expectedStatus {
		return parseErrorResponse(resp.StatusCode(), resp.Header(), resp.Body())
	}
	return nil
}
