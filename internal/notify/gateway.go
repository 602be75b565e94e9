package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"marketplace-escrow-go/internal/models"
)

// Gateway pushes user-facing events to devices. Delivery is best-effort
// everywhere: callers log failures and move on, they never roll back
// business state because a push failed.
type Gateway interface {
	Push(ctx context.Context, token, title, body string, data map[string]string) error
}

type pushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type restGateway struct {
	client   *resty.Client
	endpoint string
}

// NewGateway returns an HTTP push gateway, or a no-op one when the
// endpoint is unconfigured.
func NewGateway(cfg models.NotifyConfig) Gateway {
	if cfg.Endpoint == "" {
		zap.L().Info("Notification endpoint not configured, pushes disabled")
		return noopGateway{}
	}

	client := resty.New().SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &restGateway{client: client, endpoint: cfg.Endpoint}
}

func (g *restGateway) Push(ctx context.Context, token, title, body string, data map[string]string) error {
	if token == "" {
		zap.L().Debug("Skipping push, no device token")
		return nil
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(pushMessage{Token: token, Title: title, Body: body, Data: data}).
		Post(g.endpoint)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("push request status: %d", resp.StatusCode())
	}

	zap.L().Debug("Push delivered",
		zap.String("title", title),
		zap.Duration("elapsed", resp.Time()))
	return nil
}

type noopGateway struct{}

func (noopGateway) Push(context.Context, string, string, string, map[string]string) error {
	return nil
}

// Noop returns a gateway that drops every push. Used in tests and in
// binaries that never notify.
func Noop() Gateway {
	return noopGateway{}
}
