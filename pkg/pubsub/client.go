// Package pubsub publishes outbox events to Google Cloud Pub/Sub topics with
// per-key message ordering.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// topics resolves short topic names against one project.
type topics struct {
	project string
	names   []string
}

func newTopics(project string, cfg config.PubSubConfig) topics {
	t := topics{project: strings.TrimSpace(project)}
	for _, name := range []string{cfg.OrdersTopic} {
		if name = strings.TrimSpace(name); name != "" {
			t.names = append(t.names, name)
		}
	}
	return t
}

// resource returns projects/<p>/topics/<name>; fully qualified names pass
// through. Empty means the name cannot be resolved.
func (t topics) resource(name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	case t.project == "":
		return ""
	}
	return "projects/" + t.project + "/topics/" + name
}

// Client caches one ordered publisher per topic on top of the v2 client.
type Client struct {
	client *pubsub.Client
	topics topics

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails unless every configured topic
// already exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	t := newTopics(gcp.ProjectID, cfg)
	if t.project == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, t.project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, topics: t}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": t.project,
			"topics":  t.names,
		}), "pubsub client initialized")
	}
	return c, nil
}

// Inline JSON wins over a credentials file; neither means ADC.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping confirms every configured topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if len(c.topics.names) == 0 {
		return errNoTopics
	}
	for _, name := range c.topics.names {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topics.resource(name)})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", name)
		case err != nil:
			return fmt.Errorf("checking topic %q: %w", name, err)
		}
	}
	return nil
}

// Publish sends msg and blocks until the server acks it. A failed publish
// pauses msg's ordering key, so the key is resumed before returning.
func (c *Client) Publish(ctx context.Context, topic string, msg *pubsub.Message) (string, error) {
	pub, err := c.publisher(topic)
	if err != nil {
		return "", err
	}
	id, err := pub.Publish(ctx, msg).Get(ctx)
	if err == nil {
		return id, nil
	}
	if msg.OrderingKey != "" {
		pub.ResumePublish(msg.OrderingKey)
	}
	return "", fmt.Errorf("publish to %s: %w", topic, err)
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	if c == nil || c.client == nil {
		return nil, errNotInitialized
	}
	name := c.topics.resource(topic)
	if name == "" {
		return nil, fmt.Errorf("topic %q not configured", topic)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[name]; ok {
		return pub, nil
	}
	if c.publishers == nil {
		c.publishers = make(map[string]*pubsub.Publisher)
	}
	pub := c.client.Publisher(name)
	pub.EnableMessageOrdering = true
	c.publishers[name] = pub
	return pub, nil
}

// Close flushes and stops cached publishers, then closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, pub := range c.publishers {
		pub.Stop()
	}
	c.publishers = nil
	c.mu.Unlock()
	return c.client.Close()
}
