//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"newsdesk/internal/domain"
	"newsdesk/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) config(name string) Config {
	return Config{
		URL:        s.amqpURL,
		Exchange:   "newsdesk-" + name,
		RoutingKey: "articles",
		QueueName:  "article-changes-" + name,
	}
}

func testArticle(category domain.Category) *domain.Article {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Article{
		ID:          "550e8400-e29b-41d4-a716-446655440000",
		APIID:       "newsapi_techcrunch_1a2b3c4d",
		Title:       "Chip shortage eases",
		Description: utils.Ptr("Suppliers report recovering output"),
		URL:         "https://example.com/chips",
		Source:      utils.Ptr("TechCrunch"),
		Author:      utils.Ptr("Jane Doe"),
		Category:    category,
		PublishedAt: now,
	}
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	pub, err := NewRabbitMQ(s.config("connect"), s.logger)
	s.NoError(err)
	s.NotNil(pub)

	s.NoError(pub.Close())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishCreated() {
	cfg := s.config("created")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, testArticle(domain.CategoryTechnology), true)
	s.Require().NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("articles.created.technology", msg.RoutingKey)
	s.Equal(EventArticleCreated, msg.Type)
	s.NotEmpty(msg.MessageId)

	var received ArticleChange
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(EventArticleCreated, received.Event)
	s.Equal("newsapi_techcrunch_1a2b3c4d", received.APIID)
	s.Equal("Chip shortage eases", received.Article.Title)
	s.Require().NotNil(received.Article.Source)
	s.Equal("TechCrunch", *received.Article.Source)
	s.False(received.OccurredAt.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishUpdated() {
	cfg := s.config("updated")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.Publish(s.ctx, testArticle(domain.CategorySports), false)
	s.Require().NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("articles.updated.sports", msg.RoutingKey)

	var received ArticleChange
	s.Require().NoError(json.Unmarshal(msg.Body, &received))
	s.Equal(EventArticleUpdated, received.Event)
	s.Equal("sports", received.Category)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagePersistence() {
	cfg := s.config("persist")
	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	s.Require().NoError(pub.Publish(s.ctx, testArticle(domain.CategoryHealth), true))

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)
	s.Equal("application/json", msg.ContentType)
	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
