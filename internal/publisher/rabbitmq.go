package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"newsdesk/internal/domain"
)

const (
	EventArticleCreated = "article.created"
	EventArticleUpdated = "article.updated"
)

// RabbitMQ announces article writes on a topic exchange. Each event is routed
// under "<routing key>.<created|updated>.<category>".
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
	now        func() time.Time
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("component", "publisher"),
		now:        time.Now,
	}, nil
}

// declareTopology binds the change queue to every event under the routing key.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey+".#", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// ArticleChange is the body of every published event. It carries the article
// as stored so consumers need no read-back.
type ArticleChange struct {
	Event      string         `json:"event"`
	ArticleID  string         `json:"articleId"`
	APIID      string         `json:"apiId"`
	Category   string         `json:"category"`
	Article    domain.Article `json:"article"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func NewArticleChange(article *domain.Article, isNew bool, at time.Time) ArticleChange {
	event := EventArticleUpdated
	if isNew {
		event = EventArticleCreated
	}
	return ArticleChange{
		Event:      event,
		ArticleID:  article.ID,
		APIID:      article.APIID,
		Category:   string(article.Category),
		Article:    *article,
		OccurredAt: at.UTC(),
	}
}

// RoutingKey places the event under base, e.g. "articles.created.sports".
func (c ArticleChange) RoutingKey(base string) string {
	action := "updated"
	if c.Event == EventArticleCreated {
		action = "created"
	}
	return base + "." + action + "." + c.Category
}

func (r *RabbitMQ) Publish(ctx context.Context, article *domain.Article, isNew bool) error {
	change := NewArticleChange(article, isNew, r.now())

	body, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal article change: %w", err)
	}

	routingKey := change.RoutingKey(r.routingKey)
	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    uuid.NewString(),
			Type:         change.Event,
			Body:         body,
			Timestamp:    change.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", change.Event, err)
	}

	r.logger.Debug("published article change",
		"article_id", article.ID,
		"api_id", article.APIID,
		"event", change.Event,
		"routing_key", routingKey,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
