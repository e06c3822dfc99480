package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	syncusecase "mailpilot-backend/internal/sync/usecase"
)

// MailboxNotification is the payload the provider webhook relay publishes
// when a linked mailbox changes.
type MailboxNotification struct {
	AccountID string `json:"accountId"`
	ChangedAt int64  `json:"changedAt"`
}

// Service listens on a Pub/Sub subscription for mailbox-change notifications
// and triggers incremental syncs. Transient failures nack the message for
// redelivery; fatal ones (missing delta token) ack and wait for an operator.
type Service struct {
	pubsubClient *pubsub.Client
	syncUsecase  syncusecase.SyncUsecase
	topicName    string
	subName      string
}

func NewService(projectID, topicName string, syncUc syncusecase.SyncUsecase, credentialsFile string) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Service{
		pubsubClient: client,
		syncUsecase:  syncUc,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg)
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *pubsub.Message) {
	var notification MailboxNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		msg.Ack()
		return
	}
	if notification.AccountID == "" {
		msg.Ack()
		return
	}

	log.Printf("[PubSub] Mailbox change for account %s, triggering incremental sync", notification.AccountID)

	syncCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	_, err := s.syncUsecase.PerformIncrementalSync(syncCtx, notification.AccountID)
	switch {
	case err == nil:
		msg.Ack()
	case err == syncusecase.ErrNoDeltaToken, err == syncusecase.ErrAccountNotFound:
		// Not retryable: redelivery would fail the same way.
		log.Printf("[PubSub] Dropping notification for account %s: %v", notification.AccountID, err)
		msg.Ack()
	case err == syncusecase.ErrSyncInProgress:
		// A running sync will pick the change up; no need to redeliver.
		msg.Ack()
	default:
		log.Printf("[PubSub] Incremental sync failed for account %s, nacking: %v", notification.AccountID, err)
		msg.Nack()
	}
}
