package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/transfa/wallet-service/internal/domain"
	"github.com/transfa/wallet-service/pkg/rabbitmq"
)

const publishTimeout = 5 * time.Second

// eventNotifier logs every notice of one client and forwards it to RabbitMQ.
type eventNotifier struct {
	clientID  string
	publisher rabbitmq.Publisher
}

func newEventNotifier(clientID string, publisher rabbitmq.Publisher) *eventNotifier {
	return &eventNotifier{clientID: clientID, publisher: publisher}
}

type noticePayload struct {
	Draft   *domain.DraftTransaction `json:"draft,omitempty"`
	Receipt *domain.Receipt          `json:"receipt,omitempty"`
}

func (n *eventNotifier) Notify(ctx context.Context, notice domain.Notice) {
	log.Printf("level=%s component=notice client_id=%s session_id=%s kind=%s msg=%q", notice.Level, n.clientID, notice.SessionID, notice.Kind, notice.Message)

	event := rabbitmq.WalletEvent{
		EventID:   uuid.New(),
		ClientID:  n.clientID,
		SessionID: notice.SessionID,
		Kind:      string(notice.Kind),
		Level:     notice.Level,
		Message:   notice.Message,
		Timestamp: notice.At,
	}
	if notice.Draft != nil || notice.Receipt != nil {
		raw, err := json.Marshal(noticePayload{Draft: notice.Draft, Receipt: notice.Receipt})
		if err == nil {
			event.Payload = raw
		}
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.publisher.PublishWalletEvent(publishCtx, event); err != nil {
		log.Printf("level=warn component=notice msg=\"wallet event publish failed\" client_id=%s kind=%s err=%v", n.clientID, notice.Kind, err)
	}
}
