package service

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"ai-chatstream-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const maxAutoTitleRunes = 60

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService names untitled sessions after their first completed turn.
type consumerService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	sessionService ISessionService
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	sessionService ISessionService,
) IConsumerService {
	return &consumerService{
		pubSub:         pubSub,
		topicName:      topicName,
		sessionService: sessionService,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishTurnCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	title := TitleFromPrompt(payload.Prompt)
	if title == "" {
		msg.Ack()
		return
	}

	renamed, err := cs.sessionService.RenameIfDefault(ctx, payload.SessionId, title)
	if err != nil {
		log.Printf("[ERROR] Failed to auto-title session %s: %v", payload.SessionId, err)
		msg.Nack()
		return
	}
	if renamed {
		log.Printf("[INFO] Auto-titled session %s", payload.SessionId)
	}

	msg.Ack()
}

// TitleFromPrompt collapses whitespace and cuts the prompt to a short title.
func TitleFromPrompt(prompt string) string {
	title := strings.Join(strings.Fields(prompt), " ")
	runes := []rune(title)
	if len(runes) <= maxAutoTitleRunes {
		return title
	}
	return strings.TrimSpace(string(runes[:maxAutoTitleRunes]))
}
