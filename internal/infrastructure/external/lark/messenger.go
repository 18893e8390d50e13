package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/port"
)

const (
	defaultReceiveIDType = "email"
	postMsgType          = "post"
)

// Notifier implements port.Notifier by posting rich text messages through Lark
type Notifier struct {
	sender        MessageSender
	receiveIDType string
	logger        *zap.Logger
}

// NewNotifier creates a Lark backed notifier
func NewNotifier(sender MessageSender, receiveIDType string, logger *zap.Logger) *Notifier {
	if receiveIDType == "" {
		receiveIDType = defaultReceiveIDType
	}
	return &Notifier{
		sender:        sender,
		receiveIDType: receiveIDType,
		logger:        logger,
	}
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// buildPostContent renders a post message body, one paragraph per line
func buildPostContent(title, body string) (string, error) {
	var paragraphs [][]postElement
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, []postElement{{Tag: "text", Text: line}})
		}
	}

	data, err := json.Marshal(map[string]postBody{
		"en_us": {Title: title, Content: paragraphs},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal post content: %w", err)
	}
	return string(data), nil
}

// Notify implements port.Notifier
func (n *Notifier) Notify(ctx context.Context, msg *port.Notification) error {
	if msg == nil || msg.RecipientEmail == "" {
		return fmt.Errorf("notification has no recipient")
	}

	content, err := buildPostContent(msg.Subject, msg.Body)
	if err != nil {
		return err
	}

	messageID, err := n.sender.Send(ctx, n.receiveIDType, msg.RecipientEmail, postMsgType, content)
	if err != nil {
		n.logger.Error("Failed to deliver notification",
			zap.String("voucher_number", msg.VoucherNumber),
			zap.String("event_type", msg.EventType.String()),
			zap.Error(err))
		return fmt.Errorf("failed to deliver notification: %w", err)
	}

	n.logger.Info("Notification delivered",
		zap.String("voucher_number", msg.VoucherNumber),
		zap.String("event_type", msg.EventType.String()),
		zap.String("message_id", messageID))
	return nil
}

// LogNotifier records notifications in the log when no messaging backend is configured
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements port.Notifier
func (n *LogNotifier) Notify(ctx context.Context, msg *port.Notification) error {
	n.logger.Info("Notification (not delivered, messaging disabled)",
		zap.String("voucher_number", msg.VoucherNumber),
		zap.String("event_type", msg.EventType.String()),
		zap.String("recipient", msg.RecipientEmail),
		zap.String("subject", msg.Subject))
	return nil
}

// Verify interface compliance
var (
	_ port.Notifier = (*Notifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
	_ MessageSender = (*SDKClient)(nil)
)
