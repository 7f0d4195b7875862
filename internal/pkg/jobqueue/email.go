package jobqueue

import (
	"context"
	"fmt"

	"github.com/ServiAPP/serviapp/internal/pkg/mail"
)

// NewSendEmailHandler delivers queued emails through sender.
func NewSendEmailHandler(sender mail.Sender) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := SendEmailJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return sender.Send(ctx, mail.Message{
			To:       payload.To,
			Subject:  payload.Subject,
			HTMLBody: payload.HTMLBody,
			Tag:      payload.Tag,
		})
	}
}

// QueuedSender is a mail.Sender that defers delivery to the queue.
type QueuedSender struct {
	queue *Queue
}

func NewQueuedSender(q *Queue) *QueuedSender {
	return &QueuedSender{queue: q}
}

func (s *QueuedSender) Send(ctx context.Context, msg mail.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	_, err := s.queue.EnqueueJob(ctx, JobTypeSendEmail, SendEmailJobPayload{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		Tag:      msg.Tag,
	}.ToMap())
	return err
}
