package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/engine"
	"github.com/simd-personal/Inno-Supps/id"
	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/provider"
	"github.com/simd-personal/Inno-Supps/toolkit"
)

// EmailData is an email as delivered by the mail provider.
type EmailData struct {
	Subject   string            `json:"subject,omitempty"`
	Body      string            `json:"body,omitempty"`
	FromEmail string            `json:"from_email,omitempty"`
	ToEmail   string            `json:"to_email,omitempty"`
	ThreadID  string            `json:"thread_id,omitempty"`
	MessageID string            `json:"message_id,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// IngestEmailArgs is the payload of ingest_email.
type IngestEmailArgs struct {
	EmailData EmailData `json:"email_data"`
}

// IngestEmailResult is stored on a finished ingest_email job.
type IngestEmailResult struct {
	Status     string         `json:"status"`
	ThreadID   string         `json:"thread_id"`
	MessageID  string         `json:"message_id"`
	Intent     toolkit.Intent `json:"intent"`
	ReplyJobID string         `json:"reply_job_id,omitempty"`
}

// ingestEmail classifies an inbound email, files it under its thread and
// chains sdr_reply for positive replies.
func (js *Jobs) ingestEmail(ctx context.Context, args IngestEmailArgs) (any, error) {
	ws := workspace(ctx)
	mail := args.EmailData

	intent, err := js.deps.Kit.ClassifyIntent(ctx, mail.Body)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	thread, err := js.upsertThread(ctx, ws, mail)
	if err != nil {
		return nil, err
	}

	if dup, found, err := js.findDelivered(ctx, thread.ID, mail.MessageID); err != nil {
		return nil, err
	} else if found {
		dup.Intent = intent
		return dup, nil
	}

	msg := &crm.Message{
		Entity:            js.entity(),
		ID:                id.NewMessageID(),
		ThreadID:          thread.ID,
		ProviderMessageID: mail.MessageID,
		Direction:         crm.Inbound,
		FromEmail:         mail.FromEmail,
		ToEmail:           mail.ToEmail,
		Subject:           mail.Subject,
		BodyText:          mail.Body,
		Headers:           mail.Headers,
	}
	if err := js.deps.CRM.InsertMessage(ctx, msg); err != nil {
		if !errors.Is(err, innosupps.ErrDuplicateMessage) {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		dup, _, err := js.findDelivered(ctx, thread.ID, mail.MessageID)
		if err != nil {
			return nil, err
		}
		dup.Intent = intent
		return dup, nil
	}

	res := IngestEmailResult{
		Status:    StatusSuccess,
		ThreadID:  thread.ID.String(),
		MessageID: msg.ID.String(),
		Intent:    intent,
	}
	if intent.ReplyType == toolkit.ReplyPositive {
		jobID, err := engine.Enqueue(ctx, js.eng, js.SDRReply, SDRReplyArgs{
			ThreadID:   thread.ID.String(),
			IntentData: intent,
		}, job.WithWorkspace(ws))
		if err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", FnSDRReply, err)
		}
		res.ReplyJobID = jobID.String()
	}
	return res, nil
}

// findDelivered reports whether the thread already holds the provider
// message. Redelivered mail is filed once and never chains a second reply.
func (js *Jobs) findDelivered(ctx context.Context, threadID id.ID, providerMessageID string) (IngestEmailResult, bool, error) {
	if providerMessageID == "" {
		return IngestEmailResult{}, false, nil
	}
	msg, err := js.deps.CRM.FindMessageByProviderID(ctx, threadID, providerMessageID)
	if errors.Is(err, innosupps.ErrMessageNotFound) {
		return IngestEmailResult{}, false, nil
	}
	if err != nil {
		return IngestEmailResult{}, false, fmt.Errorf("find message: %w", err)
	}
	return IngestEmailResult{
		Status:    StatusDuplicate,
		ThreadID:  threadID.String(),
		MessageID: msg.ID.String(),
	}, true, nil
}

// upsertThread returns the workspace's thread for the provider thread id,
// creating it on first sight. Mail without a provider thread id always
// starts a new thread.
func (js *Jobs) upsertThread(ctx context.Context, ws string, mail EmailData) (*crm.Thread, error) {
	if mail.ThreadID != "" {
		t, err := js.deps.CRM.FindThreadByProviderID(ctx, ws, mail.ThreadID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, innosupps.ErrThreadNotFound) {
			return nil, fmt.Errorf("find thread: %w", err)
		}
	}

	t := &crm.Thread{
		Entity:           js.entity(),
		ID:               id.NewThreadID(),
		WorkspaceID:      ws,
		ProviderThreadID: mail.ThreadID,
		Subject:          mail.Subject,
	}
	if err := js.deps.CRM.InsertThread(ctx, t); err != nil {
		return nil, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

// SDRReplyArgs is the payload of sdr_reply.
type SDRReplyArgs struct {
	ThreadID   string         `json:"thread_id"`
	IntentData toolkit.Intent `json:"intent_data"`
}

// SDRReplyResult is stored on a finished sdr_reply job.
type SDRReplyResult struct {
	Status               string        `json:"status"`
	SuggestedReply       toolkit.Draft `json:"suggested_reply"`
	AutoBookingScheduled bool          `json:"auto_booking_scheduled"`
	BookingJobID         string        `json:"booking_job_id,omitempty"`
}

// sdrReply drafts a suggested answer to the newest message of a thread and
// chains auto_book_meeting when the prospect asked for a meeting.
func (js *Jobs) sdrReply(ctx context.Context, args SDRReplyArgs) (any, error) {
	ws := workspace(ctx)

	threadID, err := id.ParseThreadID(args.ThreadID)
	if err != nil {
		return nil, innosupps.Invalid("thread_id %q: %v", args.ThreadID, err)
	}
	thread, err := js.deps.CRM.GetThread(ctx, ws, threadID)
	if err != nil {
		return nil, permanent(err)
	}
	latest, err := js.deps.CRM.LatestMessage(ctx, thread.ID)
	if err != nil {
		return nil, permanent(err)
	}

	draft, err := js.deps.Kit.DraftEmail(ctx, map[string]any{
		"prospect_email":   latest.FromEmail,
		"original_subject": latest.Subject,
		"original_body":    latest.BodyText,
		"intent":           args.IntentData,
		"workspace_id":     ws,
	}, "professional")
	if err != nil {
		return nil, fmt.Errorf("draft reply: %w", err)
	}

	res := SDRReplyResult{Status: StatusSuccess, SuggestedReply: draft}
	if args.IntentData.BookMeeting && latest.FromEmail != "" {
		jobID, err := engine.Enqueue(ctx, js.eng, js.AutoBookMeeting,
			AutoBookArgs{ProspectEmail: latest.FromEmail}, job.WithWorkspace(ws))
		if err != nil {
			return nil, fmt.Errorf("enqueue %s: %w", FnAutoBookMeeting, err)
		}
		res.AutoBookingScheduled = true
		res.BookingJobID = jobID.String()
	}
	return res, nil
}

// SendEmailArgs is the payload of send_email.
type SendEmailArgs struct {
	ProspectEmail string    `json:"prospect_email"`
	EmailData     EmailData `json:"email_data"`
}

// SendEmailResult is stored on a finished send_email job.
type SendEmailResult struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	ProspectEmail string `json:"prospect_email"`
	MessageID     string `json:"message_id,omitempty"`
	ThreadID      string `json:"thread_id,omitempty"`
}

// sendEmail delivers an outbound email unless the workspace or recipient
// limit blocks it. A blocked send is a successful job with status
// rate_limited.
func (js *Jobs) sendEmail(ctx context.Context, args SendEmailArgs) (any, error) {
	ws := workspace(ctx)
	if args.ProspectEmail == "" {
		return nil, innosupps.Invalid("%s: prospect_email is required", FnSendEmail)
	}

	if js.deps.Email != nil {
		ok, reason, err := js.deps.Email.CanSend(ctx, ws, args.ProspectEmail)
		if err != nil {
			return nil, fmt.Errorf("check email limits: %w", err)
		}
		if !ok {
			js.deps.Logger.Info("email send blocked",
				slog.String("workspace_id", ws),
				slog.String("reason", reason),
			)
			return SendEmailResult{
				Status:        StatusRateLimited,
				Reason:        reason,
				ProspectEmail: args.ProspectEmail,
			}, nil
		}
	}

	mailer := js.deps.Kit.Providers().Mailer
	if mailer == nil {
		return nil, innosupps.Upstream("mail", errors.New("no mail provider configured"))
	}
	receipt, err := mailer.Send(ctx, provider.Mail{
		To:       args.ProspectEmail,
		Subject:  args.EmailData.Subject,
		Body:     args.EmailData.Body,
		ThreadID: args.EmailData.ThreadID,
	})
	if err != nil {
		return nil, innosupps.Upstream("mail", err)
	}

	if js.deps.Email != nil {
		if err := js.deps.Email.RecordSent(ctx, ws, args.ProspectEmail); err != nil {
			// The mail is out; a lost counter only loosens the next check.
			js.deps.Logger.Warn("failed to record sent email",
				slog.String("workspace_id", ws),
				slog.String("error", err.Error()),
			)
		}
	}

	return SendEmailResult{
		Status:        StatusSuccess,
		ProspectEmail: args.ProspectEmail,
		MessageID:     receipt.MessageID,
		ThreadID:      receipt.ThreadID,
	}, nil
}

func (js *Jobs) entity() innosupps.Entity {
	now := js.deps.Now().UTC()
	return innosupps.Entity{CreatedAt: now, UpdatedAt: now}
}
