package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mentor-relay/internal/domain"
)

// Replies returned in Reply.Msg.
const (
	MsgSuccess          = "success"
	MsgExhausted        = "exceeded maximum number of interactions"
	MsgMissingPhone     = "Phone not parsed successfully"
	MsgMissingBody      = "Body not parsed successfully"
	MsgMissingBoth      = "Phone and body not parsed successfully"
	failureTimestampFmt = "01-02-06 15:04:05 UTC"
)

type HistoryStore interface {
	Query(ctx context.Context, sender string) ([]domain.Exchange, error)
	Append(ctx context.Context, ex domain.Exchange) error
}

type Deliverer interface {
	Deliver(ctx context.Context, text, to string) error
}

type ResponseGenerator interface {
	Generate(ctx context.Context, messages []domain.ChatMessage) string
}

type deliveryFailure interface {
	MessageSID() string
	FailedAt() time.Time
}

// Reply summarises the outcome of one inbound message.
type Reply struct {
	Msg   string
	Phase Phase
}

// RelayService runs one inbound message through history lookup, reply
// generation, chunked delivery and persistence.
type RelayService struct {
	store           HistoryStore
	deliverer       Deliverer
	generator       ResponseGenerator
	personas        *PersonaSelector
	maxInteractions int
	now             func() time.Time
}

func NewRelayService(store HistoryStore, d Deliverer, g ResponseGenerator, personas *PersonaSelector, maxInteractions int) (*RelayService, error) {
	if store == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: deliverer must not be nil")
	}
	if g == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if personas == nil {
		personas = NewPersonaSelector()
	}
	return &RelayService{
		store:           store,
		deliverer:       d,
		generator:       g,
		personas:        personas,
		maxInteractions: maxInteractions,
		now:             time.Now,
	}, nil
}

// HandleMessage returns a non-nil error only for history store failures.
// Every other outcome, including delivery failure, is reported in Reply.Msg.
func (s *RelayService) HandleMessage(ctx context.Context, in domain.Inbound) (Reply, error) {
	if msg, ok := validateInbound(in); !ok {
		slog.WarnContext(ctx, "inbound message rejected", "reason", msg)
		return Reply{Msg: msg}, nil
	}

	history, err := s.store.Query(ctx, in.From)
	if err != nil {
		return Reply{}, newError(ErrorInternal, "dynamodb_query_error", err)
	}
	count := len(history)
	phase := PhaseFor(count, s.maxInteractions)
	persona := s.personas.Select(history)
	slog.InfoContext(ctx, "relaying message", "phone", in.From, "phase", phase, "persona", persona, "count", count)

	var text string
	switch phase {
	case PhaseExhausted:
		return Reply{Msg: MsgExhausted, Phase: phase}, nil
	case PhaseNew:
		text = OnboardingGreeting
	default:
		text = s.generator.Generate(ctx, BuildMessages(persona, phase, in.Body, history)) +
			replySuffix(count, s.maxInteractions)
	}

	if err := s.deliverer.Deliver(ctx, text, in.From); err != nil {
		return Reply{Msg: s.describeFailure(err, in.From), Phase: phase}, nil
	}

	ex := domain.Exchange{
		SenderKey:    in.From,
		ReceivedText: in.Body,
		SentText:     text,
		Persona:      persona.String(),
		DisplayName:  in.ProfileName,
	}
	if err := s.store.Append(ctx, ex); err != nil {
		return Reply{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return Reply{Msg: MsgSuccess, Phase: phase}, nil
}

func validateInbound(in domain.Inbound) (string, bool) {
	noPhone := strings.TrimSpace(in.From) == ""
	noBody := strings.TrimSpace(in.Body) == ""
	switch {
	case noPhone && noBody:
		return MsgMissingBoth, false
	case noPhone:
		return MsgMissingPhone, false
	case noBody:
		return MsgMissingBody, false
	}
	return "", true
}

func (s *RelayService) describeFailure(err error, phone string) string {
	var sid string
	at := s.now()
	var f deliveryFailure
	if errors.As(err, &f) {
		sid = f.MessageSID()
		at = f.FailedAt()
	}
	return fmt.Sprintf("delivery of response message sid=%s failed for %s incoming message from %s",
		sid, at.UTC().Format(failureTimestampFmt), phone)
}
