// Package handler exposes the relay over API Gateway events and plain HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mentor-relay/internal/domain"
	"mentor-relay/internal/integrations/twilio"
	"mentor-relay/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxFormBytes      = 1 << 20
)

type RelayUseCase interface {
	HandleMessage(ctx context.Context, in domain.Inbound) (usecase.Reply, error)
}

type SignatureValidator interface {
	Valid(form url.Values, signature string) bool
}

type Option func(*Handler)

// WithSignatureValidator rejects requests whose webhook signature does not
// verify.
func WithSignatureValidator(v SignatureValidator) Option {
	return func(h *Handler) {
		h.validator = v
	}
}

type Handler struct {
	uc        RelayUseCase
	validator SignatureValidator
}

type msgResponse struct {
	Msg string `json:"msg"`
}

func NewHandler(uc RelayUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	header := func(name string) string { return headerValue(req.Headers, name) }
	correlationID := correlationIDFrom(header)

	body := req.Body
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return lambdaResponse(http.StatusBadRequest, "invalid form body", correlationID), nil
		}
		body = string(decoded)
	}
	form, err := url.ParseQuery(body)
	if err != nil {
		return lambdaResponse(http.StatusBadRequest, "invalid form body", correlationID), nil
	}

	status, msg := h.process(ctx, form, header(twilio.SignatureHeader), correlationID)
	return lambdaResponse(status, msg, correlationID), nil
}

// ServeHTTP serves the same webhook over net/http.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	correlationID := correlationIDFrom(r.Header.Get)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid form body", correlationID)
		return
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid form body", correlationID)
		return
	}

	status, msg := h.process(r.Context(), form, r.Header.Get(twilio.SignatureHeader), correlationID)
	writeJSON(w, status, msg, correlationID)
}

func (h *Handler) process(ctx context.Context, form url.Values, signature, correlationID string) (int, string) {
	logger := slog.With("correlation_id", correlationID)
	if h.validator != nil && !h.validator.Valid(form, signature) {
		logger.WarnContext(ctx, "webhook signature rejected")
		return http.StatusForbidden, "invalid signature"
	}

	in := domain.Inbound{
		From:        strings.TrimSpace(form.Get("From")),
		Body:        form.Get("Body"),
		ProfileName: strings.TrimSpace(form.Get("ProfileName")),
	}
	reply, err := h.uc.HandleMessage(ctx, in)
	if err != nil {
		var ucErr *usecase.Error
		if errors.As(err, &ucErr) {
			logger.ErrorContext(ctx, "relay failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
		} else {
			logger.ErrorContext(ctx, "relay failed", "err", err)
		}
		return http.StatusInternalServerError, "internal error"
	}
	logger.InfoContext(ctx, "webhook handled", "phone", in.From, "phase", reply.Phase, "msg", reply.Msg)
	return http.StatusOK, reply.Msg
}

func correlationIDFrom(header func(string) string) string {
	if id := strings.TrimSpace(header(correlationHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func encodeMsg(msg string) string {
	b, err := json.Marshal(msgResponse{Msg: msg})
	if err != nil {
		return `{"msg":"internal error"}`
	}
	return string(b)
}

func lambdaResponse(status int, msg, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: encodeMsg(msg),
	}
}

func writeJSON(w http.ResponseWriter, status int, msg, correlationID string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, correlationID)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, encodeMsg(msg))
}
