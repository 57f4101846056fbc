package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/premium-quote/internal/premium"
	"github.com/eugenenazirov/premium-quote/internal/quote"
	"github.com/eugenenazirov/premium-quote/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const maxBodyBytes = 1 << 20

// QuoteSubmitter prices and stores a submitted applicant form.
type QuoteSubmitter interface {
	Submit(ctx context.Context, sub quote.Submission) (quote.Result, error)
}

// Handler wires the quote service into HTTP handlers.
type Handler struct {
	quotes QuoteSubmitter
	logger *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHandlerLogger sets the logger used for request failures.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(quotes QuoteSubmitter, opts ...HandlerOption) *Handler {
	h := &Handler{
		quotes: quotes,
		logger: zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePremium(w http.ResponseWriter, r *http.Request) {
	var req premiumRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	sub, err := req.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data", err.Error())
		return
	}

	result, err := h.quotes.Submit(r.Context(), sub)
	if err != nil {
		h.writeQuoteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, premiumResponse{Premium: result.Formatted})
}

func (h *Handler) writeQuoteError(w http.ResponseWriter, r *http.Request, err error) {
	var compErr *quote.ComputationError
	switch {
	case errors.Is(err, quote.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid data", err.Error())
	case errors.Is(err, quote.ErrInvalidTenureToken):
		writeError(w, http.StatusBadRequest, "Invalid license tenure", err.Error(),
			"use one of moins_5, 5_20 or plus_20")
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "Applicant already exists", "a quote was already issued for this email")
	case errors.As(err, &compErr):
		h.logger.Error("quote computation failed",
			zap.String("op", compErr.Op),
			zap.Error(compErr.Err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "unable to compute the premium")
	default:
		h.logger.Error("unexpected quote error",
			zap.Error(err),
			zap.String("request_id", requestIDFromContext(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "unexpected server error")
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// premiumRequest mirrors the simulator form. Browsers post every field as a
// string, so numeric fields accept both JSON numbers and numeric strings.
type premiumRequest struct {
	Name          string     `json:"nom"`
	Surname       string     `json:"prenom"`
	Email         string     `json:"email"`
	Age           flexInt    `json:"age"`
	LicenseTenure string     `json:"anciennete_permis"`
	Power         flexInt    `json:"puissance"`
	UsageType     usageField `json:"usage_type"`
}

func (req premiumRequest) submission() (quote.Submission, error) {
	if !req.Age.valid {
		return quote.Submission{}, errors.New("age must be an integer")
	}
	if !req.Power.valid {
		return quote.Submission{}, errors.New("puissance must be an integer")
	}

	usage := premium.UsagePersonal
	if req.UsageType.present {
		usage = premium.Usage(req.UsageType.value)
	}

	return quote.Submission{
		Name:          strings.TrimSpace(req.Name),
		Surname:       strings.TrimSpace(req.Surname),
		Email:         strings.TrimSpace(req.Email),
		Age:           req.Age.value,
		LicenseTenure: req.LicenseTenure,
		Power:         req.Power.value,
		Usage:         usage,
	}, nil
}

// flexInt decodes an integer given either as a JSON number or a numeric
// string. Fractional JSON numbers are truncated toward zero; numeric strings
// must be integers. Anything else leaves it invalid rather than failing the
// decode.
type flexInt struct {
	value int
	valid bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt{}
	raw := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(raw); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(unquoted)); err == nil {
			*f = flexInt{value: n, valid: true}
		}
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*f = flexInt{value: n, valid: true}
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v >= math.MaxInt64 || v < math.MinInt64 {
		return nil
	}
	*f = flexInt{value: int(math.Trunc(v)), valid: true}
	return nil
}

// usageField records whether usage_type was sent at all. An explicit null or
// a non-string value is kept as an empty usage, which prices at the default
// factor.
type usageField struct {
	present bool
	value   string
}

func (u *usageField) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		value = ""
	}
	*u = usageField{present: true, value: value}
	return nil
}

type premiumResponse struct {
	Premium string `json:"prime"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
