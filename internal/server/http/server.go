package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/Zuzuna54/fintech-app-demo/internal/domain"
	"github.com/Zuzuna54/fintech-app-demo/internal/ledger"
	"github.com/Zuzuna54/fintech-app-demo/internal/queue"
	"github.com/Zuzuna54/fintech-app-demo/pkg/log"
)

// LedgerStore is the slice of the ledger the API needs.
type LedgerStore interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	FindPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	GetAccount(ctx context.Context, id uuid.UUID, kind domain.AccountKind) (*domain.Account, error)
}

// PaymentQueue is the slice of the queue the API needs.
type PaymentQueue interface {
	Enqueue(ctx context.Context, item *queue.Item) (uint64, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

// HealthChecker reports node health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Options wire the server's collaborators.
type Options struct {
	Ledger LedgerStore
	Queue  PaymentQueue
	Health HealthChecker
	Logger log.Logger
}

// Server is the payments API: accept payments, expose their state, and report
// queue depths. Settlement itself happens in the workers, never here.
type Server struct {
	ledger LedgerStore
	queue  PaymentQueue
	health HealthChecker
	logger log.Logger
	srv    *http.Server
	lis    net.Listener
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger()
	}
	s := &Server{
		ledger: opts.Ledger,
		queue:  opts.Queue,
		health: opts.Health,
		logger: logger.With(log.Component("http")),
	}
	r := mux.NewRouter()
	r.HandleFunc("/v1/payments", s.handleCreatePayment).Methods(http.MethodPost)
	r.HandleFunc("/v1/payments/{id}", s.handleGetPayment).Methods(http.MethodGet)
	r.HandleFunc("/v1/queue/stats", s.handleQueueStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.srv = &http.Server{Handler: r}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves until the context is cancelled, then shuts down
// gracefully with a bounded drain window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type createPaymentReq struct {
	FromAccount    string          `json:"from_account"`
	ToAccount      string          `json:"to_account"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentType    string          `json:"payment_type"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// handleCreatePayment records a pending payment and enqueues it for
// settlement. The row is committed before the enqueue so a crash in between
// loses the queue item, not the payment.
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	if req.IdempotencyKey != "" {
		existing, err := s.ledger.FindPaymentByIdempotencyKey(r.Context(), req.IdempotencyKey)
		if err == nil {
			s.replayPayment(w, r, existing)
			return
		}
		if !errors.Is(err, ledger.ErrPaymentNotFound) {
			s.logger.Error("idempotency lookup failed", log.Err(err))
			writeError(w, http.StatusInternalServerError, "idempotency lookup failed")
			return
		}
	}

	fromID, err := uuid.Parse(req.FromAccount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_account")
		return
	}
	toID, err := uuid.Parse(req.ToAccount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to_account")
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	paymentType := domain.PaymentType(req.PaymentType)
	route, err := paymentType.Route()
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown payment_type")
		return
	}

	from, err := s.ledger.GetAccount(r.Context(), fromID, route.Source)
	if err != nil {
		s.accountError(w, "from_account", err)
		return
	}
	to, err := s.ledger.GetAccount(r.Context(), toID, route.Destination)
	if err != nil {
		s.accountError(w, "to_account", err)
		return
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:                       uuid.New(),
		FromAccount:              fromID,
		ToAccount:                toID,
		Amount:                   req.Amount,
		Status:                   domain.PaymentPending,
		Type:                     paymentType,
		Description:              req.Description,
		SourceRoutingNumber:      from.RoutingNumber,
		DestinationRoutingNumber: to.RoutingNumber,
		IdempotencyKey:           req.IdempotencyKey,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.ledger.CreatePayment(r.Context(), p); err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotency) {
			// Lost a race with a concurrent request on the same key.
			if existing, lookupErr := s.ledger.FindPaymentByIdempotencyKey(r.Context(), req.IdempotencyKey); lookupErr == nil {
				s.replayPayment(w, r, existing)
				return
			}
		}
		s.logger.Error("create payment failed", log.Err(err))
		writeError(w, http.StatusInternalServerError, "create payment failed")
		return
	}

	if err := s.enqueueSettlement(r.Context(), p); err != nil {
		// The payment row is committed; only the work item is missing. A
		// replay under the same idempotency key re-enqueues it.
		s.logger.Error("enqueue failed for accepted payment",
			log.Str("payment_id", p.ID.String()), log.Err(err))
		writeError(w, http.StatusInternalServerError, "payment accepted but not queued")
		return
	}

	s.logger.Info("payment accepted",
		log.Str("payment_id", p.ID.String()),
		log.Str("payment_type", string(p.Type)))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) enqueueSettlement(ctx context.Context, p *domain.Payment) error {
	item := &queue.Item{
		PaymentID: p.ID.String(),
		Payload: queue.Payload{
			Amount:      p.Amount,
			FromAccount: p.FromAccount.String(),
			ToAccount:   p.ToAccount.String(),
			PaymentType: p.Type,
		},
	}
	_, err := s.queue.Enqueue(ctx, item)
	return err
}

// replayPayment answers a request whose idempotency key matched an existing
// payment. A payment still pending gets its work item enqueued again, so a
// submission whose first enqueue failed can be recovered by resubmitting;
// duplicates are harmless because settlement no-ops completed payments.
func (s *Server) replayPayment(w http.ResponseWriter, r *http.Request, p *domain.Payment) {
	if p.Status == domain.PaymentPending {
		if err := s.enqueueSettlement(r.Context(), p); err != nil {
			s.logger.Error("enqueue failed for replayed payment",
				log.Str("payment_id", p.ID.String()), log.Err(err))
			writeError(w, http.StatusInternalServerError, "payment accepted but not queued")
			return
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) accountError(w http.ResponseWriter, field string, err error) {
	if errors.Is(err, ledger.ErrAccountNotFound) {
		writeError(w, http.StatusUnprocessableEntity, field+" not found")
		return
	}
	s.logger.Error("account lookup failed", log.Str("field", field), log.Err(err))
	writeError(w, http.StatusInternalServerError, "account lookup failed")
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	p, err := s.ledger.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		s.logger.Error("get payment failed", log.Err(err))
		writeError(w, http.StatusInternalServerError, "get payment failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.Stats(r.Context())
	if err != nil {
		s.logger.Error("queue stats failed", log.Err(err))
		writeError(w, http.StatusInternalServerError, "queue stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.CheckHealth(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
