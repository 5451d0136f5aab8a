package main

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/marcosilveira/rachaconta/account"
	"github.com/marcosilveira/rachaconta/config"
	"github.com/marcosilveira/rachaconta/cost"
	"github.com/marcosilveira/rachaconta/currency"
	"github.com/marcosilveira/rachaconta/eventlogger"
	"github.com/marcosilveira/rachaconta/middleware"
	"github.com/marcosilveira/rachaconta/payment"
	"github.com/marcosilveira/rachaconta/session"
	"github.com/marcosilveira/rachaconta/snapshot"
	"github.com/marcosilveira/rachaconta/user"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dateLayout = "2006-01-02"

func main() {
	cfg, err := config.Load(os.Getenv("RACHACONTA_CONFIG"))
	if err != nil {
		printErrorAndExit("loading configuration", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		printErrorAndExit("database connection", err)
	}
	if err := db.Ping(); err != nil {
		printErrorAndExit("pinging database", err)
	}
	if err := runMigrations(db); err != nil {
		printErrorAndExit("migrating database", err)
	}

	evtlogger := eventlogger.NewSqlEventLogger(db)
	worker := eventlogger.NewWorker(evtlogger, 100)
	worker.Start()
	defer worker.Shutdown()

	userRepo := user.NewRepository(db)
	sessionRepo := session.NewRepository(db)
	accountRepo := account.NewRepository(db)
	costRepo := cost.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	engine := snapshot.NewEngine(accountRepo, costRepo, paymentRepo)

	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(middleware.Auth(sessionRepo))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	router.Post("/user/register", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		registered, err := userRepo.Register(ctx, req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, user.ErrEmailExists):
				writeError(w, http.StatusConflict, err.Error())
			case errors.Is(err, user.ErrBlankPassword), errors.Is(err, user.ErrInvalidEmail):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				slog.Error("failed to register user", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		sess, err := sessionRepo.Create(ctx, registered.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType("user.registered"),
			eventlogger.WithData(map[string]string{
				"user_id": registered.ID.String(),
				"email":   registered.Email,
			}),
		))

		writeJSON(w, http.StatusCreated, tokenResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
	})

	router.Post("/user/login", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userdb, err := userRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			slog.Error("failed to fetch user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if userdb == nil || userRepo.VerifyPassword(userdb.PasswordHash, req.Password) != nil {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}

		sess, err := sessionRepo.Create(ctx, userdb.ID)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		worker.Log(eventlogger.NewEvent(
			eventlogger.WithType("user.logged_in"),
			eventlogger.WithData(map[string]string{
				"user_id":    userdb.ID.String(),
				"session_id": sess.ID.String(),
			}),
		))

		writeJSON(w, http.StatusOK, tokenResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
	})

	// Protected routes - require authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/user/me", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserID(r.Context())

			u, err := userRepo.GetByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to fetch user", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if u == nil {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeJSON(w, http.StatusOK, u)
		})

		r.Post("/user/logout", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserID(r.Context())
			if err := sessionRepo.DeleteByUserID(r.Context(), userID); err != nil {
				slog.Error("failed to delete sessions", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/account", func(w http.ResponseWriter, r *http.Request) {
			accounts, err := accountRepo.GetAll(r.Context())
			if err != nil {
				slog.Error("failed to fetch accounts", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			writeJSON(w, http.StatusOK, accounts)
		})

		r.Post("/account", func(w http.ResponseWriter, r *http.Request) {
			var req createAccountRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			acc, err := account.New(req.Name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := accountRepo.Create(r.Context(), acc); err != nil {
				slog.Error("failed to create account", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("account.created"),
				eventlogger.WithData(map[string]string{
					"account_id": acc.ID.String(),
					"name":       acc.Name,
				}),
			))

			writeJSON(w, http.StatusCreated, acc)
		})

		r.Get("/account/{accountID}", func(w http.ResponseWriter, r *http.Request) {
			accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid account id")
				return
			}

			acc, err := accountRepo.Get(r.Context(), accountID)
			if err != nil {
				if errors.Is(err, account.ErrNotFound) {
					writeError(w, http.StatusNotFound, "not found")
					return
				}
				slog.Error("failed to fetch account", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			writeJSON(w, http.StatusOK, acc)
		})

		r.Delete("/account/{accountID}", func(w http.ResponseWriter, r *http.Request) {
			accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid account id")
				return
			}

			err = accountRepo.Delete(r.Context(), accountID)
			if err != nil {
				switch {
				case errors.Is(err, account.ErrNotFound):
					writeError(w, http.StatusNotFound, "not found")
				case errors.Is(err, account.ErrInUse):
					writeError(w, http.StatusConflict, err.Error())
				default:
					slog.Error("failed to delete account", "error", err)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/account/{accountID}/tags", func(w http.ResponseWriter, r *http.Request) {
			accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid account id")
				return
			}

			tags, err := costRepo.TagsForAccount(r.Context(), accountID)
			if err != nil {
				slog.Error("failed to fetch tags", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			writeJSON(w, http.StatusOK, tags)
		})

		r.Post("/account/{accountID}/cost", func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			accountID, err := uuid.Parse(chi.URLParam(r, "accountID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid account id")
				return
			}
			if _, err := accountRepo.Get(ctx, accountID); err != nil {
				if errors.Is(err, account.ErrNotFound) {
					writeError(w, http.StatusNotFound, "not found")
					return
				}
				slog.Error("failed to fetch account", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			var req createCostRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			eventDate, err := time.Parse(dateLayout, req.EventDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "event_date must be formatted as 2006-01-02")
				return
			}

			debtors := make([]cost.Debtor, 0, len(req.Debtors))
			for _, d := range req.Debtors {
				if _, err := accountRepo.Get(ctx, d.AccountID); err != nil {
					if errors.Is(err, account.ErrNotFound) {
						writeError(w, http.StatusBadRequest, fmt.Sprintf("debtor account %s does not exist", d.AccountID))
						return
					}
					slog.Error("failed to fetch account", "error", err)
					writeError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				switch {
				case d.Percentage != nil:
					debtors = append(debtors, cost.Debtor{
						AccountID: d.AccountID,
						Split:     cost.Split{Type: cost.SplitPercentage, Percentage: *d.Percentage},
					})
				case d.Amount != nil:
					debtors = append(debtors, cost.Debtor{
						AccountID: d.AccountID,
						Split:     cost.Split{Type: cost.SplitAmount, Amount: *d.Amount},
					})
				default:
					writeError(w, http.StatusBadRequest, "every debtor needs either a percentage or an amount")
					return
				}
			}

			c, debts, err := cost.New(accountID, req.Amount, req.Description, eventDate, req.Tags, debtors)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := costRepo.Create(ctx, *c, debts); err != nil {
				slog.Error("failed to create cost", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("cost.created"),
				eventlogger.WithData(map[string]string{
					"cost_id":    c.ID.String(),
					"account_id": c.AccountID.String(),
				}),
			))

			writeJSON(w, http.StatusCreated, toCostResponse(*c, debts))
		})

		r.Delete("/account/{accountID}/cost/{costID}", func(w http.ResponseWriter, r *http.Request) {
			costID, err := uuid.Parse(chi.URLParam(r, "costID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid cost id")
				return
			}

			if err := costRepo.Delete(r.Context(), costID); err != nil {
				if errors.Is(err, cost.ErrNotFound) {
					writeError(w, http.StatusNotFound, "not found")
					return
				}
				slog.Error("failed to delete cost", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("cost.deleted"),
				eventlogger.WithData(map[string]string{"cost_id": costID.String()}),
			))

			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/cost", func(w http.ResponseWriter, r *http.Request) {
			start, end, err := parseDateRange(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}

			costs, err := costRepo.GetAll(r.Context(), start, end)
			if err != nil {
				slog.Error("failed to fetch costs", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			responses := make([]costResponse, 0, len(costs))
			for _, c := range costs {
				responses = append(responses, toCostResponse(c.Cost, c.Debtors))
			}
			writeJSON(w, http.StatusOK, responses)
		})

		r.Post("/account/{accountID}/payment", func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			payerID, err := uuid.Parse(chi.URLParam(r, "accountID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid account id")
				return
			}

			var req createPaymentRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			eventDate, err := time.Parse(dateLayout, req.EventDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "event_date must be formatted as 2006-01-02")
				return
			}

			for _, id := range []uuid.UUID{payerID, req.LenderAccountID} {
				if _, err := accountRepo.Get(ctx, id); err != nil {
					if errors.Is(err, account.ErrNotFound) {
						writeError(w, http.StatusNotFound, "not found")
						return
					}
					slog.Error("failed to fetch account", "error", err)
					writeError(w, http.StatusInternalServerError, "internal server error")
					return
				}
			}

			p, err := payment.New(payerID, req.LenderAccountID, currency.ToCents(req.Amount), eventDate, req.Description)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := paymentRepo.Create(ctx, p); err != nil {
				slog.Error("failed to create payment", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("payment.created"),
				eventlogger.WithData(map[string]string{
					"payment_id":        p.ID.String(),
					"payer_account_id":  p.PayerAccountID.String(),
					"lender_account_id": p.LenderAccountID.String(),
				}),
			))

			writeJSON(w, http.StatusCreated, toPaymentResponse(p))
		})

		r.Delete("/account/{accountID}/payment/{paymentID}", func(w http.ResponseWriter, r *http.Request) {
			paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid payment id")
				return
			}

			if err := paymentRepo.Delete(r.Context(), paymentID); err != nil {
				if errors.Is(err, payment.ErrNotFound) {
					writeError(w, http.StatusNotFound, "not found")
					return
				}
				slog.Error("failed to delete payment", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("payment.deleted"),
				eventlogger.WithData(map[string]string{"payment_id": paymentID.String()}),
			))

			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/payment", func(w http.ResponseWriter, r *http.Request) {
			payments, err := paymentRepo.GetAll(r.Context())
			if err != nil {
				slog.Error("failed to fetch payments", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			responses := make([]paymentResponse, 0, len(payments))
			for _, p := range payments {
				responses = append(responses, toPaymentResponse(p))
			}
			writeJSON(w, http.StatusOK, responses)
		})

		r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
			debts, err := engine.ComputeSnapshot(r.Context())
			if err != nil {
				slog.Error("failed to compute snapshot", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			worker.Log(eventlogger.NewEvent(
				eventlogger.WithType("snapshot.computed"),
				eventlogger.WithData(map[string]string{
					"entries": strconv.Itoa(len(debts)),
				}),
			))

			writeJSON(w, http.StatusOK, debts)
		})
	})

	slog.Info("server starting", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		printErrorAndExit("server stopped", err)
	}
}

func runMigrations(db *sql.DB) error {
	driver, err := migratepostgres.WithInstance(db, &migratepostgres.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type createAccountRequest struct {
	Name string `json:"name"`
}

type createDebtorRequest struct {
	AccountID  uuid.UUID `json:"account_id"`
	Percentage *int      `json:"percentage,omitempty"`
	Amount     *float64  `json:"amount,omitempty"`
}

type createCostRequest struct {
	Debtors     []createDebtorRequest `json:"debtors"`
	Amount      float64               `json:"amount"`
	EventDate   string                `json:"event_date"`
	Description string                `json:"description,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
}

type createPaymentRequest struct {
	LenderAccountID uuid.UUID `json:"lender_account_id"`
	Amount          float64   `json:"amount"`
	EventDate       string    `json:"event_date"`
	Description     string    `json:"description,omitempty"`
}

type debtResponse struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    float64   `json:"amount"`
}

type costResponse struct {
	ID          uuid.UUID      `json:"id"`
	AccountID   uuid.UUID      `json:"account_id"`
	Amount      float64        `json:"amount"`
	Debtors     []debtResponse `json:"debtors"`
	EventDate   string         `json:"event_date"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	PayerAccountID  uuid.UUID `json:"payer_account_id"`
	LenderAccountID uuid.UUID `json:"lender_account_id"`
	Amount          float64   `json:"amount"`
	EventDate       string    `json:"event_date"`
	Description     string    `json:"description,omitempty"`
}

// toCostResponse converts cents back to decimals; amounts only cross the
// API boundary as decimal currency values.
func toCostResponse(c cost.Cost, debts []cost.Debt) costResponse {
	debtors := make([]debtResponse, 0, len(debts))
	for _, d := range debts {
		debtors = append(debtors, debtResponse{
			ID:        d.ID,
			AccountID: d.DebtorAccountID,
			Amount:    currency.ToDecimal(d.Amount),
		})
	}

	return costResponse{
		ID:          c.ID,
		AccountID:   c.AccountID,
		Amount:      currency.ToDecimal(c.Amount),
		Debtors:     debtors,
		EventDate:   c.EventDate.Format(dateLayout),
		Description: c.Description,
		Tags:        c.Tags,
	}
}

func toPaymentResponse(p payment.Payment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		PayerAccountID:  p.PayerAccountID,
		LenderAccountID: p.LenderAccountID,
		Amount:          currency.ToDecimal(p.Amount),
		EventDate:       p.EventDate.Format(dateLayout),
		Description:     p.Description,
	}
}

// parseDateRange reads the optional start_date/end_date query parameters,
// defaulting to a range that covers everything.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	start := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

	if v := r.URL.Query().Get("start_date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return start, end, errors.New("start_date must be formatted as 2006-01-02")
		}
		start = parsed
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return start, end, errors.New("end_date must be formatted as 2006-01-02")
		}
		end = parsed
	}

	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func printErrorAndExit(msg string, e error) {
	slog.Error(msg, "error", e)
	os.Exit(1)
}
