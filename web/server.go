// Package web provides the local JSON control surface over the repositories
// and the sync engine. It is a machine API for a frontend or scripts; there
// is no HTML here.
//
// Modules called by this server should provide self-describing errors since
// these are sent directly to the error responder. Each endpoint handler is a
// HandlerFunc returned by a method, which allows the router to provide
// arguments to the handler.
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"

	"hisab/config"
	"hisab/db"
	"hisab/sync"
)

// WebApp is the configuration object for the web server.
type WebApp struct {
	log    *log.Logger
	cfg    *config.Config
	db     *db.DB
	engine *sync.Engine
	server *http.Server
}

// queryDecoder decodes URL query strings into filter structs.
var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// New initialises a WebApp.
func New(logger *log.Logger, cfg *config.Config, database *db.DB, engine *sync.Engine) (*WebApp, error) {
	if database == nil {
		return nil, errors.New("nil database provided to web.New")
	}
	if engine == nil {
		return nil, errors.New("nil sync engine provided to web.New")
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}

	server := &http.Server{
		Addr:              cfg.Web.ListenAddress,
		ReadHeaderTimeout: time.Duration(30 * time.Second),
		WriteTimeout:      time.Duration(30 * time.Second),
		MaxHeaderBytes:    1 << 19, // 100k ish
	}

	webApp := &WebApp{
		log:    logger,
		cfg:    cfg,
		db:     database,
		engine: engine,
		server: server,
	}
	return webApp, nil
}

// StartServer starts a WebApp, shutting down cleanly when ctx is done.
func (web *WebApp) StartServer(ctx context.Context) error {
	web.server.Handler = web.routes()
	web.log.Info("starting server", "address", web.cfg.Web.ListenAddress)

	errCh := make(chan error, 1)
	go func() {
		errCh <- web.server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return web.server.Shutdown(shutdownCtx)
	}
}

// routes connects all of the endpoints and provides middleware.
func (web *WebApp) routes() http.Handler {

	r := mux.NewRouter()

	r.Handle("/books", web.handleBooksList()).Methods("GET")
	r.Handle("/books", web.handleBooksCreate()).Methods("POST")
	r.Handle("/books/{id:[0-9]+}", web.handleBookUpdate()).Methods("PUT")
	r.Handle("/books/{id:[0-9]+}", web.handleBookDelete()).Methods("DELETE")
	r.Handle("/books/{id:[0-9]+}/stats", web.handleBookStats()).Methods("GET")

	r.Handle("/books/{id:[0-9]+}/categories", web.handleCategoriesList()).Methods("GET")
	r.Handle("/categories", web.handleCategoriesCreate()).Methods("POST")
	r.Handle("/categories/{id:[0-9]+}", web.handleCategoryUpdate()).Methods("PUT")
	r.Handle("/categories/{id:[0-9]+}", web.handleCategoryDelete()).Methods("DELETE")

	r.Handle("/contacts", web.handleContactsList()).Methods("GET")
	r.Handle("/contacts", web.handleContactsCreate()).Methods("POST")
	r.Handle("/contacts/{id:[0-9]+}", web.handleContactUpdate()).Methods("PUT")
	r.Handle("/contacts/{id:[0-9]+}", web.handleContactDelete()).Methods("DELETE")

	r.Handle("/books/{id:[0-9]+}/payment-modes", web.handlePaymentModesList()).Methods("GET")
	r.Handle("/payment-modes", web.handlePaymentModesCreate()).Methods("POST")
	r.Handle("/payment-modes/{id:[0-9]+}", web.handlePaymentModeUpdate()).Methods("PUT")
	r.Handle("/payment-modes/{id:[0-9]+}", web.handlePaymentModeDelete()).Methods("DELETE")

	r.Handle("/books/{id:[0-9]+}/products", web.handleProductsList()).Methods("GET")
	r.Handle("/products", web.handleProductsCreate()).Methods("POST")
	r.Handle("/products/{id:[0-9]+}", web.handleProductUpdate()).Methods("PUT")
	r.Handle("/products/{id:[0-9]+}", web.handleProductDelete()).Methods("DELETE")
	r.Handle("/products/{id:[0-9]+}/rates", web.handleProductRates()).Methods("GET")

	r.Handle("/transactions", web.handleTransactionsList()).Methods("GET")
	r.Handle("/transactions", web.handleTransactionsCreate()).Methods("POST")
	r.Handle("/transactions/{id:[0-9]+}", web.handleTransactionGet()).Methods("GET")
	r.Handle("/transactions/{id:[0-9]+}", web.handleTransactionUpdate()).Methods("PUT")
	r.Handle("/transactions/{id:[0-9]+}", web.handleTransactionDelete()).Methods("DELETE")
	r.Handle("/transactions/{id:[0-9]+}/copy", web.handleTransactionCopy(false)).Methods("POST")
	r.Handle("/transactions/{id:[0-9]+}/move", web.handleTransactionCopy(true)).Methods("POST")

	r.Handle("/settings/api", web.handleAPISettings()).Methods("PUT")
	r.Handle("/sync", web.handleSync()).Methods("POST")
	r.Handle("/export", web.handleExport()).Methods("GET")

	logging := handlers.LoggingHandler(os.Stdout, r)
	return logging
}

// ------------------------------------------------------------------------------
// Books
// ------------------------------------------------------------------------------

func (web *WebApp) handleBooksList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		books, err := web.db.Books(r.Context())
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, books)
	})
}

func (web *WebApp) handleBooksCreate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Name string `json:"name"`
		}
		if !web.readJSON(w, r, &payload) {
			return
		}
		id, err := web.db.CreateBook(r.Context(), payload.Name)
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

func (web *WebApp) handleBookUpdate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch db.BookPatch
		if !web.readJSON(w, r, &patch) {
			return
		}
		if err := web.db.UpdateBook(r.Context(), pathID(r), patch); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleBookDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := web.db.DeleteBook(r.Context(), pathID(r)); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleBookStats() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := web.db.GetBookStats(r.Context(), pathID(r))
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, stats)
	})
}

// ------------------------------------------------------------------------------
// Categories
// ------------------------------------------------------------------------------

func (web *WebApp) handleCategoriesList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		categories, err := web.db.CategoriesByBook(r.Context(), pathID(r))
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, categories)
	})
}

func (web *WebApp) handleCategoriesCreate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var nc db.NewCategory
		if !web.readJSON(w, r, &nc) {
			return
		}
		id, err := web.db.CreateCategory(r.Context(), nc)
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

func (web *WebApp) handleCategoryUpdate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch db.CategoryPatch
		if !web.readJSON(w, r, &patch) {
			return
		}
		if err := web.db.UpdateCategory(r.Context(), pathID(r), patch); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleCategoryDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.deleteGuarded(w, r, web.db.DeleteCategory)
	})
}

// ------------------------------------------------------------------------------
// Contacts
// ------------------------------------------------------------------------------

func (web *WebApp) handleContactsList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contacts, err := web.db.Contacts(r.Context())
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, contacts)
	})
}

func (web *WebApp) handleContactsCreate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if !web.readJSON(w, r, &payload) {
			return
		}
		id, err := web.db.CreateContact(r.Context(), payload.Name, payload.Phone)
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

func (web *WebApp) handleContactUpdate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch db.ContactPatch
		if !web.readJSON(w, r, &patch) {
			return
		}
		if err := web.db.UpdateContact(r.Context(), pathID(r), patch); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleContactDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.deleteGuarded(w, r, web.db.DeleteContact)
	})
}

// ------------------------------------------------------------------------------
// Payment modes
// ------------------------------------------------------------------------------

func (web *WebApp) handlePaymentModesList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		modes, err := web.db.PaymentModesByBook(r.Context(), pathID(r))
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, modes)
	})
}

func (web *WebApp) handlePaymentModesCreate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var npm db.NewPaymentMode
		if !web.readJSON(w, r, &npm) {
			return
		}
		id, err := web.db.CreatePaymentMode(r.Context(), npm)
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

func (web *WebApp) handlePaymentModeUpdate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch db.PaymentModePatch
		if !web.readJSON(w, r, &patch) {
			return
		}
		if err := web.db.UpdatePaymentMode(r.Context(), pathID(r), patch); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handlePaymentModeDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.deleteGuarded(w, r, web.db.DeletePaymentMode)
	})
}

// ------------------------------------------------------------------------------
// Products
// ------------------------------------------------------------------------------

func (web *WebApp) handleProductsList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		products, err := web.db.ProductsByBook(r.Context(), pathID(r))
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, products)
	})
}

func (web *WebApp) handleProductsCreate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var np db.NewProduct
		if !web.readJSON(w, r, &np) {
			return
		}
		id, err := web.db.CreateProduct(r.Context(), np)
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

func (web *WebApp) handleProductUpdate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch db.ProductPatch
		if !web.readJSON(w, r, &patch) {
			return
		}
		if err := web.db.UpdateProduct(r.Context(), pathID(r), patch); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleProductDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.deleteGuarded(w, r, web.db.DeleteProduct)
	})
}

func (web *WebApp) handleProductRates() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rates, err := web.db.ProductRates(r.Context(), pathID(r))
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, rates)
	})
}

// ------------------------------------------------------------------------------
// Transactions
// ------------------------------------------------------------------------------

func (web *WebApp) handleTransactionsList() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var filter db.TransactionFilter
		if err := queryDecoder.Decode(&filter, r.URL.Query()); err != nil {
			web.clientError(w, fmt.Errorf("bad query: %w", err))
			return
		}
		transactions, err := web.db.TransactionsFiltered(r.Context(), filter)
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, transactions)
	})
}

func (web *WebApp) handleTransactionsCreate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var nt db.NewTransaction
		if !web.readJSON(w, r, &nt) {
			return
		}
		id, err := web.db.CreateTransaction(r.Context(), nt)
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

func (web *WebApp) handleTransactionGet() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := web.db.GetTransaction(r.Context(), pathID(r))
		if errors.Is(err, sql.ErrNoRows) {
			web.writeJSON(w, http.StatusNotFound, errResponse{Error: "not found"})
			return
		}
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, t)
	})
}

func (web *WebApp) handleTransactionUpdate() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var patch db.TransactionPatch
		if !web.readJSON(w, r, &patch) {
			return
		}
		if err := web.db.UpdateTransaction(r.Context(), pathID(r), patch); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleTransactionDelete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := web.db.DeleteTransaction(r.Context(), pathID(r)); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleTransactionCopy(move bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			TargetBookID int64 `json:"target_book_id"`
		}
		if !web.readJSON(w, r, &payload) {
			return
		}
		var id int64
		var err error
		if move {
			id, err = web.db.MoveTransaction(r.Context(), pathID(r), payload.TargetBookID)
		} else {
			id, err = web.db.CopyTransaction(r.Context(), pathID(r), payload.TargetBookID)
		}
		if err != nil {
			web.clientError(w, err)
			return
		}
		web.writeJSON(w, http.StatusCreated, idResponse{ID: id})
	})
}

// ------------------------------------------------------------------------------
// Settings, sync and export
// ------------------------------------------------------------------------------

func (web *WebApp) handleAPISettings() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Endpoint string `json:"endpoint"`
			Token    string `json:"token"`
		}
		if !web.readJSON(w, r, &payload) {
			return
		}
		if err := web.db.SaveAPISettings(r.Context(), payload.Endpoint, payload.Token); err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, okResponse{})
	})
}

func (web *WebApp) handleSync() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := web.engine.Sync(r.Context())
		status := http.StatusOK
		if !result.Success {
			status = http.StatusBadGateway
		}
		web.writeJSON(w, status, result)
	})
}

func (web *WebApp) handleExport() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := sync.Export(r.Context(), web.db)
		if err != nil {
			web.serverError(w, r, err)
			return
		}
		web.writeJSON(w, http.StatusOK, snap)
	})
}

// ------------------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------------------

type idResponse struct {
	ID int64 `json:"id"`
}

type okResponse struct{}

type errResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Count int    `json:"count,omitempty"`
}

// pathID extracts the {id} path variable. The router's regexp guarantees it
// parses.
func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// deleteGuarded runs a repository delete, mapping a referential integrity
// block to 409 Conflict with the referencing kind and count.
func (web *WebApp) deleteGuarded(w http.ResponseWriter, r *http.Request, del func(context.Context, int64) error) {
	err := del(r.Context(), pathID(r))
	var rie *db.ReferentialIntegrityError
	if errors.As(err, &rie) {
		web.writeJSON(w, http.StatusConflict, errResponse{
			Error: rie.Error(),
			Kind:  rie.Kind,
			Count: rie.Count,
		})
		return
	}
	if err != nil {
		web.serverError(w, r, err)
		return
	}
	web.writeJSON(w, http.StatusOK, okResponse{})
}

// readJSON decodes the request body, responding with a 400 on failure.
func (web *WebApp) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		web.clientError(w, fmt.Errorf("bad request body: %w", err))
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func (web *WebApp) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		web.log.Warn("could not write response", "err", err)
	}
}

// clientError reports a 400-class failure caused by the request.
func (web *WebApp) clientError(w http.ResponseWriter, err error) {
	web.writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
}

// serverError reports an unexpected failure.
func (web *WebApp) serverError(w http.ResponseWriter, r *http.Request, err error) {
	web.log.Error("server error", "path", r.URL.Path, "err", err)
	web.writeJSON(w, http.StatusInternalServerError, errResponse{Error: err.Error()})
}
