// Package server serves live views of a walker's snapshots: the main page with
// websocket updates, the snapshot as json, and a heatmap of the greedy values.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"qgrid/reinforcement"
	"qgrid/server/cell_views"
	"qgrid/server/fastview"
	"qgrid/server/root_view"

	"github.com/gorilla/mux"
	channerics "github.com/niceyeti/channerics/channels"
)

const shutdownGracePeriod = 5 * time.Second

// Server serves any number of clients. Every client gets the ele-updates of the
// root view from the point it connects; updates are dropped for clients that
// fall behind, which is fine since every batch fully specifies the cells it names.
type Server struct {
	addr     string
	ctx      context.Context
	rootView *root_view.RootView
	router   *mux.Router

	mu          sync.RWMutex
	last        reinforcement.Snapshot
	subscribers map[chan []fastview.EleUpdate]struct{}
}

// NewServer builds the views over @snapshots and starts distributing their updates.
// @initial is served until the first snapshot arrives. Everything stops when @ctx is done.
func NewServer(
	ctx context.Context,
	addr string,
	initial reinforcement.Snapshot,
	snapshots <-chan reinforcement.Snapshot,
) (*Server, error) {
	server := &Server{
		addr:        addr,
		ctx:         ctx,
		last:        initial,
		subscribers: map[chan []fastview.EleUpdate]struct{}{},
	}

	recorded := channerics.Convert(ctx.Done(), snapshots, server.record)
	rootView, err := root_view.NewRootView(ctx, recorded)
	if err != nil {
		return nil, fmt.Errorf("root view: %w", err)
	}
	server.rootView = rootView

	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/api/grid", server.serveGrid).Methods(http.MethodGet)
	router.HandleFunc("/heatmap", server.serveHeatmap).Methods(http.MethodGet)
	server.router = router

	go server.distribute()
	return server, nil
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until its context is done.
func (server *Server) Serve() (err error) {
	httpServer := &http.Server{
		Addr:              server.addr,
		Handler:           server.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-server.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}()

	slog.Info("serving", "addr", server.addr)
	if err = httpServer.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if err != nil {
		err = fmt.Errorf("serve: %w", err)
	}
	return
}

func (server *Server) record(snapshot reinforcement.Snapshot) reinforcement.Snapshot {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.last = snapshot
	return snapshot
}

// Last returns the most recent snapshot.
func (server *Server) Last() reinforcement.Snapshot {
	server.mu.RLock()
	defer server.mu.RUnlock()
	return server.last
}

// distribute copies every root view batch to every subscribed client.
func (server *Server) distribute() {
	for updates := range channerics.OrDone(server.ctx.Done(), server.rootView.Updates()) {
		server.mu.RLock()
		for sub := range server.subscribers {
			select {
			case sub <- updates:
			default:
			}
		}
		server.mu.RUnlock()
	}
}

func (server *Server) subscribe() (<-chan []fastview.EleUpdate, func()) {
	sub := make(chan []fastview.EleUpdate, 1)
	server.mu.Lock()
	server.subscribers[sub] = struct{}{}
	server.mu.Unlock()

	return sub, func() {
		server.mu.Lock()
		delete(server.subscribers, sub)
		server.mu.Unlock()
	}
}

func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	updates, unsubscribe := server.subscribe()
	defer unsubscribe()

	cli, err := fastview.NewClient(updates, w, r)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	slog.Debug("websocket client connected", "remote", r.RemoteAddr)
	if err = cli.Sync(server.ctx); err != nil {
		slog.Warn("websocket client failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	slog.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}

func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	cells := cell_views.Convert(server.Last())
	if err := renderTemplate(w, server.rootView, cells); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (server *Server) serveGrid(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(server.Last()); err != nil {
		slog.Warn("failed to encode grid", "err", err)
	}
}

func (server *Server) serveHeatmap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := cell_views.RenderHeatmap(w, cell_views.Convert(server.Last())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}
	return t.Execute(w, data)
}
