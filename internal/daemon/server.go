package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/theroutercompany/betterspotlight/internal/search"
)

// Engine is the subset of pkg/engine.Engine the daemon server needs: it
// is declared here (rather than importing pkg/engine directly) to avoid
// a dependency cycle, since pkg/engine imports this package for its
// EngineStatus adapter.
type Engine interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
	RebuildAll()
	EngineStatus() EngineStatus
}

// EngineStatus is the subset of pkg/engine.Status the wire protocol
// reports.
type EngineStatus struct {
	GenerationID      string
	ItemCount         int64
	VectorCount       int
	EmbeddingsPending int
	QueueDepth        int
}

// Server listens on a Unix socket and serves search/status/rebuild
// requests against a wired Engine.
type Server struct {
	socketPath string
	listener   net.Listener
	engine     Engine
	started    time.Time
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer returns a Server bound to socketPath, not yet listening.
func NewServer(socketPath string, engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{socketPath: socketPath, engine: engine, logger: logger}
}

// ListenAndServe starts the listener and blocks, handling connections,
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept error", slog.String("error", err.Error()))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		s.logger.Warn("set deadline failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}
	_ = encoder.Encode(s.handleRequest(ctx, req))
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.status())
	case MethodRebuild:
		s.engine.RebuildAll()
		return NewSuccessResponse(req.ID, RebuildResult{Scheduled: true})
	case MethodSearch:
		return s.handleSearch(ctx, req)
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	paramsData, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params")
	}
	var params SearchParams
	if err := json.Unmarshal(paramsData, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	opts := search.Options{
		Limit:        params.Limit,
		Mode:         search.Mode(params.Mode),
		CwdPath:      params.CwdPath,
		FrontmostApp: params.FrontmostApp,
		QueryPrefix:  params.QueryPrefix,
	}
	results, err := s.engine.Search(ctx, params.Query, opts)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeSearchFailed, err.Error())
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ItemID:    r.Item.ID,
			Path:      r.Item.Path,
			Basename:  r.Item.Basename,
			Score:     r.Breakdown.Final,
			MatchType: string(r.MatchType),
			Origin:    string(r.Origin),
		})
	}
	return NewSuccessResponse(req.ID, out)
}

func (s *Server) status() StatusResult {
	st := s.engine.EngineStatus()
	return StatusResult{
		Running:           true,
		PID:               os.Getpid(),
		Uptime:            time.Since(s.started).Round(time.Second).String(),
		GenerationID:      st.GenerationID,
		ItemCount:         st.ItemCount,
		VectorCount:       st.VectorCount,
		EmbeddingsPending: st.EmbeddingsPending,
		QueueDepth:        st.QueueDepth,
	}
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
