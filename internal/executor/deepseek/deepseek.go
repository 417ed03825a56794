// Package deepseek implements the DeepSeek provider adapter: session
// creation, Proof-of-Work solving, and SSE completion streaming, per the
// orchestration engine's DeepSeek adapter design.
package deepseek

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jellyfish-p/web-proxy-api/internal/config"
	"github.com/jellyfish-p/web-proxy-api/internal/credpool"
	"github.com/jellyfish-p/web-proxy-api/internal/credrepo"
	"github.com/jellyfish-p/web-proxy-api/internal/executor"
	"github.com/jellyfish-p/web-proxy-api/internal/middle"
	"github.com/jellyfish-p/web-proxy-api/internal/proxypool"
)

// Models are the four DeepSeek-backed chat model ids.
var Models = []string{
	"deepseek-chat",
	"deepseek-reasoner",
	"deepseek-chat-search",
	"deepseek-reasoner-search",
}

const ownerTag = "deepseek"

// modelFlags returns the (thinking, search) flag pair the completion
// endpoint expects for modelID.
func modelFlags(modelID string) (thinking, search bool) {
	switch modelID {
	case "deepseek-reasoner":
		return true, false
	case "deepseek-chat-search":
		return false, true
	case "deepseek-reasoner-search":
		return true, true
	default:
		return false, false
	}
}

// Adapter wires credential selection, the PoW solver, and the HTTP client
// together behind the executor.Adapter contract.
type Adapter struct {
	cfg             config.DeepSeek
	pool            *credpool.Selector
	repo            *credrepo.FileRepo
	solver          *powSolver
	proxy           *proxypool.Pool
	client          *http.Client
	isConfiguredKey func(string) bool
}

// New constructs a DeepSeek Adapter. wasmBytes is the bundled PoW module's
// raw contents (sha3_wasm_bg.7b9ca65ddd.wasm), loaded once at startup.
// isConfiguredKey reports whether a caller-presented bearer token matches
// one of the proxy's own configured API keys (§4.5 step 1); a caller bearer
// that doesn't match one is used directly as the upstream DeepSeek token
// instead of leasing a pooled credential.
func New(cfg config.DeepSeek, pool *credpool.Selector, repo *credrepo.FileRepo, wasmBytes []byte, isConfiguredKey func(string) bool) (*Adapter, error) {
	solver, err := newPowSolver(wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("deepseek: load pow module: %w", err)
	}
	if isConfiguredKey == nil {
		isConfiguredKey = func(string) bool { return false }
	}
	proxyPool := proxypool.New(proxypool.Options{StaticProxy: cfg.ProxyURL, PoolURL: cfg.ProxyPoolURL})
	pool.Register(Models, []string{}, ownerTag)
	return &Adapter{
		cfg:             cfg,
		pool:            pool,
		repo:            repo,
		solver:          solver,
		proxy:           proxyPool,
		client:          proxypool.NewUTLSHTTPClient(proxyPool.Current(), 60*time.Second),
		isConfiguredKey: isConfiguredKey,
	}, nil
}

// RegisterCredentials extends the pool's ring for every DeepSeek model with
// the credential filenames currently on disk. Call on boot and whenever the
// management surface adds/removes a credential file.
func (a *Adapter) RegisterCredentials(credentialIDs []string) {
	a.pool.Register(Models, credentialIDs, ownerTag)
}

// AsExecutor exposes the adapter behind the generic executor.Adapter
// contract for registration with the dispatcher's registry.
func (a *Adapter) AsExecutor() *executor.Adapter {
	return &executor.Adapter{
		Models:  func() []string { return append([]string(nil), Models...) },
		Handle:  a.Handle,
		Release: a.Release,
	}
}

// Handle implements the provider adapter contract §4.4 for DeepSeek: resolve
// a credential, build the prompt, create a session, solve PoW, and open the
// completion SSE stream.
func (a *Adapter) Handle(ctx context.Context, callerAuth string, req middle.Content) (*executor.Result, error) {
	thinking, search := modelFlags(req.Model)

	token, state, err := a.resolveToken(callerAuth, req.Model)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(req.Messages)

	sessionID, err := a.createSession(ctx, token)
	if err != nil {
		a.failAndRelease(state, req.Model)
		return nil, executor.ErrUpstream(http.StatusBadGateway, fmt.Sprintf("deepseek: create session: %v", err))
	}

	challenge, err := a.createPowChallenge(ctx, token)
	if err != nil {
		a.failAndRelease(state, req.Model)
		return nil, executor.ErrInternal(fmt.Sprintf("deepseek: pow challenge: %v", err))
	}
	powHeader, err := solveChallenge(a.solver, challenge)
	if err != nil {
		// PoW failure does not mark the credential bad, per the error taxonomy.
		a.pool.Release(state.CredentialID)
		return nil, executor.ErrInternal(fmt.Sprintf("deepseek: pow solve: %v", err))
	}

	resp, err := a.openCompletion(ctx, token, sessionID, prompt, thinking, search, powHeader)
	if err != nil {
		a.failAndRelease(state, req.Model)
		return nil, executor.ErrUpstream(http.StatusBadGateway, fmt.Sprintf("deepseek: completion: %v", err))
	}

	chunks := make(chan executor.StreamChunk, 16)
	go func() {
		defer close(chunks)
		defer resp.Body.Close()
		if err := streamCompletion(ctx, resp.Body, req, thinking, search, chunks); err != nil {
			log.Warnf("deepseek: stream aborted: %v", err)
		}
		a.pool.ClearSkip(req.Model, state.CredentialID)
	}()

	return &executor.Result{Chunks: chunks, State: state, Model: req.Model}, nil
}

// Release returns the leased credential to the pool.
func (a *Adapter) Release(state executor.State) {
	if state.CredentialID != "" {
		a.pool.Release(state.CredentialID)
	}
}

func (a *Adapter) failAndRelease(state executor.State, modelID string) {
	if state.CredentialID == "" {
		return
	}
	a.pool.Skip(modelID, state.CredentialID, 30_000)
	a.pool.Release(state.CredentialID)
}
