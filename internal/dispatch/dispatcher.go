package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/captcha"
	"github.com/JakeFAU/genmedia-gateway/internal/config"
	"github.com/JakeFAU/genmedia-gateway/internal/credential"
	"github.com/JakeFAU/genmedia-gateway/internal/diag"
	"github.com/JakeFAU/genmedia-gateway/internal/endpoint"
	"github.com/JakeFAU/genmedia-gateway/internal/id/uuid"
	"github.com/JakeFAU/genmedia-gateway/internal/slot"
	"github.com/JakeFAU/genmedia-gateway/internal/telemetry"
	"github.com/JakeFAU/genmedia-gateway/internal/usage"
)

const (
	captchaTokenField = "captchaToken"
	sessionIDField    = "sessionId"
	projectIDField    = "projectId"
)

// challengeKinds are the sub-kinds the provider gates behind a challenge.
var challengeKinds = map[ActionKind]bool{
	KindGeneration: true,
	KindHealth:     true,
}

// Dispatcher executes outbound provider calls.
type Dispatcher struct {
	cfg             config.ProviderConfig
	captchaServices map[string]bool
	solver          *captcha.Adapter
	creds           *credential.Resolver
	selector        *endpoint.Selector
	slots           *slot.Client
	slotCooldown    int
	recorder        usage.Recorder
	ids             *uuid.Generator
	hub             *diag.Hub
	httpClient      *http.Client
	logger          *zap.Logger
}

// New wires a Dispatcher. captchaServices lists the services whose
// generation and health actions require a challenge token.
func New(
	cfg config.ProviderConfig,
	captchaServices []string,
	solver *captcha.Adapter,
	creds *credential.Resolver,
	selector *endpoint.Selector,
	slots *slot.Client,
	slotCooldown int,
	recorder usage.Recorder,
	hub *diag.Hub,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	services := make(map[string]bool, len(captchaServices))
	for _, s := range captchaServices {
		services[s] = true
	}
	if recorder == nil {
		recorder = usage.Noop{}
	}
	return &Dispatcher{
		cfg:             cfg,
		captchaServices: services,
		solver:          solver,
		creds:           creds,
		selector:        selector,
		slots:           slots,
		slotCooldown:    slotCooldown,
		recorder:        recorder,
		ids:             uuid.NewGenerator(),
		hub:             hub,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// Dispatch executes one provider call and classifies the answer. Non-2xx
// provider answers are results, not errors; only credential failures and
// transport-level failures return an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	// Endpoint selection happens once per request start and is not
	// re-evaluated mid-flight.
	target := req.Endpoint
	if target == "" {
		env := d.selector.DefaultEnvironment()
		if req.Kind == KindGeneration {
			target = d.selector.SelectSibling(env)
		} else {
			target = d.selector.Select(env)
		}
	}

	if challengeKinds[req.Kind] && d.captchaServices[req.Service] {
		d.injectChallenge(ctx, &req)
	}

	if req.Kind == KindGeneration && d.slots != nil {
		d.slots.Reserve(d.slotCooldown, target)
	}

	cred, err := d.creds.Resolve(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	result, err := d.execute(ctx, req, cred, target)
	if err != nil {
		// One diagnostic entry per transport failure, except for
		// explicit-token calls and status polls.
		if cred.Source != credential.SourceExplicit && req.Kind != KindStatus {
			d.hub.Emit(diag.Event{
				Kind:    diag.KindTransportError,
				Service: req.Service,
				Detail:  req.Path,
				Err:     err.Error(),
			})
		}
		telemetry.CountDispatch(req.Service, "transport_error")
		return nil, err
	}

	telemetry.CountDispatch(req.Service, string(result.Class))

	if result.Class == ClassOK && req.Kind != KindStatus {
		d.recordUsage(req, target)
	}
	return result, nil
}

// injectChallenge solves a challenge and places the token at the single
// payload location the provider expects, synthesizing a session identifier
// when the payload lacks one.
func (d *Dispatcher) injectChallenge(ctx context.Context, req *Request) {
	if d.solver == nil {
		return
	}
	projectID, _ := req.Payload[projectIDField].(string)
	token := d.solver.Solve(ctx, req.Service, projectID)
	if token == "" {
		// Non-fatal: the provider is the authoritative gate.
		telemetry.CountCaptchaSolve("unavailable")
		return
	}
	telemetry.CountCaptchaSolve("solved")
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	req.Payload[captchaTokenField] = token
	if sid, ok := req.Payload[sessionIDField].(string); !ok || sid == "" {
		if id, err := d.ids.NewSessionID(); err == nil {
			req.Payload[sessionIDField] = id
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, req Request, cred credential.Credential, target string) (*Result, error) {
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	outURL := strings.TrimRight(target, "/") + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, outURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build outbound request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
	httpReq.Header.Set(d.cfg.ClientHeader, d.cfg.ClientID)
	// The provider validates these against its expected web origin.
	httpReq.Header.Set("Origin", d.cfg.Origin)
	httpReq.Header.Set("Referer", d.cfg.Referer)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Endpoint: target, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: target, Err: fmt.Errorf("read response body: %w", err)}
	}

	return classify(resp.StatusCode, raw, target), nil
}

// classify maps the provider's HTTP answer into the result taxonomy.
func classify(status int, raw []byte, target string) *Result {
	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &Result{
			StatusCode: http.StatusBadGateway,
			RawBody:    string(raw),
			Class:      ClassBadUpstream,
			Endpoint:   target,
		}
	}

	result := &Result{
		StatusCode: status,
		Body:       parsed,
		RawBody:    string(raw),
		Endpoint:   target,
	}
	switch {
	case status >= 200 && status < 300:
		result.Class = ClassOK
	case status == http.StatusBadRequest || hasSafetySignal(parsed):
		// Terminal: retrying a safety rejection only burns quota.
		result.Class = ClassContentPolicy
	default:
		result.Class = ClassRetriable
		result.Retriable = true
	}
	return result
}

// hasSafetySignal checks the provider's error message for content-block
// phrasing.
func hasSafetySignal(body map[string]any) bool {
	msg, _ := body["error"].(string)
	if msg == "" {
		if nested, ok := body["error"].(map[string]any); ok {
			msg, _ = nested["message"].(string)
		}
	}
	msg = strings.ToLower(msg)
	for _, marker := range []string{"blocked", "unsafe", "safety", "content policy"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// recordUsage notes which endpoint served the call. Detached: a slow or
// failing recorder never affects the returned result.
func (d *Dispatcher) recordUsage(req Request, target string) {
	evt := usage.Event{
		Service:  req.Service,
		Action:   req.Action,
		Endpoint: target,
		At:       time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.recorder.Record(ctx, evt); err != nil {
			d.logger.Warn("usage recording failed", zap.Error(err))
			d.hub.Emit(diag.Event{
				Kind:    diag.KindUsageRecording,
				Service: req.Service,
				Detail:  target,
				Err:     err.Error(),
			})
		}
	}()
}
