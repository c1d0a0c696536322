// Package blueprint turns customer workbooks into reusable invoice
// blueprints: a scanned layout, a reconciled column mapping, a sanitized
// template and a persisted configuration bundle.
package blueprint

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exportdocs/blueprint/pkg/blueprint/bundle"
	"github.com/exportdocs/blueprint/pkg/blueprint/models"
	"github.com/exportdocs/blueprint/pkg/blueprint/reconcile"
	"github.com/exportdocs/blueprint/pkg/blueprint/sanitizer"
	"github.com/exportdocs/blueprint/pkg/blueprint/scanner"
)

// Scan outcome status values.
const (
	// StatusClean means every header mapped automatically.
	StatusClean = "clean"
	// StatusNeedsMapping means unrecognized headers await confirmation.
	StatusNeedsMapping = "needs_mapping"
)

// Options configures a Generator.
type Options struct {
	// TokenTTL bounds how long a scan session stays valid. Zero means the
	// default of 30 minutes.
	TokenTTL time.Duration
	// RequireComplete rejects generation while unrecognized headers remain
	// unconfirmed. Off by default: unmapped columns fall back to defaults
	// at render time.
	RequireComplete bool
}

// DefaultOptions returns the default generator options.
func DefaultOptions() Options {
	return Options{TokenTTL: 30 * time.Minute}
}

func (o Options) tokenTTL() time.Duration {
	if o.TokenTTL > 0 {
		return o.TokenTTL
	}
	return 30 * time.Minute
}

// ScanOutcome is the first-phase result handed back to the operator.
type ScanOutcome struct {
	FileToken      string               `json:"file_token"`
	Status         string               `json:"status"`
	CustomerCode   string               `json:"customer_code"`
	UnknownHeaders []models.HeaderEntry `json:"unknown_headers"`
}

// BuildResult points at the persisted bundle after a successful generation.
type BuildResult struct {
	CustomerCode   string `json:"customer_code"`
	BundleDir      string `json:"bundle_path"`
	ConfigPath     string `json:"config_path"`
	TemplatePath   string `json:"template_path"`
	Fallback       bool   `json:"fallback,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// scanSession keeps one scanned workbook alive between the two phases.
type scanSession struct {
	path      string
	analysis  *models.WorkbookAnalysis
	partition *reconcile.Result
	createdAt time.Time
}

// Generator runs the scan and generate phases against one bundle store.
// Safe for concurrent use.
type Generator struct {
	store  *bundle.Store
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*scanSession
}

// NewGenerator returns a Generator persisting bundles to store.
func NewGenerator(store *bundle.Store, opts Options) *Generator {
	return &Generator{
		store:    store,
		opts:     opts,
		logger:   slog.Default().With("component", "generator"),
		sessions: map[string]*scanSession{},
	}
}

// Store exposes the underlying bundle store, for resolution and listing.
func (g *Generator) Store() *bundle.Store { return g.store }

// Scan analyzes the workbook at path and opens a scan session. When every
// header maps automatically the outcome is clean; otherwise the unknown
// headers come back with suggestions and the file token is used to finish
// the job once the operator has confirmed them.
func (g *Generator) Scan(path string) (*ScanOutcome, error) {
	analysis, err := scanner.New(nil).Scan(path)
	if err != nil {
		return nil, NewStepError(StepScan, err)
	}

	partition := reconcile.Partition(analysis.UnknownHeaders())
	token := uuid.NewString()

	g.mu.Lock()
	g.pruneLocked()
	g.sessions[token] = &scanSession{
		path:      path,
		analysis:  analysis,
		partition: partition,
		createdAt: time.Now(),
	}
	g.mu.Unlock()

	status := StatusClean
	if !partition.Clean() {
		status = StatusNeedsMapping
	}
	unknown := partition.Unknown
	if unknown == nil {
		// Clean scans still serialize an empty array, not null.
		unknown = []models.HeaderEntry{}
	}
	g.logger.Info("workbook scanned",
		"path", path, "sheets", len(analysis.Sheets),
		"unknown_headers", len(partition.Unknown), "status", status)

	return &ScanOutcome{
		FileToken:      token,
		Status:         status,
		CustomerCode:   analysis.CustomerCode,
		UnknownHeaders: unknown,
	}, nil
}

// Generate finishes a scan session: folds the operator's confirmations into
// the mapping, re-scans with them applied, sanitizes the workbook into a
// template and installs the bundle. The token is consumed on success.
func (g *Generator) Generate(token, customerCode string, confirmations map[string]string) (*BuildResult, error) {
	session, err := g.takeSession(token)
	if err != nil {
		return nil, err
	}

	customerCode = strings.TrimSpace(customerCode)
	if customerCode == "" {
		return nil, NewStepError(StepReconcile, reconcile.ErrCustomerCodeRequired)
	}
	mapping, err := reconcile.Merge(session.partition, confirmations)
	if err != nil {
		return nil, NewStepError(StepReconcile, err)
	}

	// Second pass with confirmed mappings applied, so previously unknown
	// columns come out with their operator-assigned identifiers.
	analysis, err := scanner.New(mapping).Scan(session.path)
	if err != nil {
		return nil, NewStepError(StepScan, err)
	}
	analysis.CustomerCode = customerCode

	if g.opts.RequireComplete {
		if unknown := analysis.UnknownHeaders(); len(unknown) > 0 {
			return nil, NewStepError(StepReconcile, ErrMappingIncomplete)
		}
	}

	result, err := g.build(analysis, customerCode)
	if err != nil {
		return nil, err
	}
	g.dropSession(token)
	return result, nil
}

// build sanitizes the template and installs the bundle from a staging
// directory, so a half-built bundle is never observable.
func (g *Generator) build(analysis *models.WorkbookAnalysis, customerCode string) (*BuildResult, error) {
	staging, err := g.store.Stage()
	if err != nil {
		return nil, NewStepError(StepBuild, err)
	}

	templateDest := g.store.StagedTemplatePath(staging, customerCode)
	sanResult, err := sanitizer.New().Sanitize(analysis.FilePath, analysis, templateDest)
	if err != nil {
		g.store.Discard(staging)
		return nil, NewStepError(StepSanitize, err)
	}

	cfg := bundle.ComposeConfig(analysis, customerCode)
	if _, err := g.store.WriteConfig(staging, cfg); err != nil {
		g.store.Discard(staging)
		return nil, NewStepError(StepBuild, err)
	}

	layouts := map[string]*models.SheetLayout{}
	for i := range analysis.Sheets {
		if analysis.Sheets[i].Layout != nil {
			layouts[analysis.Sheets[i].Name] = analysis.Sheets[i].Layout
		}
	}
	if _, err := g.store.WriteLayout(staging, customerCode, layouts); err != nil {
		g.store.Discard(staging)
		return nil, NewStepError(StepBuild, err)
	}

	if _, err := g.store.Install(customerCode, staging); err != nil {
		g.store.Discard(staging)
		return nil, NewStepError(StepBuild, err)
	}

	return &BuildResult{
		CustomerCode:   analysis.CustomerCode,
		BundleDir:      g.store.BundleDir(customerCode),
		ConfigPath:     g.store.ConfigPath(customerCode),
		TemplatePath:   g.store.TemplatePath(customerCode),
		Fallback:       sanResult.Fallback,
		FallbackReason: sanResult.FallbackReason,
	}, nil
}

// Build runs the whole pipeline in one shot, for CLI use where the caller
// supplies confirmations up front instead of holding a token.
func (g *Generator) Build(path, customerCode string, confirmations map[string]string) (*BuildResult, error) {
	outcome, err := g.Scan(path)
	if err != nil {
		return nil, err
	}
	return g.Generate(outcome.FileToken, customerCode, confirmations)
}

func (g *Generator) takeSession(token string) (*scanSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	session, ok := g.sessions[token]
	if !ok || time.Since(session.createdAt) > g.opts.tokenTTL() {
		delete(g.sessions, token)
		return nil, ErrTokenExpired
	}
	return session, nil
}

func (g *Generator) dropSession(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, token)
}

// pruneLocked drops aged-out sessions. Caller holds g.mu.
func (g *Generator) pruneLocked() {
	ttl := g.opts.tokenTTL()
	for token, session := range g.sessions {
		if time.Since(session.createdAt) > ttl {
			delete(g.sessions, token)
		}
	}
}
