package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
)

// ErrSessionNotFound is returned for bills with no open detail session
var ErrSessionNotFound = errors.New("no open session for bill")

// Where a BillDetail's eventos came from
const (
	EventosFromActionsSource = "actions"
	EventosFromScraper       = "scraper"
	EventosFromSnapshot      = "snapshot"
)

// CodeCancelled is the errorCode of a scrape abandoned because its session
// was closed, expired or shut down.
const CodeCancelled = "CANCELLED"

// snapshotLookupTimeout bounds the stale snapshot lookup after a cancelled scrape
const snapshotLookupTimeout = 5 * time.Second

// BillSource fetches primary bill records
type BillSource interface {
	GetBill(ctx context.Context, id string) (*model.BillRecord, error)
}

// BillScraper runs a scraper script for a bill page
type BillScraper interface {
	Invoke(ctx context.Context, script string, args []string, timeout time.Duration) (*model.ScrapeResult, error)
}

// DocumentResolver resolves document URLs
type DocumentResolver interface {
	Resolve(ctx context.Context, rawURL string) (model.DocumentRef, error)
}

// SnapshotStore persists successful scrapes so a failed scrape can fall
// back to the last known result.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, billID, sourceURL string, result *model.ScrapeResult) (bool, error)
	LatestSnapshot(ctx context.Context, billID string) (*model.ScrapeResult, time.Time, error)
}

// BillDetail is a bill record plus everything derived or scraped for it
type BillDetail struct {
	model.BillRecord
	ProcessedDates ProcessedDates   `json:"processedDates"`
	Status         string           `json:"status"`
	Eventos        []model.Evento   `json:"eventos"`
	EventosSource  string           `json:"eventos_source"`
	Comisiones     []model.Comision `json:"comisiones,omitempty"`
	MeasureNumber  string           `json:"measure_number,omitempty"`
	FilingDate     string           `json:"filing_date,omitempty"`
	Authors        []string         `json:"authors,omitempty"`
	ScrapeSource   string           `json:"scrape_source_url,omitempty"`
	ScrapeTime     *float64         `json:"scrape_time,omitempty"`
	Loading        bool             `json:"loading"`
	ScrapeError    string           `json:"scrape_error,omitempty"`
	ErrorCode      string           `json:"errorCode,omitempty"`
	Stale          bool             `json:"stale,omitempty"`
	SnapshotAt     *time.Time       `json:"snapshot_at,omitempty"`
}

// clone copies the parts of d that sessions mutate
func (d *BillDetail) clone() *BillDetail {
	c := *d
	c.Eventos = make([]model.Evento, len(d.Eventos))
	for i, e := range d.Eventos {
		e.Documents = append([]model.DocumentRef(nil), e.Documents...)
		c.Eventos[i] = e
	}
	c.Comisiones = make([]model.Comision, len(d.Comisiones))
	for i, cm := range d.Comisiones {
		cm.Documents = append([]model.DocumentRef(nil), cm.Documents...)
		c.Comisiones[i] = cm
	}
	if d.Comisiones == nil {
		c.Comisiones = nil
	}
	return &c
}

// Session is one open bill detail view: the snapshot returned when it was
// opened and a single pending update delivered once the background scrape
// settles.
type Session struct {
	BillID string

	snapshot *BillDetail
	done     chan struct{}
	cancel   context.CancelFunc

	// viewers is guarded by the Orchestrator's lock
	viewers int

	mu         sync.RWMutex
	current    *BillDetail
	resolved   map[string]model.DocumentRef
	lastAccess time.Time
}

func newSession(billID string, snapshot *BillDetail, now time.Time) *Session {
	return &Session{
		BillID:     billID,
		snapshot:   snapshot,
		current:    snapshot,
		done:       make(chan struct{}),
		resolved:   make(map[string]model.DocumentRef),
		viewers:    1,
		lastAccess: now,
	}
}

// Snapshot returns the state as of Open
func (s *Session) Snapshot() BillDetail {
	return *s.snapshot.clone()
}

// Current returns the latest state
func (s *Session) Current() BillDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.current.clone()
}

// Done is closed once the background scrape has been merged or has failed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the update arrives and returns it
func (s *Session) Wait(ctx context.Context) (BillDetail, error) {
	select {
	case <-s.done:
		return s.Current(), nil
	case <-ctx.Done():
		return BillDetail{}, ctx.Err()
	}
}

// complete publishes the update. It must be called exactly once. Documents
// resolved while the scrape was running are carried over.
func (s *Session) complete(update *BillDetail) {
	s.mu.Lock()
	if len(s.resolved) > 0 {
		update = update.clone()
	}
	for docURL, ref := range s.resolved {
		applyResolved(update, docURL, ref)
	}
	s.current = update
	s.mu.Unlock()
	close(s.done)
}

// resolvedRef returns a reference resolved earlier in this session
func (s *Session) resolvedRef(docURL string) (model.DocumentRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ref, ok := s.resolved[docURL]; ok {
		return ref, true
	}
	if ref, found := findDocument(s.current, docURL); found && ref.Resolved() {
		return *ref, true
	}
	return model.DocumentRef{}, false
}

// recordDocument applies a resolution outcome to the current state. Only
// resolved references are kept for later lookups and for the update.
func (s *Session) recordDocument(docURL string, ref model.DocumentRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref.Resolved() {
		s.resolved[docURL] = ref
	}
	next := s.current.clone()
	applyResolved(next, docURL, ref)
	s.current = next
}

// OrchestratorOptions configures an Orchestrator
type OrchestratorOptions struct {
	SourceHosts []string
	FastTimeout time.Duration
	SessionTTL  time.Duration
	Now         func() time.Time
}

// SessionGauge reports the number of open sessions
type SessionGauge interface {
	SetSessions(n int)
}

// Orchestrator opens bill detail sessions: it returns the primary record at
// once and completes it with scraped eventos in the background.
type Orchestrator struct {
	bills     BillSource
	scraper   BillScraper
	resolver  DocumentResolver
	snapshots SnapshotStore
	gauge     SessionGauge
	opts      OrchestratorOptions

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator. snapshots and gauge may be nil.
func NewOrchestrator(bills BillSource, scraper BillScraper, resolver DocumentResolver, snapshots SnapshotStore, gauge SessionGauge, opts OrchestratorOptions) *Orchestrator {
	if opts.FastTimeout == 0 {
		opts.FastTimeout = 3 * time.Second
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		bills:     bills,
		scraper:   scraper,
		resolver:  resolver,
		snapshots: snapshots,
		gauge:     gauge,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Open returns the session for billID, creating it if needed, and counts
// the caller as one of its viewers. The primary record is fetched
// synchronously; the scrape never delays the return.
func (o *Orchestrator) Open(ctx context.Context, billID string) (*Session, error) {
	if s, ok := o.join(billID); ok {
		return s, nil
	}

	bill, err := o.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}

	now := o.opts.Now()
	detail := &BillDetail{
		BillRecord:     *bill,
		ProcessedDates: ProcessDates(bill, now),
		Status:         StatusLabel(bill),
		Eventos:        EventosFromActions(bill.Actions),
		EventosSource:  EventosFromActionsSource,
	}
	detail.BillRecord.Actions = SortActions(bill.Actions)

	source, found := ScrapeSource(bill.Sources, o.opts.SourceHosts)
	detail.ScrapeSource = source
	detail.Loading = found

	session := newSession(billID, detail, now)
	scrapeCtx, cancel := context.WithCancel(context.Background())
	session.cancel = cancel

	o.mu.Lock()
	if existing, ok := o.sessions[billID]; ok {
		existing.viewers++
		o.mu.Unlock()
		cancel()
		return existing, nil
	}
	o.sessions[billID] = session
	count := len(o.sessions)
	o.mu.Unlock()
	o.reportSessions(count)

	if !found {
		log.Infof("bill %s has no scrape source, using actions", billID)
		session.complete(detail)
		return session, nil
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.completeSession(scrapeCtx, session, source)
	}()

	return session, nil
}

// Get returns an open, unexpired session
func (o *Orchestrator) Get(billID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.getLocked(billID)
}

// join adds a viewer to an open, unexpired session
func (o *Orchestrator) join(billID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.getLocked(billID)
	if ok {
		s.viewers++
	}
	return s, ok
}

func (o *Orchestrator) getLocked(billID string) (*Session, bool) {
	o.sweepLocked()

	s, ok := o.sessions[billID]
	if ok {
		s.mu.Lock()
		s.lastAccess = o.opts.Now()
		s.mu.Unlock()
	}
	return s, ok
}

// Close releases one viewer of billID's session. The session is discarded
// and its scrape cancelled once the last viewer is gone.
func (o *Orchestrator) Close(billID string) bool {
	o.mu.Lock()
	s, ok := o.sessions[billID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	s.viewers--
	if s.viewers > 0 {
		o.mu.Unlock()
		return true
	}
	delete(o.sessions, billID)
	count := len(o.sessions)
	o.mu.Unlock()

	s.cancel()
	o.reportSessions(count)
	return true
}

// Shutdown cancels every background scrape and waits for them to settle
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	for id, s := range o.sessions {
		s.cancel()
		delete(o.sessions, id)
	}
	o.mu.Unlock()
	o.wg.Wait()
	o.reportSessions(0)
}

// ResolveDocument resolves a document of an open bill. A reference already
// resolved on the bill's state is returned without another lookup.
func (o *Orchestrator) ResolveDocument(ctx context.Context, billID, docURL string) (model.DocumentRef, error) {
	s, ok := o.Get(billID)
	if !ok {
		return model.DocumentRef{}, fmt.Errorf("%w: %s", ErrSessionNotFound, billID)
	}

	if ref, ok := s.resolvedRef(docURL); ok {
		return ref, nil
	}

	ref, err := o.resolver.Resolve(ctx, docURL)
	s.recordDocument(docURL, ref)
	return ref, err
}

// applyResolved replaces d's reference to docURL, keeping its description
func applyResolved(d *BillDetail, docURL string, ref model.DocumentRef) {
	existing, found := findDocument(d, docURL)
	if !found {
		return
	}
	description := existing.Description
	*existing = ref
	existing.LinkURL = docURL
	if existing.Description == "" {
		existing.Description = description
	}
}

func (o *Orchestrator) completeSession(ctx context.Context, s *Session, source string) {
	billID := s.BillID
	result, err := o.scraper.Invoke(ctx, scraper.ScriptFast, []string{source}, o.opts.FastTimeout)
	if err == nil && result.Error != "" {
		err = errors.New(result.Error)
		if result.ErrorCode != "" {
			err = &codedError{msg: result.Error, code: result.ErrorCode}
		}
	}

	update := s.snapshot.clone()
	update.Loading = false

	if err != nil {
		lookupCtx := ctx
		if ctx.Err() != nil {
			log.Infof("background scrape for bill %s cancelled", billID)
			update.ScrapeError = "scrape cancelled"
			update.ErrorCode = CodeCancelled

			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(context.Background(), snapshotLookupTimeout)
			defer cancel()
		} else {
			log.Warnf("background scrape for bill %s failed: %v", billID, err)
			update.ScrapeError = err.Error()
			update.ErrorCode = errorCode(err)
		}
		o.applyStaleSnapshot(lookupCtx, update)
		s.complete(update)
		return
	}

	mergeScrape(update, result)
	update.EventosSource = EventosFromScraper

	if o.snapshots != nil {
		if changed, err := o.snapshots.SaveSnapshot(ctx, billID, source, result); err != nil {
			log.Errorf("failed to save scrape snapshot for bill %s: %v", billID, err)
		} else if changed {
			log.Infof("bill %s scrape changed (snapshot created)", billID)
		}
	}

	s.complete(update)
}

func (o *Orchestrator) applyStaleSnapshot(ctx context.Context, update *BillDetail) {
	if o.snapshots == nil {
		return
	}
	last, at, err := o.snapshots.LatestSnapshot(ctx, update.BillRecord.ID)
	if err != nil {
		log.Errorf("failed to load scrape snapshot for bill %s: %v", update.BillRecord.ID, err)
		return
	}
	if last == nil {
		return
	}
	mergeScrape(update, last)
	update.EventosSource = EventosFromSnapshot
	update.Stale = true
	update.SnapshotAt = &at
}

// mergeScrape copies the fields the scraper reported onto d. Absent fields
// leave d untouched; an empty eventos list keeps the fallback timeline.
func mergeScrape(d *BillDetail, r *model.ScrapeResult) {
	if len(r.Eventos) > 0 {
		d.Eventos = append([]model.Evento(nil), r.Eventos...)
		model.SortEventos(d.Eventos)
	}
	if r.Comisiones != nil {
		d.Comisiones = append([]model.Comision(nil), r.Comisiones...)
	}
	if r.MeasureNumber != nil {
		d.MeasureNumber = *r.MeasureNumber
	}
	if r.Title != nil && *r.Title != "" {
		d.BillRecord.Title = *r.Title
	}
	if r.FilingDate != nil {
		d.FilingDate = *r.FilingDate
	}
	if r.Authors != nil {
		d.Authors = append([]string(nil), r.Authors...)
	}
	if r.ScrapeTime != nil {
		t := *r.ScrapeTime
		d.ScrapeTime = &t
	}
}

// findDocument locates a document by link_url in d's eventos or comisiones
func findDocument(d *BillDetail, docURL string) (*model.DocumentRef, bool) {
	for i := range d.Eventos {
		for j := range d.Eventos[i].Documents {
			if d.Eventos[i].Documents[j].LinkURL == docURL {
				return &d.Eventos[i].Documents[j], true
			}
		}
	}
	for i := range d.Comisiones {
		for j := range d.Comisiones[i].Documents {
			if d.Comisiones[i].Documents[j].LinkURL == docURL {
				return &d.Comisiones[i].Documents[j], true
			}
		}
	}
	return nil, false
}

// sweepLocked drops sessions idle for longer than the TTL
func (o *Orchestrator) sweepLocked() {
	cutoff := o.opts.Now().Add(-o.opts.SessionTTL)
	for id, s := range o.sessions {
		s.mu.RLock()
		idle := s.lastAccess.Before(cutoff)
		s.mu.RUnlock()
		if idle {
			s.cancel()
			delete(o.sessions, id)
		}
	}
}

func (o *Orchestrator) reportSessions(n int) {
	if o.gauge != nil {
		o.gauge.SetSessions(n)
	}
}

// codedError carries an errorCode reported by the scraper itself
type codedError struct {
	msg  string
	code string
}

func (e *codedError) Error() string { return e.msg }

func (e *codedError) Code() string { return e.code }

// errorCode extracts a client-facing code from err, if it has one
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
