package snapshot

import (
	"context"
	"time"

	"github.com/jra3/linear-reader/internal/applog"
	"github.com/jra3/linear-reader/internal/classify"
	"github.com/jra3/linear-reader/internal/detect"
	"github.com/jra3/linear-reader/internal/entity"
	"github.com/jra3/linear-reader/internal/errs"
	"github.com/jra3/linear-reader/internal/record"
)

// ContentDecoder decodes a long-form content blob (a Yjs-like CRDT
// document, or similarly opaque encoding) into plain text. It is an
// external collaborator: the actual CRDT format is out of scope for this
// system (spec.md §1). PassthroughDecoder below is the degraded-but-usable
// default when no real decoder is wired in.
type ContentDecoder interface {
	Decode(blob any) (string, error)
}

// PassthroughDecoder treats string blobs as already-decoded text and
// anything else as empty. It exists so the loader is exercisable without a
// real CRDT decoder plugged in.
type PassthroughDecoder struct{}

func (PassthroughDecoder) Decode(blob any) (string, error) {
	if s, ok := blob.(string); ok {
		return s, nil
	}
	return "", nil
}

// Loader opens the external database once per refresh, runs the store
// detector, and materializes every detected entity store into the
// Snapshot's indexed maps (C3).
type Loader struct {
	DB       detect.DBHandle
	Detector *detect.Detector
	Content  ContentDecoder
	Scope    ScopeConfig
}

// NewLoader returns a Loader with a default Detector and a pass-through
// content decoder, and scoping disabled.
func NewLoader(db detect.DBHandle) *Loader {
	return &Loader{DB: db, Detector: detect.New(), Content: PassthroughDecoder{}}
}

// Load performs one full pass: detect stores, materialize every entity
// kind, merge decoded content blobs onto their owning Issue/Document,
// merge decoded comment bodies, apply the account scope filter, build
// derived indices, and stamp LoadedAt.
//
// A store whose detector assignment is absent degrades to an empty
// collection rather than failing the load (spec.md §4.2's "the detector
// never fails the load" extends to the loader: missing kinds are simply
// empty). A hard failure enumerating object stores, or a scope
// misconfiguration, is propagated as a *errs.SnapshotLoadError; the caller
// is expected to mark its cache degraded and keep serving the prior
// snapshot.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	stores, err := l.Detector.Detect(ctx, l.DB)
	if err != nil {
		return nil, errs.NewSnapshotLoadError("detect stores", err)
	}

	snap := New()

	l.loadSingleton(ctx, snap, stores, classify.KindTeam)
	l.loadMulti(ctx, snap, stores, classify.KindUser)
	l.loadMulti(ctx, snap, stores, classify.KindWorkflowState)
	l.loadSingleton(ctx, snap, stores, classify.KindIssue)
	l.mergeIssueContent(ctx, snap, stores)
	l.loadSingleton(ctx, snap, stores, classify.KindComment)
	l.decodeCommentBodies(snap)
	l.loadSingleton(ctx, snap, stores, classify.KindProject)
	l.loadMulti(ctx, snap, stores, classify.KindLabel)
	l.loadSingleton(ctx, snap, stores, classify.KindInitiative)
	l.loadSingleton(ctx, snap, stores, classify.KindProjectStatus)
	l.loadSingleton(ctx, snap, stores, classify.KindCycle)
	l.loadSingleton(ctx, snap, stores, classify.KindDocument)
	l.mergeDocumentContent(ctx, snap, stores)
	l.loadSingleton(ctx, snap, stores, classify.KindMilestone)
	l.loadSingleton(ctx, snap, stores, classify.KindProjectUpdate)

	snap.RebuildCommentsByIssue()

	if err := ApplyScope(snap, l.Scope); err != nil {
		return nil, errs.NewSnapshotLoadError("apply account scope", err)
	}

	snap.LoadedAt = time.Now()
	applog.Snapshot("loaded snapshot: %d teams, %d issues, %d users", snap.Teams.Len(), snap.Issues.Len(), snap.Users.Len())
	return snap, nil
}

func (l *Loader) loadSingleton(ctx context.Context, snap *Snapshot, stores *detect.DetectedStores, kind classify.Kind) {
	storeName, ok := stores.SingletonStoreName(kind)
	if !ok {
		return
	}
	l.insertStore(ctx, snap, storeName, kind)
}

func (l *Loader) loadMulti(ctx context.Context, snap *Snapshot, stores *detect.DetectedStores, kind classify.Kind) {
	for _, storeName := range stores.MultiStoreNames(kind) {
		l.insertStore(ctx, snap, storeName, kind)
	}
}

func (l *Loader) insertStore(ctx context.Context, snap *Snapshot, storeName string, kind classify.Kind) {
	for rec, err := range l.DB.SampleRecords(ctx, storeName, 0) {
		if err != nil {
			// A store's iterator failing mid-load degrades that kind to
			// whatever was already read, rather than aborting the whole
			// snapshot load.
			return
		}
		id := rec.String("id")
		if id == "" {
			continue
		}
		insertEntity(snap, kind, id, rec)
	}
}

func insertEntity(snap *Snapshot, kind classify.Kind, id string, rec record.Map) {
	switch kind {
	case classify.KindTeam:
		snap.Teams.Set(id, entity.FromTeamRecord(id, rec))
	case classify.KindUser:
		snap.Users.Set(id, entity.FromUserRecord(id, rec))
	case classify.KindWorkflowState:
		snap.States.Set(id, entity.FromWorkflowStateRecord(id, rec))
	case classify.KindIssue:
		snap.Issues.Set(id, entity.FromIssueRecord(id, rec))
	case classify.KindComment:
		snap.Comments.Set(id, entity.FromCommentRecord(id, rec))
	case classify.KindProject:
		snap.Projects.Set(id, entity.FromProjectRecord(id, rec))
	case classify.KindLabel:
		snap.Labels.Set(id, entity.FromLabelRecord(id, rec))
	case classify.KindInitiative:
		snap.Initiatives.Set(id, entity.FromInitiativeRecord(id, rec))
	case classify.KindProjectStatus:
		snap.ProjectStatuses.Set(id, entity.FromProjectStatusRecord(id, rec))
	case classify.KindCycle:
		snap.Cycles.Set(id, entity.FromCycleRecord(id, rec))
	case classify.KindDocument:
		snap.Documents.Set(id, entity.FromDocumentRecord(id, rec))
	case classify.KindMilestone:
		snap.Milestones.Set(id, entity.FromMilestoneRecord(id, rec))
	case classify.KindProjectUpdate:
		snap.ProjectUpdates.Set(id, entity.FromProjectUpdateRecord(id, rec))
	}
}

// mergeIssueContent decodes each issue-content record's contentState blob
// and merges it as the owning Issue's Description, exactly as spec.md
// §4.3 describes ("merged as a body/description attribute").
func (l *Loader) mergeIssueContent(ctx context.Context, snap *Snapshot, stores *detect.DetectedStores) {
	storeName, ok := stores.SingletonStoreName(classify.KindIssueContent)
	if !ok {
		return
	}
	for rec, err := range l.DB.SampleRecords(ctx, storeName, 0) {
		if err != nil {
			return
		}
		issueID := rec.String("issueId")
		issue, ok := snap.Issues.Get(issueID)
		if !ok {
			continue
		}
		text, err := l.Content.Decode(rec["contentState"])
		if err != nil {
			continue
		}
		issue.Description = text
		snap.Issues.Set(issueID, issue)
	}
}

// mergeDocumentContent is the Document analogue of mergeIssueContent.
// documentContentId is assumed to equal the owning Document's id, which is
// the shape a 1:1 per-document content store takes.
func (l *Loader) mergeDocumentContent(ctx context.Context, snap *Snapshot, stores *detect.DetectedStores) {
	storeName, ok := stores.SingletonStoreName(classify.KindDocumentContent)
	if !ok {
		return
	}
	for rec, err := range l.DB.SampleRecords(ctx, storeName, 0) {
		if err != nil {
			return
		}
		docID := rec.String("documentContentId")
		doc, ok := snap.Documents.Get(docID)
		if !ok {
			continue
		}
		text, err := l.Content.Decode(rec["contentData"])
		if err != nil {
			continue
		}
		doc.Content = text
		snap.Documents.Set(docID, doc)
	}
}

// decodeCommentBodies decodes each comment's bodyData blob into its Body
// field, since the classifier requires bodyData but entity.Comment reads
// the already-decoded "body" key.
func (l *Loader) decodeCommentBodies(snap *Snapshot) {
	for _, id := range snap.Comments.Keys() {
		c, _ := snap.Comments.Get(id)
		if c.Body != "" {
			continue
		}
		text, err := l.Content.Decode(c.Raw["bodyData"])
		if err != nil {
			continue
		}
		c.Body = text
		snap.Comments.Set(id, c)
	}
}
