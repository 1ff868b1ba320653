// Package detect implements the store detector (C2): a single scan over
// every object store in an opened database that infers, by sampling the
// first few records of each store and running them through the package
// classify predicates, which opaquely-named store holds which entity kind.
package detect

import (
	"context"
	"iter"
	"strings"

	"github.com/jra3/linear-reader/internal/classify"
	"github.com/jra3/linear-reader/internal/record"
)

// DefaultSampleSize bounds how many records of a store are inspected before
// giving up on classifying it. Detection may stop earlier, on the first
// record that matches a predicate.
const DefaultSampleSize = 25

// DBHandle is the external collaborator this package depends on: an opened
// database handle exposing object store names and a bounded record
// iterator per store. The on-disk format decoder behind this interface is
// out of scope for this system; internal/diskstore provides one concrete
// implementation for testing and for workspaces that keep the mirrored
// state as flat JSON-blob SQLite tables.
type DBHandle interface {
	// ObjectStoreNames lists every object store name in the database.
	ObjectStoreNames(ctx context.Context) ([]string, error)

	// SampleRecords iterates up to limit records from storeName in
	// whatever order the store naturally yields them; limit <= 0 means
	// iterate every record (used by the snapshot loader's full pass, as
	// opposed to the detector's bounded sample). An iteration error
	// (yielded as the second value) causes the whole store to be skipped;
	// it must never abort detection of the remaining stores.
	SampleRecords(ctx context.Context, storeName string, limit int) iter.Seq2[record.Map, error]
}

// DetectedStores maps entity kinds to the object store name(s) that hold
// them. Singleton kinds carry at most one store name; multi-store kinds
// (users, workflow states, labels) carry every store that classified as
// that kind, because some clients shard those by team.
type DetectedStores struct {
	Issues          *string
	Teams           *string
	Comments        *string
	Projects        *string
	IssueContent    *string
	Initiatives     *string
	ProjectStatuses *string
	Cycles          *string
	Documents       *string
	DocumentContent *string
	Milestones      *string
	ProjectUpdates  *string

	Users          []string
	WorkflowStates []string
	Labels         []string
}

var singletonKinds = map[classify.Kind]bool{
	classify.KindIssue:           true,
	classify.KindTeam:            true,
	classify.KindComment:         true,
	classify.KindProject:         true,
	classify.KindIssueContent:    true,
	classify.KindInitiative:      true,
	classify.KindProjectStatus:   true,
	classify.KindCycle:           true,
	classify.KindDocument:        true,
	classify.KindDocumentContent: true,
	classify.KindMilestone:       true,
	classify.KindProjectUpdate:   true,
}

func (d *DetectedStores) assign(kind classify.Kind, storeName string) {
	if singletonKinds[kind] {
		if _, ok := d.SingletonStoreName(kind); ok {
			// A singleton kind keeps its first-detected store; a later
			// store that happens to classify the same way must not
			// clobber it.
			return
		}
	}
	name := storeName
	switch kind {
	case classify.KindIssue:
		d.Issues = &name
	case classify.KindTeam:
		d.Teams = &name
	case classify.KindComment:
		d.Comments = &name
	case classify.KindProject:
		d.Projects = &name
	case classify.KindIssueContent:
		d.IssueContent = &name
	case classify.KindInitiative:
		d.Initiatives = &name
	case classify.KindProjectStatus:
		d.ProjectStatuses = &name
	case classify.KindCycle:
		d.Cycles = &name
	case classify.KindDocument:
		d.Documents = &name
	case classify.KindDocumentContent:
		d.DocumentContent = &name
	case classify.KindMilestone:
		d.Milestones = &name
	case classify.KindProjectUpdate:
		d.ProjectUpdates = &name
	case classify.KindUser:
		d.Users = append(d.Users, storeName)
	case classify.KindWorkflowState:
		d.WorkflowStates = append(d.WorkflowStates, storeName)
	case classify.KindLabel:
		d.Labels = append(d.Labels, storeName)
	}
}

// Detector runs the detection algorithm with a configurable sample size.
type Detector struct {
	SampleSize int
}

// New returns a Detector using DefaultSampleSize.
func New() *Detector {
	return &Detector{SampleSize: DefaultSampleSize}
}

// isSyncStagingStore reports whether a store name should be skipped
// outright: a leading underscore marks internal bookkeeping stores, and
// "_partial" anywhere in the name marks sync staging stores.
func isSyncStagingStore(name string) bool {
	return strings.HasPrefix(name, "_") || strings.Contains(name, "_partial")
}

// Detect performs a single scan of every object store in db, classifying
// each by sampling up to d.SampleSize of its records. It returns an error
// only when db.ObjectStoreNames fails: a store whose iterator fails, or
// whose records don't classify as anything recognized, is silently left
// out of the result. Missing entity
// kinds degrade gracefully downstream as empty maps.
func (d *Detector) Detect(ctx context.Context, db DBHandle) (*DetectedStores, error) {
	sampleSize := d.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	names, err := db.ObjectStoreNames(ctx)
	if err != nil {
		return nil, err
	}

	result := &DetectedStores{}
	for _, name := range names {
		if isSyncStagingStore(name) {
			continue
		}
		d.classifyStore(ctx, db, name, sampleSize, result)
	}
	return result, nil
}

func (d *Detector) classifyStore(ctx context.Context, db DBHandle, name string, sampleSize int, result *DetectedStores) {
	for rec, err := range db.SampleRecords(ctx, name, sampleSize) {
		if err != nil {
			// A store whose iterator raises is silently skipped; the
			// detector never fails the whole load over one bad store.
			return
		}
		if kind, ok := classify.Classify(rec); ok {
			result.assign(kind, name)
			return
		}
	}
}

// SingletonStoreName reports the single detected store name for kind, if
// kind is a singleton kind and one was detected.
func (d *DetectedStores) SingletonStoreName(kind classify.Kind) (string, bool) {
	var ptr *string
	switch kind {
	case classify.KindIssue:
		ptr = d.Issues
	case classify.KindTeam:
		ptr = d.Teams
	case classify.KindComment:
		ptr = d.Comments
	case classify.KindProject:
		ptr = d.Projects
	case classify.KindIssueContent:
		ptr = d.IssueContent
	case classify.KindInitiative:
		ptr = d.Initiatives
	case classify.KindProjectStatus:
		ptr = d.ProjectStatuses
	case classify.KindCycle:
		ptr = d.Cycles
	case classify.KindDocument:
		ptr = d.Documents
	case classify.KindDocumentContent:
		ptr = d.DocumentContent
	case classify.KindMilestone:
		ptr = d.Milestones
	case classify.KindProjectUpdate:
		ptr = d.ProjectUpdates
	}
	if ptr == nil {
		return "", false
	}
	return *ptr, true
}

// MultiStoreNames returns the detected store names for a multi-store kind
// (users, workflow states, labels).
func (d *DetectedStores) MultiStoreNames(kind classify.Kind) []string {
	switch kind {
	case classify.KindUser:
		return d.Users
	case classify.KindWorkflowState:
		return d.WorkflowStates
	case classify.KindLabel:
		return d.Labels
	default:
		return nil
	}
}
