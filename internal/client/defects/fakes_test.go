package defects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
)

// fakeRows is an in-memory row store recording every call in order.
type fakeRows struct {
	mu sync.Mutex

	defects  map[string]models.Defect
	activity []models.ActivityEntry
	calls    []string
	queries  []models.Query

	updateErr   error
	insertErr   map[string]error
	selectErr   error
	selectAfter int // selectErr applies from this select call on
	selects     int
	nextID      int
}

func newFakeRows(ds ...models.Defect) *fakeRows {
	f := &fakeRows{defects: map[string]models.Defect{}, insertErr: map[string]error{}}
	for _, d := range ds {
		f.defects[d.ID] = d
	}
	return f
}

func (f *fakeRows) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeRows) Select(_ context.Context, table string, q models.Query, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("select " + table)
	f.queries = append(f.queries, q)
	f.selects++
	if f.selectErr != nil && f.selects > f.selectAfter {
		return f.selectErr
	}

	var out any
	switch table {
	case tableDefects:
		var rows []models.Defect
		for _, d := range f.defects {
			if matches(q, map[string]string{"id": d.ID}) {
				rows = append(rows, d)
			}
		}
		out = rows
	case tableActivity:
		var rows []models.ActivityEntry
		for i := len(f.activity) - 1; i >= 0; i-- {
			e := f.activity[i]
			if matches(q, map[string]string{"defect_id": e.DefectID}) {
				rows = append(rows, e)
			}
		}
		out = rows
	default:
		return fmt.Errorf("unknown table %s", table)
	}
	return roundTrip(out, dest)
}

func matches(q models.Query, cols map[string]string) bool {
	for _, f := range q.Filters {
		if cols[f.Column] != f.Value {
			return false
		}
	}
	return true
}

func (f *fakeRows) Insert(_ context.Context, table string, row, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("insert " + table)
	if err := f.insertErr[table]; err != nil {
		return err
	}

	switch table {
	case tableDefects:
		nd := row.(models.NewDefect)
		f.nextID++
		d := models.Defect{
			ID:          fmt.Sprintf("d%d", f.nextID),
			Asset:       nd.Asset,
			Title:       nd.Title,
			Description: nd.Description,
			Category:    nd.Category,
			Priority:    nd.Priority,
			Status:      nd.Status,
			SubmittedBy: nd.SubmittedBy,
			CreatedBy:   nd.CreatedBy,
			PhotoURLs:   nd.PhotoURLs,
		}
		f.defects[d.ID] = d
		if dest != nil {
			return roundTrip(d, dest)
		}
	case tableActivity:
		e := row.(models.ActivityEntry)
		e.ID = fmt.Sprintf("a%d", len(f.activity)+1)
		f.activity = append(f.activity, e)
	}
	return nil
}

func (f *fakeRows) Update(_ context.Context, table, id string, patch any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update " + table)
	if f.updateErr != nil {
		return f.updateErr
	}
	d, ok := f.defects[id]
	if !ok {
		return models.ErrNotFound
	}
	p := patch.(models.DefectPatch)
	if d.Locked && ((p.Status != nil && *p.Status != d.Status) || (p.Locked != nil && !*p.Locked)) {
		return models.ErrDefectLocked
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.ActionsTaken != nil {
		d.ActionsTaken = *p.ActionsTaken
	}
	if p.RepairCompany != nil {
		d.RepairCompany = *p.RepairCompany
	}
	if p.PhotoURLs != nil {
		d.PhotoURLs = *p.PhotoURLs
	}
	if p.RepairPhotos != nil {
		d.RepairPhotos = *p.RepairPhotos
	}
	if p.Locked != nil {
		d.Locked = *p.Locked
	}
	f.defects[id] = d
	return nil
}

func (f *fakeRows) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func roundTrip(v, dest any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// fakeObjects stores uploads and fails the names listed in fail.
type fakeObjects struct {
	mu      sync.Mutex
	stored  map[string][]byte
	fail    map[int]bool
	uploads int
	names   []string
	block   chan struct{}
	started chan struct{}
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{stored: map[string][]byte{}, fail: map[int]bool{}}
}

func (f *fakeObjects) Upload(_ context.Context, bucket, name string, data []byte, _ string) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.uploads
	f.uploads++
	f.names = append(f.names, name)
	if f.fail[i] {
		return errors.New("network error")
	}
	f.stored[bucket+"/"+name] = data
	return nil
}

func (f *fakeObjects) CreateSignedURL(_ context.Context, bucket, name string, ttl time.Duration) (string, error) {
	if ttl != SignedURLTTL {
		return "", fmt.Errorf("unexpected ttl %v", ttl)
	}
	return "https://files.example/" + bucket + "/" + name + "?token=t", nil
}

type fakeUsers struct{ user *models.User }

func (f fakeUsers) CurrentUser() *models.User { return f.user }

var tech = fakeUsers{user: &models.User{ID: "u1", Email: "tech@example.com"}}
