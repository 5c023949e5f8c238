package businessflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/orochi-mail/models"
	"github.com/amirphl/orochi-mail/repository"
	"github.com/google/uuid"
)

// fakeStore is an in-memory database shared by the fake repositories.
// Every conditional update mirrors the WHERE clause used by the SQL repositories.
type fakeStore struct {
	mu            sync.Mutex
	nextID        uint
	campaigns     map[uint]*models.Campaign
	campaignLists map[uint][]uint
	lists         map[uint]*models.MailList
	subscribers   map[uint]*models.Subscriber
	records       map[uint]*models.DeliveryRecord
	clicks        map[uint]*models.ClickEvent
	analytics     map[string]*models.DailyAnalytics
	blacklist     map[string]*models.BlacklistEntry

	counterFlushes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns:     map[uint]*models.Campaign{},
		campaignLists: map[uint][]uint{},
		lists:         map[uint]*models.MailList{},
		subscribers:   map[uint]*models.Subscriber{},
		records:       map[uint]*models.DeliveryRecord{},
		clicks:        map[uint]*models.ClickEvent{},
		analytics:     map[string]*models.DailyAnalytics{},
		blacklist:     map[string]*models.BlacklistEntry{},
	}
}

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ---- campaigns ----

type fakeCampaignRepo struct {
	s          *fakeStore
	incrErr    error
	audienceFn func() error
}

var _ repository.CampaignRepository = (*fakeCampaignRepo)(nil)

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.campaigns[id]), nil
}

func (r *fakeCampaignRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.campaigns {
		if c.UUID == id {
			return clone(c), nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ByFilter(ctx context.Context, f models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.s.campaigns {
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.ScheduledBefore != nil && (c.ScheduledTime == nil || c.ScheduledTime.After(*f.ScheduledBefore)) {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Save(ctx context.Context, c *models.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == 0 {
		_ = c.BeforeCreate(nil)
		c.ID = r.s.id()
	}
	r.s.campaigns[c.ID] = clone(c)
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, f models.CampaignFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeCampaignRepo) Exists(ctx context.Context, f models.CampaignFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeCampaignRepo) MailListIDs(ctx context.Context, campaignID uint) ([]uint, error) {
	if r.audienceFn != nil {
		if err := r.audienceFn(); err != nil {
			return nil, err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return slices.Clone(r.s.campaignLists[campaignID]), nil
}

func (r *fakeCampaignRepo) AttachMailLists(ctx context.Context, campaignID uint, listIDs []uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.campaignLists[campaignID] = append(r.s.campaignLists[campaignID], listIDs...)
	return nil
}

func (r *fakeCampaignRepo) ClaimForSending(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	if c == nil || !c.IsDispatchable() {
		return false, nil
	}
	c.Status = models.CampaignStatusSending
	c.SentAt = &at
	return true, nil
}

func (r *fakeCampaignRepo) UpdateStatusFrom(ctx context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	if c == nil || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *fakeCampaignRepo) UpdateStatus(ctx context.Context, id uint, status models.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.s.campaigns[id]; c != nil {
		c.Status = status
	}
	return nil
}

func (r *fakeCampaignRepo) Schedule(ctx context.Context, id uint, at time.Time, from []models.CampaignStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	if c == nil || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = models.CampaignStatusScheduled
	c.ScheduledTime = &at
	return true, nil
}

func (r *fakeCampaignRepo) IncrementCounters(ctx context.Context, id uint, d repository.CounterDelta) error {
	if r.incrErr != nil {
		return r.incrErr
	}
	if d.IsZero() {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	c.TotalSent += d.TotalSent
	c.Bounces += d.Bounces
	r.s.counterFlushes++
	return nil
}

func (r *fakeCampaignRepo) RecordOpen(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	c.Opens++
	c.UniqueOpens = r.s.distinctSubscribers(id, func(d *models.DeliveryRecord) bool { return d.OpenedAt != nil })
	return nil
}

func (r *fakeCampaignRepo) RecordClick(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.s.campaigns[id]
	c.Clicks++
	c.UniqueClicks = r.s.distinctSubscribers(id, func(d *models.DeliveryRecord) bool { return d.ClickedAt != nil })
	return nil
}

func (s *fakeStore) distinctSubscribers(campaignID uint, pred func(*models.DeliveryRecord) bool) int64 {
	seen := map[uint]bool{}
	for _, d := range s.records {
		if d.CampaignID == campaignID && pred(d) {
			seen[d.SubscriberID] = true
		}
	}
	return int64(len(seen))
}

func (r *fakeCampaignRepo) IncrementUnsubscribes(ctx context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.campaigns[id].Unsubscribes++
	return nil
}

func (r *fakeCampaignRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	status := models.CampaignStatusScheduled
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status, ScheduledBefore: &now}, "", limit, 0)
}

func (r *fakeCampaignRepo) UserIDsWithSentCampaigns(ctx context.Context, from, to time.Time) ([]uint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[uint]bool{}
	var out []uint
	for _, c := range r.s.campaigns {
		if c.SentAt != nil && !c.SentAt.Before(from) && c.SentAt.Before(to) && !seen[c.UserID] {
			seen[c.UserID] = true
			out = append(out, c.UserID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (r *fakeCampaignRepo) TotalsForUser(ctx context.Context, userID uint, from, to *time.Time) (*models.CampaignTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var t models.CampaignTotals
	for _, c := range r.s.campaigns {
		if c.UserID != userID {
			continue
		}
		if from != nil && (c.SentAt == nil || c.SentAt.Before(*from)) {
			continue
		}
		if to != nil && (c.SentAt == nil || !c.SentAt.Before(*to)) {
			continue
		}
		t.Campaigns++
		t.TotalSent += c.TotalSent
		t.Opens += c.Opens
		t.UniqueOpens += c.UniqueOpens
		t.Clicks += c.Clicks
		t.UniqueClicks += c.UniqueClicks
		t.Bounces += c.Bounces
	}
	return &t, nil
}

func (r *fakeCampaignRepo) AverageOpenRate(ctx context.Context, userID uint) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum float64
	var n int
	for _, c := range r.s.campaigns {
		if c.UserID == userID && c.TotalSent > 0 {
			sum += float64(c.UniqueOpens) * 100 / float64(c.TotalSent)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (r *fakeCampaignRepo) DailyPerformance(ctx context.Context, userID uint, from, to time.Time) ([]models.DailyPerformance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byDay := map[time.Time]*models.DailyPerformance{}
	for _, c := range r.s.campaigns {
		if c.UserID != userID || c.SentAt == nil || c.SentAt.Before(from) || !c.SentAt.Before(to) {
			continue
		}
		day := c.SentAt.UTC().Truncate(24 * time.Hour)
		p := byDay[day]
		if p == nil {
			p = &models.DailyPerformance{Day: day}
			byDay[day] = p
		}
		p.Sent += c.TotalSent
		p.Opens += c.Opens
		p.Clicks += c.Clicks
	}
	var out []models.DailyPerformance
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// ---- mail lists ----

type fakeMailListRepo struct{ s *fakeStore }

var _ repository.MailListRepository = (*fakeMailListRepo)(nil)

func (r *fakeMailListRepo) ByID(ctx context.Context, id uint) (*models.MailList, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.lists[id]), nil
}

func (r *fakeMailListRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.MailList, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.lists {
		if l.UUID == id {
			return clone(l), nil
		}
	}
	return nil, nil
}

func (r *fakeMailListRepo) ByUserID(ctx context.Context, userID uint) ([]*models.MailList, error) {
	return r.ByFilter(ctx, models.MailListFilter{UserID: &userID}, "", 0, 0)
}

func (r *fakeMailListRepo) ByFilter(ctx context.Context, f models.MailListFilter, orderBy string, limit, offset int) ([]*models.MailList, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.MailList
	for _, l := range r.s.lists {
		if f.UserID != nil && l.UserID != *f.UserID {
			continue
		}
		out = append(out, clone(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMailListRepo) Save(ctx context.Context, l *models.MailList) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == 0 {
		_ = l.BeforeCreate(nil)
		l.ID = r.s.id()
	}
	r.s.lists[l.ID] = clone(l)
	return nil
}

func (r *fakeMailListRepo) SaveBatch(ctx context.Context, ls []*models.MailList) error {
	for _, l := range ls {
		_ = r.Save(ctx, l)
	}
	return nil
}

func (r *fakeMailListRepo) Count(ctx context.Context, f models.MailListFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeMailListRepo) Exists(ctx context.Context, f models.MailListFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeMailListRepo) RecountSubscribers(ctx context.Context, listID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l := r.s.lists[listID]
	if l == nil {
		return nil
	}
	var active, inactive int64
	for _, sub := range r.s.subscribers {
		if sub.MailListID != listID {
			continue
		}
		if sub.IsActive {
			active++
		} else {
			inactive++
		}
	}
	l.SubscriberCount = active
	l.UnsubscribedCount = inactive
	return nil
}

// ---- subscribers ----

type fakeSubscriberRepo struct{ s *fakeStore }

var _ repository.SubscriberRepository = (*fakeSubscriberRepo)(nil)

func (r *fakeSubscriberRepo) ByID(ctx context.Context, id uint) (*models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.subscribers[id]), nil
}

func (r *fakeSubscriberRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subscribers {
		if sub.UUID == id {
			return clone(sub), nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriberRepo) ByFilter(ctx context.Context, f models.SubscriberFilter, orderBy string, limit, offset int) ([]*models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Subscriber
	for _, sub := range r.s.subscribers {
		if f.MailListID != nil && sub.MailListID != *f.MailListID {
			continue
		}
		if f.IsActive != nil && sub.IsActive != *f.IsActive {
			continue
		}
		out = append(out, clone(sub))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSubscriberRepo) Save(ctx context.Context, sub *models.Subscriber) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub.ID == 0 {
		_ = sub.BeforeCreate(nil)
		sub.ID = r.s.id()
	}
	r.s.subscribers[sub.ID] = clone(sub)
	return nil
}

func (r *fakeSubscriberRepo) SaveBatch(ctx context.Context, subs []*models.Subscriber) error {
	for _, sub := range subs {
		_ = r.Save(ctx, sub)
	}
	return nil
}

func (r *fakeSubscriberRepo) Count(ctx context.Context, f models.SubscriberFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeSubscriberRepo) Exists(ctx context.Context, f models.SubscriberFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeSubscriberRepo) ActiveAudience(ctx context.Context, listIDs []uint) ([]*models.Subscriber, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*models.Subscriber
	for _, sub := range r.s.subscribers {
		if sub.IsActive && slices.Contains(listIDs, sub.MailListID) {
			all = append(all, sub)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	seen := map[string]bool{}
	var out []*models.Subscriber
	for _, sub := range all {
		email := strings.ToLower(sub.Email)
		if seen[email] || r.s.blacklist[email] != nil {
			continue
		}
		seen[email] = true
		out = append(out, clone(sub))
	}
	return out, nil
}

func (r *fakeSubscriberRepo) Unsubscribe(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sub := r.s.subscribers[id]
	if sub == nil || !sub.IsActive {
		return false, nil
	}
	sub.IsActive = false
	sub.UnsubscribedAt = &at
	return true, nil
}

func (r *fakeSubscriberRepo) ActivityForUser(ctx context.Context, userID uint, from, to time.Time) (*models.SubscriberActivity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var a models.SubscriberActivity
	for _, sub := range r.s.subscribers {
		l := r.s.lists[sub.MailListID]
		if l == nil || l.UserID != userID {
			continue
		}
		if sub.IsActive {
			a.Total++
		}
		if !sub.SubscribedAt.Before(from) && sub.SubscribedAt.Before(to) {
			a.New++
		}
		if sub.UnsubscribedAt != nil && !sub.UnsubscribedAt.Before(from) && sub.UnsubscribedAt.Before(to) {
			a.Unsubscribed++
		}
	}
	return &a, nil
}

// ---- delivery records ----

type fakeDeliveryRepo struct {
	s         *fakeStore
	ensureErr func(subscriberID uint) error
}

var _ repository.DeliveryRecordRepository = (*fakeDeliveryRepo)(nil)

func (r *fakeDeliveryRepo) ByID(ctx context.Context, id uint) (*models.DeliveryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.records[id]), nil
}

func (r *fakeDeliveryRepo) ByFilter(ctx context.Context, f models.DeliveryRecordFilter, orderBy string, limit, offset int) ([]*models.DeliveryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.DeliveryRecord
	for _, d := range r.s.records {
		if f.CampaignID != nil && d.CampaignID != *f.CampaignID {
			continue
		}
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		out = append(out, clone(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeDeliveryRepo) Save(ctx context.Context, d *models.DeliveryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.ID == 0 {
		_ = d.BeforeCreate(nil)
		d.ID = r.s.id()
	}
	r.s.records[d.ID] = clone(d)
	return nil
}

func (r *fakeDeliveryRepo) SaveBatch(ctx context.Context, ds []*models.DeliveryRecord) error {
	for _, d := range ds {
		_ = r.Save(ctx, d)
	}
	return nil
}

func (r *fakeDeliveryRepo) Count(ctx context.Context, f models.DeliveryRecordFilter) (int64, error) {
	rows, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(rows)), nil
}

func (r *fakeDeliveryRepo) Exists(ctx context.Context, f models.DeliveryRecordFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeDeliveryRepo) ByCampaignAndSubscriber(ctx context.Context, campaignID, subscriberID uint) (*models.DeliveryRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.findRecord(campaignID, subscriberID)), nil
}

func (s *fakeStore) findRecord(campaignID, subscriberID uint) *models.DeliveryRecord {
	for _, d := range s.records {
		if d.CampaignID == campaignID && d.SubscriberID == subscriberID {
			return d
		}
	}
	return nil
}

func (r *fakeDeliveryRepo) Ensure(ctx context.Context, d *models.DeliveryRecord) (*models.DeliveryRecord, bool, error) {
	if r.ensureErr != nil {
		if err := r.ensureErr(d.SubscriberID); err != nil {
			return nil, false, err
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing := r.s.findRecord(d.CampaignID, d.SubscriberID); existing != nil {
		return clone(existing), false, nil
	}
	row := clone(d)
	_ = row.BeforeCreate(nil)
	row.ID = r.s.id()
	r.s.records[row.ID] = row
	return clone(row), true, nil
}

func (r *fakeDeliveryRepo) ClaimSend(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.records[id]
	if d == nil {
		return false, nil
	}
	retry := d.Status == models.DeliveryStatusBounced && d.BounceType != nil && *d.BounceType == models.BounceTypeSendFailure
	if d.SentAt != nil && !retry {
		return false, nil
	}
	if retry {
		d.Status = models.DeliveryStatusSent
	}
	d.SentAt = &at
	d.BounceType = nil
	d.ErrorMessage = nil
	return true, nil
}

func (r *fakeDeliveryRepo) MarkBounced(ctx context.Context, id uint, bounceType, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.records[id]
	if d == nil {
		return errors.New("record not found")
	}
	d.Status = models.DeliveryStatusBounced
	d.BounceType = &bounceType
	d.ErrorMessage = &reason
	return nil
}

func (r *fakeDeliveryRepo) transition(id uint, from []models.DeliveryStatus, apply func(*models.DeliveryRecord)) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.records[id]
	if d == nil || !slices.Contains(from, d.Status) {
		return false
	}
	apply(d)
	return true
}

func (r *fakeDeliveryRepo) MarkOpened(ctx context.Context, id uint, at time.Time, ua, ip *string) (bool, error) {
	return r.transition(id, models.OpenableStatuses, func(d *models.DeliveryRecord) {
		d.Status = models.DeliveryStatusOpened
		d.OpenedAt = &at
		d.UserAgent = ua
		d.IPAddress = ip
	}), nil
}

func (r *fakeDeliveryRepo) MarkClicked(ctx context.Context, id uint, at time.Time, ua, ip *string) (bool, error) {
	return r.transition(id, models.ClickableStatuses, func(d *models.DeliveryRecord) {
		d.Status = models.DeliveryStatusClicked
		d.ClickedAt = &at
		d.UserAgent = ua
		d.IPAddress = ip
	}), nil
}

func (r *fakeDeliveryRepo) MarkUnsubscribed(ctx context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.records[id]
	if d == nil || d.Status == models.DeliveryStatusUnsubscribed {
		return false, nil
	}
	d.Status = models.DeliveryStatusUnsubscribed
	return true, nil
}

func (r *fakeDeliveryRepo) CountOpenedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, d := range r.s.records {
		if d.CampaignID == campaignID && d.OpenedAt != nil && !d.OpenedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeDeliveryRepo) CountClickedSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, d := range r.s.records {
		if d.CampaignID == campaignID && d.ClickedAt != nil && !d.ClickedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeDeliveryRepo) ReportRows(ctx context.Context, campaignID uint) ([]models.DeliveryReportRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.DeliveryReportRow
	for _, d := range r.s.records {
		if d.CampaignID != campaignID {
			continue
		}
		sub := r.s.subscribers[d.SubscriberID]
		row := models.DeliveryReportRow{
			Status:    d.Status,
			MessageID: d.MessageID,
			SentAt:    d.SentAt,
			OpenedAt:  d.OpenedAt,
			ClickedAt: d.ClickedAt,
			Error:     d.ErrorMessage,
		}
		if sub != nil {
			row.Email = sub.Email
			row.Name = sub.Name
		}
		for _, c := range r.s.clicks {
			if c.DeliveryRecordID == d.ID {
				row.ClickCount += c.ClickCount
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// ---- click events ----

type fakeClickRepo struct{ s *fakeStore }

func (r *fakeClickRepo) Increment(ctx context.Context, recordID uint, url string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clicks {
		if c.DeliveryRecordID == recordID && c.URL == url {
			c.ClickCount++
			return nil
		}
	}
	id := r.s.id()
	r.s.clicks[id] = &models.ClickEvent{ID: id, DeliveryRecordID: recordID, URL: url, ClickCount: 1}
	return nil
}

func (r *fakeClickRepo) ByDeliveryRecord(ctx context.Context, recordID uint) ([]*models.ClickEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.ClickEvent
	for _, c := range r.s.clicks {
		if c.DeliveryRecordID == recordID {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

// ---- daily analytics ----

type fakeAnalyticsRepo struct{ s *fakeStore }

func analyticsKey(userID uint, date time.Time) string {
	return fmt.Sprintf("%d:%s", userID, date.Format(time.DateOnly))
}

func (r *fakeAnalyticsRepo) Upsert(ctx context.Context, row *models.DailyAnalytics) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := analyticsKey(row.UserID, row.Date)
	if existing := r.s.analytics[key]; existing != nil {
		row.ID = existing.ID
	} else {
		row.ID = r.s.id()
	}
	r.s.analytics[key] = clone(row)
	return nil
}

func (r *fakeAnalyticsRepo) ByUserAndDate(ctx context.Context, userID uint, date time.Time) (*models.DailyAnalytics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return clone(r.s.analytics[analyticsKey(userID, date)]), nil
}

func (r *fakeAnalyticsRepo) ByFilter(ctx context.Context, f models.DailyAnalyticsFilter, orderBy string, limit, offset int) ([]*models.DailyAnalytics, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.DailyAnalytics
	for _, row := range r.s.analytics {
		if f.UserID != nil && row.UserID != *f.UserID {
			continue
		}
		out = append(out, clone(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ---- blacklist ----

type fakeBlacklistRepo struct{ s *fakeStore }

var _ repository.BlacklistRepository = (*fakeBlacklistRepo)(nil)

func (r *fakeBlacklistRepo) ByID(ctx context.Context, id uint) (*models.BlacklistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.blacklist {
		if e.ID == id {
			return clone(e), nil
		}
	}
	return nil, nil
}

func (r *fakeBlacklistRepo) ByFilter(ctx context.Context, f models.BlacklistFilter, orderBy string, limit, offset int) ([]*models.BlacklistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.BlacklistEntry
	for _, e := range r.s.blacklist {
		out = append(out, clone(e))
	}
	return out, nil
}

func (r *fakeBlacklistRepo) Save(ctx context.Context, e *models.BlacklistEntry) error {
	return r.Add(ctx, e)
}

func (r *fakeBlacklistRepo) SaveBatch(ctx context.Context, es []*models.BlacklistEntry) error {
	for _, e := range es {
		_ = r.Add(ctx, e)
	}
	return nil
}

func (r *fakeBlacklistRepo) Count(ctx context.Context, f models.BlacklistFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.blacklist)), nil
}

func (r *fakeBlacklistRepo) Exists(ctx context.Context, f models.BlacklistFilter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeBlacklistRepo) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.blacklist[strings.ToLower(strings.TrimSpace(email))] != nil, nil
}

func (r *fakeBlacklistRepo) Add(ctx context.Context, e *models.BlacklistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_ = e.BeforeCreate(nil)
	if existing := r.s.blacklist[e.Email]; existing != nil {
		e.ID = existing.ID
		return nil
	}
	e.ID = r.s.id()
	r.s.blacklist[e.Email] = clone(e)
	return nil
}

// ---- queue ----

type fakeQueue struct {
	mu        sync.Mutex
	submitted []uint
	err       error
}

func (q *fakeQueue) Submit(campaignID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.submitted = append(q.submitted, campaignID)
	return nil
}
