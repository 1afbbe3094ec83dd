package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"banledger/internal/models"
	"banledger/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// EmptyReason tells an empty listing apart from one where rows exist but none
// are active.
type EmptyReason string

const (
	EmptyNone       EmptyReason = ""
	EmptyNoBans     EmptyReason = "no_bans"
	EmptyNoneActive EmptyReason = "none_active"
)

// Row is one rendered ban.
type Row struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// Page is a fixed-size slice of a sorted listing.
type Page struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// Listing is the result of one view. Total counts every row in the view's
// scope (the user's or the guild's history), including rows the active view
// filters out; Active counts the rows not expired at evaluation time.
type Listing struct {
	Pages   []Page      `json:"pages"`
	Total   int         `json:"total"`
	Active  int         `json:"active"`
	Empty   EmptyReason `json:"empty,omitempty"`
	Message string      `json:"message,omitempty"`
}

type listingView struct {
	name string
	// activeLabels switches between "[Active] name" and a bare name.
	activeLabels bool
	less         func(a, b *models.Ban, now time.Time) bool
}

var (
	historyView = listingView{
		activeLabels: true,
		less: func(a, b *models.Ban, now time.Time) bool {
			return !a.IsExpiredAt(now) && b.IsExpiredAt(now)
		},
	}
	activeView = listingView{
		name: "active",
		less: func(a, b *models.Ban, now time.Time) bool {
			return a.RemainingAt(now) < b.RemainingAt(now)
		},
	}
)

// UserBans lists every ban of one user, active rows first.
func (s *BanService) UserBans(ctx context.Context, guildID, userID uint64) (*Listing, error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "BanService", "UserBans")
	defer span.End()

	rows, err := s.bans.FindByGuildAndUser(ctx, guildID, userID)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}

	lookup := newProfileLookup(s.players, guildID)
	name, err := lookup.displayName(ctx, userID)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}

	now := s.Now()
	if len(rows) == 0 {
		return &Listing{
			Pages:   []Page{},
			Empty:   EmptyNoBans,
			Message: fmt.Sprintf("%s has no bans on record.", name),
		}, nil
	}

	view := historyView
	view.name = "user"
	listing, err := s.render(ctx, lookup, view, rows, now, name+" - Bans")
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("ban.listing.rows", listing.Total))
	return listing, nil
}

// ActiveBans lists the bans still in force, soonest to lapse first.
func (s *BanService) ActiveBans(ctx context.Context, guildID uint64, guildName string) (*Listing, error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "BanService", "ActiveBans")
	defer span.End()

	rows, err := s.bans.FindByGuild(ctx, guildID)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	if len(rows) == 0 {
		return &Listing{
			Pages:   []Page{},
			Empty:   EmptyNoBans,
			Message: "There aren't any banned players.",
		}, nil
	}

	now := s.Now()
	active := make([]models.Ban, 0, len(rows))
	for i := range rows {
		if !rows[i].IsExpiredAt(now) {
			active = append(active, rows[i])
		}
	}
	if len(active) == 0 {
		return &Listing{
			Pages:   []Page{},
			Total:   len(rows),
			Empty:   EmptyNoneActive,
			Message: "There are no players currently banned.",
		}, nil
	}

	lookup := newProfileLookup(s.players, guildID)
	listing, err := s.render(ctx, lookup, activeView, active, now, guildTitle(guildID, guildName)+" Queue Cooldowns")
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	listing.Total = len(rows)
	span.SetAttributes(attribute.Int("ban.listing.rows", listing.Total))
	return listing, nil
}

// AllBans lists the full ban history of a guild, active rows first.
func (s *BanService) AllBans(ctx context.Context, guildID uint64, guildName string) (*Listing, error) {
	ctx, span := observability.GetTraceLayer().TraceServiceCall(ctx, "BanService", "AllBans")
	defer span.End()

	rows, err := s.bans.FindByGuild(ctx, guildID)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}

	title := guildTitle(guildID, guildName)
	if len(rows) == 0 {
		return &Listing{
			Pages:   []Page{},
			Empty:   EmptyNoBans,
			Message: fmt.Sprintf("%s has no bans yet.", title),
		}, nil
	}

	view := historyView
	view.name = "all"
	lookup := newProfileLookup(s.players, guildID)
	listing, err := s.render(ctx, lookup, view, rows, s.Now(), title+" All Queue Cooldowns")
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("ban.listing.rows", listing.Total))
	return listing, nil
}

// render sorts rows stably by the view key and cuts them into pages. rows
// must already be in store order; ties keep that order.
func (s *BanService) render(ctx context.Context, lookup *profileLookup, view listingView, rows []models.Ban, now time.Time, title string) (*Listing, error) {
	sorted := make([]models.Ban, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return view.less(&sorted[i], &sorted[j], now)
	})

	listing := &Listing{Total: len(sorted)}
	for i := range sorted {
		if !sorted[i].IsExpiredAt(now) {
			listing.Active++
		}
	}

	chunks := paginate(sorted, s.pageSize)
	listing.Pages = make([]Page, 0, len(chunks))
	for _, chunk := range chunks {
		page := Page{Title: title, Rows: make([]Row, 0, len(chunk))}
		for i := range chunk {
			ban := &chunk[i]
			name, err := lookup.displayName(ctx, ban.UserID)
			if err != nil {
				return nil, err
			}
			page.Rows = append(page.Rows, Row{
				Label:  rowLabel(view, ban, name, now),
				Detail: truncate(rowDetail(ban, now), s.detailMaxLen),
			})
		}
		listing.Pages = append(listing.Pages, page)
	}

	observability.BanListingPages.WithLabelValues(view.name).Observe(float64(len(listing.Pages)))
	return listing, nil
}

func rowLabel(view listingView, ban *models.Ban, name string, now time.Time) string {
	if !view.activeLabels {
		return name
	}
	if ban.IsExpiredAt(now) {
		return "[Expired] " + name
	}
	return "[Active] " + name
}

func rowDetail(ban *models.Ban, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: <@%d>\n", ban.UserID)
	fmt.Fprintf(&b, "Banned at: %s\n", ban.TimeOfBan.UTC().Format(models.DisplayTimeLayout))
	fmt.Fprintf(&b, "Banned until: %s\n", ban.ExpiryTime().UTC().Format(models.DisplayTimeLayout))
	fmt.Fprintf(&b, "Ban length: %s\n", models.FormatLength(ban.Length))
	if !ban.IsExpiredAt(now) {
		fmt.Fprintf(&b, "Expires in: %s\n", models.FormatLength(ban.RemainingAt(now)))
	}
	fmt.Fprintf(&b, "Banned by: <@%d>\n", ban.ModeratorID)
	fmt.Fprintf(&b, "Reason: %s", ban.Reason())
	return b.String()
}

func guildTitle(guildID uint64, guildName string) string {
	if guildName != "" {
		return guildName
	}
	return uitoa(guildID)
}

func paginate[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = defaultPageSize
	}
	pages := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		pages = append(pages, items[start:end])
	}
	return pages
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
