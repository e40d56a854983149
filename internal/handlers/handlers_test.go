package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
)

func seededStore(t *testing.T, reports ...models.ItemReport) *itemstore.InMemoryStore {
	t.Helper()
	store := itemstore.NewInMemoryStore()
	for _, r := range reports {
		if r.Status == "" {
			r.Status = models.ItemStatusActive
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
			r.UpdatedAt = r.CreatedAt
		}
		if err := store.AddReport(r); err != nil {
			t.Fatalf("failed to seed report %s: %v", r.ID, err)
		}
	}
	return store
}

func storeDeps(store itemstore.Store) map[string]any {
	return map[string]any{ServiceItemStore: store}
}

func TestRegisterAll(t *testing.T) {
	reg := registry.New(nil)
	RegisterAll(reg)

	services := reg.Services()
	services.Register(ServiceItemStore, itemstore.NewInMemoryStore())

	doc := `
handlers:
  check_item:
    dependencies: [item_store]
    singleton: true
  report_item:
    dependencies: [item_store]
    singleton: true
  find_nearby:
    dependencies: [item_store]
    singleton: true
  list_user_items:
    dependencies: [item_store]
    singleton: true
  create_support_ticket:
    dependencies: [item_store]
    singleton: true
`
	if err := reg.ParseConfig([]byte(doc)); err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	for _, name := range []string{HandlerCheckItem, HandlerReportItem, HandlerFindNearby, HandlerListUserItems, HandlerCreateTicket} {
		if _, err := reg.Resolve(name); err != nil {
			t.Errorf("Resolve(%s) failed: %v", name, err)
		}
	}
}

func TestCheckItemFindsMatches(t *testing.T) {
	store := seededStore(t,
		models.ItemReport{ID: "itm_1", Reporter: "u1", Category: models.CategoryBicycle,
			Description: "red Trek road bike with carbon frame", Location: "downtown"},
		models.ItemReport{ID: "itm_2", Reporter: "u2", Category: models.CategoryBicycle,
			Description: "blue BMX"},
		models.ItemReport{ID: "itm_3", Reporter: "u3", Category: models.CategoryPhone,
			Description: "red phone"},
	)
	handler, err := NewCheckItemHandler(storeDeps(store))
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}

	result, err := handler.Invoke(context.Background(), map[string]string{
		"category":    "bicycle",
		"description": "a red Trek roadbike",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result["matches"] != "1" {
		t.Errorf("Expected 1 match, got %q", result["matches"])
	}
	if !strings.Contains(result["summary"], "Warning") || !strings.Contains(result["summary"], "Trek") {
		t.Errorf("Expected warning summary naming the match, got %q", result["summary"])
	}
}

func TestCheckItemNoMatches(t *testing.T) {
	store := seededStore(t,
		models.ItemReport{ID: "itm_1", Reporter: "u1", Category: models.CategoryBicycle,
			Description: "blue city bike"},
	)
	handler, _ := NewCheckItemHandler(storeDeps(store))

	result, err := handler.Invoke(context.Background(), map[string]string{
		"category":    "bicycle",
		"description": "yellow tandem with basket",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result["matches"] != "0" {
		t.Errorf("Expected 0 matches, got %q", result["matches"])
	}
	if !strings.Contains(result["summary"], "Good news") {
		t.Errorf("Expected reassuring summary, got %q", result["summary"])
	}
}

func TestCheckItemValidation(t *testing.T) {
	handler, _ := NewCheckItemHandler(storeDeps(itemstore.NewInMemoryStore()))

	if _, err := handler.Invoke(context.Background(), map[string]string{"description": "a bike"}); !errors.Is(err, ErrMissingParam) {
		t.Errorf("Expected ErrMissingParam without category, got %v", err)
	}
	if _, err := handler.Invoke(context.Background(), map[string]string{
		"category": "submarine", "description": "a very long one",
	}); !errors.Is(err, models.ErrInvalidCategory) {
		t.Errorf("Expected ErrInvalidCategory, got %v", err)
	}
}

func TestReportItemFilesReport(t *testing.T) {
	store := itemstore.NewInMemoryStore()
	handler, _ := NewReportItemHandler(storeDeps(store))

	result, err := handler.Invoke(context.Background(), map[string]string{
		"reporter":    "+15550001",
		"category":    "laptop",
		"description": "silver laptop with dent on lid",
		"location":    "central station",
		"stolen_at":   "2026-08-20",
		"reference":   "CR-1234",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	id := result["report_id"]
	if !strings.HasPrefix(id, "itm_") {
		t.Errorf("Expected generated report id, got %q", id)
	}

	report, err := store.GetReport(id)
	if err != nil {
		t.Fatalf("Expected report stored: %v", err)
	}
	if report.Status != models.ItemStatusActive {
		t.Errorf("Expected active status, got %s", report.Status)
	}
	if report.Reference != "CR-1234" || report.Location != "central station" {
		t.Errorf("Expected optional fields stored, got %+v", report)
	}
	if report.StolenAt == nil || report.StolenAt.Format("2006-01-02") != "2026-08-20" {
		t.Errorf("Expected parsed stolen_at, got %v", report.StolenAt)
	}
}

func TestReportItemDateFormats(t *testing.T) {
	store := itemstore.NewInMemoryStore()
	handler, _ := NewReportItemHandler(storeDeps(store))

	base := map[string]string{
		"reporter":    "u1",
		"category":    "phone",
		"description": "black phone with cracked screen",
	}
	for _, date := range []string{"2026-08-20", "20/08/2026", "2026-08-20 14:30"} {
		params := map[string]string{"stolen_at": date}
		for k, v := range base {
			params[k] = v
		}
		if _, err := handler.Invoke(context.Background(), params); err != nil {
			t.Errorf("Expected date %q accepted, got %v", date, err)
		}
	}

	params := map[string]string{"stolen_at": "yesterday-ish"}
	for k, v := range base {
		params[k] = v
	}
	if _, err := handler.Invoke(context.Background(), params); err == nil {
		t.Error("Expected unparseable date rejected")
	}
}

func TestFindNearby(t *testing.T) {
	store := seededStore(t,
		models.ItemReport{ID: "itm_1", Reporter: "u1", Category: models.CategoryBicycle,
			Description: "red bike", Location: "Riverside Park"},
		models.ItemReport{ID: "itm_2", Reporter: "u2", Category: models.CategoryPhone,
			Description: "phone stolen near riverside market"},
		models.ItemReport{ID: "itm_3", Reporter: "u3", Category: models.CategoryBicycle,
			Description: "green bike", Location: "harbor"},
	)
	handler, _ := NewFindNearbyHandler(storeDeps(store))

	result, err := handler.Invoke(context.Background(), map[string]string{"location": "riverside"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result["matches"] != "2" {
		t.Errorf("Expected 2 matches, got %q", result["matches"])
	}

	// Category narrows the search.
	result, err = handler.Invoke(context.Background(), map[string]string{
		"location": "riverside", "category": "bicycle",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result["matches"] != "1" {
		t.Errorf("Expected 1 bicycle match, got %q", result["matches"])
	}

	result, _ = handler.Invoke(context.Background(), map[string]string{"location": "nowhere"})
	if !strings.Contains(result["summary"], "No stolen item reports") {
		t.Errorf("Expected empty-result summary, got %q", result["summary"])
	}

	if _, err := handler.Invoke(context.Background(), map[string]string{}); !errors.Is(err, ErrMissingParam) {
		t.Errorf("Expected ErrMissingParam without location, got %v", err)
	}
}

func TestListUserItems(t *testing.T) {
	store := seededStore(t,
		models.ItemReport{ID: "itm_1", Reporter: "u1", Category: models.CategoryBicycle, Description: "red bike"},
		models.ItemReport{ID: "itm_2", Reporter: "u1", Category: models.CategoryPhone, Description: "black phone"},
		models.ItemReport{ID: "itm_3", Reporter: "u2", Category: models.CategoryLaptop, Description: "grey laptop"},
	)
	store.UpdateReportStatus("itm_2", models.ItemStatusRecovered)

	handler, _ := NewListUserItemsHandler(storeDeps(store))
	result, err := handler.Invoke(context.Background(), map[string]string{"reporter": "u1"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if result["count"] != "2" {
		t.Errorf("Expected 2 reports for u1, got %q", result["count"])
	}
	if !strings.Contains(result["summary"], "recovered") {
		t.Errorf("Expected recovered status shown, got %q", result["summary"])
	}

	result, _ = handler.Invoke(context.Background(), map[string]string{"reporter": "stranger"})
	if result["count"] != "0" || !strings.Contains(result["summary"], "no item reports") {
		t.Errorf("Expected empty listing, got %v", result)
	}
}

// recordingNotifier captures support notifications.
type recordingNotifier struct {
	recipient string
	body      string
	err       error
}

func (n *recordingNotifier) Notify(ctx context.Context, recipient, body string) error {
	n.recipient = recipient
	n.body = body
	return n.err
}

func TestCreateTicket(t *testing.T) {
	store := itemstore.NewInMemoryStore()
	notifier := &recordingNotifier{}
	handler, err := NewCreateTicketHandler(map[string]any{
		ServiceItemStore:  store,
		ServiceNotifier:   notifier,
		"support_contact": "+15559990000",
	})
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}

	result, err := handler.Invoke(context.Background(), map[string]string{
		"user_id": "+15550001",
		"message": "my report never shows up",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.HasPrefix(result["ticket_id"], "tkt_") {
		t.Errorf("Expected generated ticket id, got %q", result["ticket_id"])
	}

	tickets := store.Tickets()
	if len(tickets) != 1 || tickets[0].UserID != "+15550001" {
		t.Fatalf("Expected ticket stored, got %v", tickets)
	}
	if notifier.recipient != "+15559990000" || !strings.Contains(notifier.body, result["ticket_id"]) {
		t.Errorf("Expected support contact notified, got %q / %q", notifier.recipient, notifier.body)
	}
}

func TestCreateTicketNotificationFailureIsNonFatal(t *testing.T) {
	store := itemstore.NewInMemoryStore()
	notifier := &recordingNotifier{err: fmt.Errorf("carrier unreachable")}
	handler, _ := NewCreateTicketHandler(map[string]any{
		ServiceItemStore:  store,
		ServiceNotifier:   notifier,
		"support_contact": "+15559990000",
	})

	if _, err := handler.Invoke(context.Background(), map[string]string{
		"user_id": "u1", "message": "help me",
	}); err != nil {
		t.Errorf("Expected ticket filed despite notification failure, got %v", err)
	}
	if len(store.Tickets()) != 1 {
		t.Error("Expected ticket stored")
	}
}

func TestCreateTicketWithoutNotifier(t *testing.T) {
	handler, err := NewCreateTicketHandler(storeDeps(itemstore.NewInMemoryStore()))
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}
	if _, err := handler.Invoke(context.Background(), map[string]string{
		"user_id": "u1", "message": "just a question",
	}); err != nil {
		t.Errorf("Expected ticket filed without notifier, got %v", err)
	}
}

func TestConstructorsRejectMissingStore(t *testing.T) {
	for name, ctor := range map[string]registry.Constructor{
		HandlerCheckItem:     NewCheckItemHandler,
		HandlerReportItem:    NewReportItemHandler,
		HandlerFindNearby:    NewFindNearbyHandler,
		HandlerListUserItems: NewListUserItemsHandler,
		HandlerCreateTicket:  NewCreateTicketHandler,
	} {
		if _, err := ctor(map[string]any{}); err == nil {
			t.Errorf("Expected %s constructor to reject missing item store", name)
		}
		if _, err := ctor(map[string]any{ServiceItemStore: "not a store"}); err == nil {
			t.Errorf("Expected %s constructor to reject wrong store type", name)
		}
	}
}

func TestDescriptionKeywords(t *testing.T) {
	keywords := descriptionKeywords("A red Trek bike, with serial no. WTU1234!")
	joined := strings.Join(keywords, " ")
	for _, want := range []string{"red", "Trek", "bike", "serial", "WTU1234"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected keyword %q, got %v", want, keywords)
		}
	}
	for _, short := range []string{"A", "no"} {
		for _, kw := range keywords {
			if kw == short {
				t.Errorf("Expected short word %q dropped, got %v", short, keywords)
			}
		}
	}
}
