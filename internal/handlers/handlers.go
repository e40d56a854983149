// Package handlers implements the business actions invoked from action
// steps: checking whether an item is reported stolen, filing a report,
// searching nearby reports, listing a user's own reports, and raising a
// support ticket.
//
// Each handler is exposed to the registry through a constructor keyed by
// name; dependencies arrive as a name -> instance map resolved by the
// service registry.
package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
)

// Service names handlers depend on. Handler configuration documents refer to
// these.
const (
	ServiceItemStore = "item_store"
	ServiceNotifier  = "notifier"
)

// Handler names as referenced from flow definitions.
const (
	HandlerCheckItem     = "check_item"
	HandlerReportItem    = "report_item"
	HandlerFindNearby    = "find_nearby"
	HandlerListUserItems = "list_user_items"
	HandlerCreateTicket  = "create_support_ticket"
)

// ErrMissingParam signals a handler invoked without a required parameter,
// which means the flow definition wires the handler incorrectly.
var ErrMissingParam = errors.New("missing required handler parameter")

// RegisterAll registers every handler constructor on the registry.
func RegisterAll(reg *registry.Registry) {
	reg.RegisterConstructor(HandlerCheckItem, NewCheckItemHandler)
	reg.RegisterConstructor(HandlerReportItem, NewReportItemHandler)
	reg.RegisterConstructor(HandlerFindNearby, NewFindNearbyHandler)
	reg.RegisterConstructor(HandlerListUserItems, NewListUserItemsHandler)
	reg.RegisterConstructor(HandlerCreateTicket, NewCreateTicketHandler)
}

// itemStoreDep extracts the item store from a resolved dependency map.
func itemStoreDep(deps map[string]any) (itemstore.Store, error) {
	raw, ok := deps[ServiceItemStore]
	if !ok {
		return nil, fmt.Errorf("dependency %q not provided", ServiceItemStore)
	}
	store, ok := raw.(itemstore.Store)
	if !ok {
		return nil, fmt.Errorf("dependency %q has unexpected type %T", ServiceItemStore, raw)
	}
	return store, nil
}

// requireParam returns the named parameter or ErrMissingParam.
func requireParam(params map[string]string, name string) (string, error) {
	value := strings.TrimSpace(params[name])
	if value == "" {
		return "", fmt.Errorf("%w: %q", ErrMissingParam, name)
	}
	return value, nil
}

// descriptionKeywords splits free-form item descriptions into search
// keywords, dropping short filler words.
func descriptionKeywords(description string) []string {
	var keywords []string
	for _, word := range strings.Fields(description) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if len(word) < 3 {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}
